package ratelimit

import (
	"testing"
	"time"
)

func TestAllowWithinLimits(t *testing.T) {
	l := New(Window{Name: "minute", Limit: 3, Period: time.Minute})
	for i := 0; i < 3; i++ {
		ok, _, _ := l.Allow()
		if !ok {
			t.Fatalf("request %d unexpectedly blocked", i)
		}
		l.Record()
	}
	ok, window, retry := l.Allow()
	if ok {
		t.Fatalf("expected fourth request blocked")
	}
	if window != "minute" {
		t.Fatalf("unexpected binding window %q", window)
	}
	if retry <= 0 || retry > time.Minute {
		t.Fatalf("unexpected retry-after %v", retry)
	}
}

func TestWindowSlides(t *testing.T) {
	l := New(Window{Name: "minute", Limit: 2, Period: time.Minute})
	base := time.Now()
	l.now = func() time.Time { return base }

	l.Record()
	l.Record()
	if ok, _, _ := l.Allow(); ok {
		t.Fatalf("expected blocked at limit")
	}

	l.now = func() time.Time { return base.Add(61 * time.Second) }
	if ok, _, _ := l.Allow(); !ok {
		t.Fatalf("expected allowed after window slid")
	}
}

func TestTightestWindowBinds(t *testing.T) {
	l := New(
		Window{Name: "minute", Limit: 1, Period: time.Minute},
		Window{Name: "hour", Limit: 100, Period: time.Hour},
	)
	l.Record()
	ok, window, _ := l.Allow()
	if ok || window != "minute" {
		t.Fatalf("expected minute window to bind, ok=%v window=%q", ok, window)
	}
}

func TestUsageCounts(t *testing.T) {
	l := New(
		Window{Name: "minute", Limit: 26, Period: time.Minute},
		Window{Name: "hour", Limit: 500, Period: time.Hour},
	)
	l.Record()
	l.Record()
	usage := l.Usage()
	if usage["minute"] != [2]int{2, 26} {
		t.Fatalf("unexpected minute usage %v", usage["minute"])
	}
	if usage["hour"] != [2]int{2, 500} {
		t.Fatalf("unexpected hour usage %v", usage["hour"])
	}
}

func TestZeroLimitWindowIgnored(t *testing.T) {
	l := New(Window{Name: "off", Limit: 0, Period: time.Minute})
	for i := 0; i < 10; i++ {
		if ok, _, _ := l.Allow(); !ok {
			t.Fatalf("expected unlimited when no windows configured")
		}
		l.Record()
	}
}
