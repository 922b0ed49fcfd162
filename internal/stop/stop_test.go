package stop

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestSentinelDetectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "STOP")
	s := NewSentinel(path, zap.NewNop())

	if s.Stopped() {
		t.Fatalf("expected not stopped before file exists")
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write sentinel: %v", err)
	}
	if !s.Stopped() {
		t.Fatalf("expected stopped after file created")
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove sentinel: %v", err)
	}
	if s.Stopped() {
		t.Fatalf("expected not stopped after file removed")
	}
}

func TestManualStop(t *testing.T) {
	m := NewManual()
	if m.Stopped() {
		t.Fatalf("expected not stopped initially")
	}
	m.Stop()
	if !m.Stopped() {
		t.Fatalf("expected stopped after Stop")
	}
	m.Stop() // idempotent
	if !m.Stopped() {
		t.Fatalf("expected still stopped")
	}
}

func TestAnyCombines(t *testing.T) {
	m1 := NewManual()
	m2 := NewManual()
	combined := Any{m1, m2, nil}
	if combined.Stopped() {
		t.Fatalf("expected not stopped")
	}
	m2.Stop()
	if !combined.Stopped() {
		t.Fatalf("expected stopped when one signal fires")
	}
}
