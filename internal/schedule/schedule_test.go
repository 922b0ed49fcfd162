package schedule

import (
	"context"
	"sync"
	"testing"
	"time"
)

type memoryStore struct {
	mu    sync.Mutex
	items map[string]string
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.items[key]
	return val, ok, nil
}

func (m *memoryStore) Set(ctx context.Context, key, value string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = make(map[string]string)
	}
	m.items[key] = value
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *memoryStore) Close() error { return nil }

func atHour(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2024, 6, 1, hour, 30, 0, 0, time.UTC)
	}
}

func TestEmptyScheduleAlwaysActive(t *testing.T) {
	s := New(&memoryStore{})
	active, err := s.Active(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !active {
		t.Fatalf("expected always-on with no slots")
	}
}

func TestSlotsGateTrading(t *testing.T) {
	s := New(&memoryStore{})
	ctx := context.Background()
	if err := s.SetSlots(ctx, []int{9, 14}); err != nil {
		t.Fatalf("set slots: %v", err)
	}

	s.now = atHour(9)
	if active, _ := s.Active(ctx); !active {
		t.Fatalf("expected active at 09:00")
	}
	s.now = atHour(10)
	if active, _ := s.Active(ctx); active {
		t.Fatalf("expected inactive at 10:00")
	}
}

func TestSlotsPersistAcrossInstances(t *testing.T) {
	store := &memoryStore{}
	ctx := context.Background()
	if err := New(store).SetSlots(ctx, []int{14, 9, 9}); err != nil {
		t.Fatalf("set slots: %v", err)
	}

	slots, err := New(store).Slots(ctx)
	if err != nil {
		t.Fatalf("load slots: %v", err)
	}
	if len(slots) != 2 || slots[0] != 9 || slots[1] != 14 {
		t.Fatalf("unexpected slots: %v", slots)
	}
}

func TestClearSlots(t *testing.T) {
	s := New(&memoryStore{})
	ctx := context.Background()
	if err := s.SetSlots(ctx, []int{3}); err != nil {
		t.Fatalf("set slots: %v", err)
	}
	if err := s.SetSlots(ctx, nil); err != nil {
		t.Fatalf("clear slots: %v", err)
	}
	slots, err := s.Slots(ctx)
	if err != nil {
		t.Fatalf("load slots: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("expected no slots, got %v", slots)
	}
}

func TestSetSlotsRejectsOutOfRange(t *testing.T) {
	s := New(&memoryStore{})
	if err := s.SetSlots(context.Background(), []int{24}); err == nil {
		t.Fatalf("expected error for hour 24")
	}
}

func TestParseSlots(t *testing.T) {
	slots, err := ParseSlots("9, 10,14")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 3 || slots[0] != 9 || slots[2] != 14 {
		t.Fatalf("unexpected slots: %v", slots)
	}

	slots, err = ParseSlots("all")
	if err != nil || slots != nil {
		t.Fatalf("expected empty slots for 'all', got %v err %v", slots, err)
	}

	if _, err := ParseSlots("25"); err == nil {
		t.Fatalf("expected error for hour 25")
	}
	if _, err := ParseSlots("abc"); err == nil {
		t.Fatalf("expected error for non-numeric input")
	}
}

func TestFormatSlots(t *testing.T) {
	if got := FormatSlots(nil); got != "always-on" {
		t.Fatalf("unexpected format %q", got)
	}
	if got := FormatSlots([]int{9, 14}); got != "09:00, 14:00" {
		t.Fatalf("unexpected format %q", got)
	}
}
