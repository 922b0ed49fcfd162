package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"pdx-scalper-bot/internal/state"
)

const slotsKey = "schedule:hour_slots"

// Schedule restricts trading to chosen UTC hours. An empty slot set means
// always-on. Slots are persisted in the kv store so they survive restarts.
type Schedule struct {
	store state.Store
	now   func() time.Time
}

func New(store state.Store) *Schedule {
	return &Schedule{store: store, now: time.Now}
}

// Active reports whether trading is allowed at the current hour.
func (s *Schedule) Active(ctx context.Context) (bool, error) {
	slots, err := s.Slots(ctx)
	if err != nil {
		return false, err
	}
	if len(slots) == 0 {
		return true, nil
	}
	hour := s.now().UTC().Hour()
	for _, slot := range slots {
		if slot == hour {
			return true, nil
		}
	}
	return false, nil
}

// Slots returns the configured UTC hours, sorted.
func (s *Schedule) Slots(ctx context.Context) ([]int, error) {
	if s.store == nil {
		return nil, nil
	}
	raw, ok, err := s.store.Get(ctx, slotsKey)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var slots []int
	if err := json.Unmarshal([]byte(raw), &slots); err != nil {
		return nil, fmt.Errorf("decode schedule slots: %w", err)
	}
	sort.Ints(slots)
	return slots, nil
}

// SetSlots replaces the slot set. Passing no hours clears the schedule.
func (s *Schedule) SetSlots(ctx context.Context, hours []int) error {
	if s.store == nil {
		return nil
	}
	if len(hours) == 0 {
		return s.store.Delete(ctx, slotsKey)
	}
	seen := make(map[int]struct{}, len(hours))
	slots := make([]int, 0, len(hours))
	for _, h := range hours {
		if h < 0 || h > 23 {
			return fmt.Errorf("hour %d out of range", h)
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		slots = append(slots, h)
	}
	sort.Ints(slots)
	payload, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, slotsKey, string(payload))
}

// ParseSlots parses operator input like "9,10,14" into hours.
func ParseSlots(input string) ([]int, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.EqualFold(input, "all") {
		return nil, nil
	}
	parts := strings.Split(input, ",")
	hours := make([]int, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var hour int
		if _, err := fmt.Sscanf(part, "%d", &hour); err != nil {
			return nil, fmt.Errorf("bad hour %q", part)
		}
		if hour < 0 || hour > 23 {
			return nil, fmt.Errorf("hour %d out of range", hour)
		}
		hours = append(hours, hour)
	}
	return hours, nil
}

// FormatSlots renders hours for operator display.
func FormatSlots(slots []int) string {
	if len(slots) == 0 {
		return "always-on"
	}
	parts := make([]string, len(slots))
	for i, h := range slots {
		parts[i] = fmt.Sprintf("%02d:00", h)
	}
	return strings.Join(parts, ", ")
}
