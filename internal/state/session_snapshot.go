package state

import (
	"context"
	"encoding/json"
	"strings"
)

const SessionSnapshotKey = "session:last_snapshot"

// SessionSnapshot is the last known engine status, persisted so operator
// tooling can report on a bot that crashed or was stopped.
type SessionSnapshot struct {
	State             string  `json:"state"`
	Market            string  `json:"market"`
	CyclesCompleted   int     `json:"cycles_completed"`
	Skips             int     `json:"skips"`
	QuoteFailures     int     `json:"quote_failures"`
	LastSpreadPercent float64 `json:"last_spread_percent"`
	UpdatedAtMS       int64   `json:"updated_at_ms"`
}

func LoadSessionSnapshot(ctx context.Context, store Store) (SessionSnapshot, bool, error) {
	if store == nil {
		return SessionSnapshot{}, false, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	raw, ok, err := store.Get(ctx, SessionSnapshotKey)
	if err != nil {
		return SessionSnapshot{}, false, err
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return SessionSnapshot{}, false, nil
	}
	var snapshot SessionSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return SessionSnapshot{}, false, err
	}
	return snapshot, true, nil
}

func SaveSessionSnapshot(ctx context.Context, store Store, snapshot SessionSnapshot) error {
	if store == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return store.Set(ctx, SessionSnapshotKey, string(payload))
}
