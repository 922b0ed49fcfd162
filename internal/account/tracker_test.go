package account

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"
)

type fakeBalanceSource struct {
	balance float64
	err     error
}

func (f *fakeBalanceSource) USDCBalance(ctx context.Context) (float64, error) {
	_ = ctx
	return f.balance, f.err
}

func TestTrackerBaselineAndPnL(t *testing.T) {
	source := &fakeBalanceSource{balance: 2500.00}
	tracker := NewTracker(source, zap.NewNop())

	if err := tracker.Init(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	source.balance = 2498.50
	if _, err := tracker.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := tracker.Summary()
	if s.InitialBalance != 2500.00 || s.CurrentBalance != 2498.50 {
		t.Fatalf("unexpected balances: %+v", s)
	}
	if math.Abs(s.PnL-(-1.50)) > 1e-9 {
		t.Fatalf("unexpected pnl %v", s.PnL)
	}
}

func TestTrackerInitOnlySetsBaselineOnce(t *testing.T) {
	source := &fakeBalanceSource{balance: 1000}
	tracker := NewTracker(source, zap.NewNop())

	if err := tracker.Init(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	source.balance = 900
	if err := tracker.Init(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := tracker.Summary()
	if s.InitialBalance != 1000 {
		t.Fatalf("baseline moved: %v", s.InitialBalance)
	}
	if s.CurrentBalance != 900 {
		t.Fatalf("current not updated: %v", s.CurrentBalance)
	}
}

func TestTrackerWearPer10K(t *testing.T) {
	source := &fakeBalanceSource{balance: 1000}
	tracker := NewTracker(source, zap.NewNop())
	if err := tracker.Init(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Two pairs at 600 USD notional each leg: 2400 total volume.
	tracker.RecordPair(600)
	tracker.RecordPair(600)

	source.balance = 999.40
	if _, err := tracker.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := tracker.Summary()
	if s.Volume != 2400 || s.Pairs != 2 {
		t.Fatalf("unexpected volume tally: %+v", s)
	}
	want := 0.60 / 2400 * 10000
	if math.Abs(s.WearPer10K-want) > 1e-9 {
		t.Fatalf("unexpected wear %v, want %v", s.WearPer10K, want)
	}
}

func TestTrackerRefreshFailureKeepsLastValue(t *testing.T) {
	source := &fakeBalanceSource{balance: 500}
	tracker := NewTracker(source, zap.NewNop())
	if err := tracker.Init(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	source.err = errors.New("503")
	balance, err := tracker.Refresh(context.Background())
	if err == nil {
		t.Fatalf("expected error")
	}
	if balance != 500 {
		t.Fatalf("expected last known balance, got %v", balance)
	}
}
