package account

import (
	"context"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"
)

type BalanceSource interface {
	USDCBalance(ctx context.Context) (float64, error)
}

// Summary is a point-in-time view of session economics. Wear is the balance
// lost per 10k USD of traded volume; it is the fee-free scalper's health
// metric.
type Summary struct {
	InitialBalance float64
	CurrentBalance float64
	PnL            float64
	Volume         float64
	Pairs          int
	WearPer10K     float64
	StartedAt      time.Time
}

// Tracker follows the account balance across a trading session and
// accumulates traded volume for wear reporting.
type Tracker struct {
	source BalanceSource
	log    *zap.Logger

	mu          sync.Mutex
	initialized bool
	initial     float64
	current     float64
	volume      float64
	pairs       int
	startedAt   time.Time
}

func NewTracker(source BalanceSource, log *zap.Logger) *Tracker {
	return &Tracker{source: source, log: log}
}

// Init captures the session's starting balance. Safe to call more than once;
// only the first successful call sets the baseline.
func (t *Tracker) Init(ctx context.Context) error {
	balance, err := t.source.USDCBalance(ctx)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.initialized {
		t.initialized = true
		t.initial = balance
		t.startedAt = time.Now()
	}
	t.current = balance
	t.log.Info("balance baseline", zap.Float64("usdc", balance))
	return nil
}

// Refresh re-reads the balance; failures keep the last known value.
func (t *Tracker) Refresh(ctx context.Context) (float64, error) {
	balance, err := t.source.USDCBalance(ctx)
	if err != nil {
		t.log.Warn("balance refresh failed", zap.Error(err))
		t.mu.Lock()
		defer t.mu.Unlock()
		return t.current, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = balance
	return balance, nil
}

// RecordPair adds one completed open+close pair's notional to the volume
// tally. notional is the single-leg value; both legs count.
func (t *Tracker) RecordPair(notional float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.volume += notional * 2
	t.pairs++
}

func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Summary{
		InitialBalance: t.initial,
		CurrentBalance: t.current,
		Volume:         t.volume,
		Pairs:          t.pairs,
		StartedAt:      t.startedAt,
	}
	if t.initialized {
		s.PnL = t.current - t.initial
	}
	if t.volume > 0 {
		s.WearPer10K = math.Abs(s.PnL) / t.volume * 10000
	}
	return s
}
