package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"pdx-scalper-bot/internal/config"
	"pdx-scalper-bot/internal/exec"
	"pdx-scalper-bot/internal/market"
	"pdx-scalper-bot/internal/metrics"
	"pdx-scalper-bot/internal/stop"
)

type SpreadSource interface {
	Spread(ctx context.Context) (market.SpreadMeasurement, error)
	Volatility() float64
}

type PairExecutor interface {
	ExecutePair(ctx context.Context, size float64, sellFirst bool) (exec.OrderPair, error)
}

type RequestBudget interface {
	Allow() (ok bool, window string, retryAfter time.Duration)
	Record()
}

// Deps carries the engine's collaborators. Limiter, Stop, Active and OnCycle
// are optional.
type Deps struct {
	Quotes   SpreadSource
	Executor PairExecutor
	Limiter  RequestBudget
	Stop     stop.Signal
	Active   func(ctx context.Context) (bool, error)
	Metrics  *metrics.Metrics
	OnCycle  func(CycleRecord)
	Log      *zap.Logger
}

// Engine runs the cycle loop: measure the spread, trade a market-order pair
// when every gate passes, sleep, repeat. Only iterations that place orders
// count toward the cycle budget.
type Engine struct {
	cfg     config.CycleConfig
	filters config.FilterConfig
	deps    Deps
	sm      *StateMachine

	mu            sync.Mutex
	paused        bool
	cycles        int
	skips         int
	quoteFailures int
	lastSpread    float64
	lastSkip      SkipReason
}

func New(cfg config.CycleConfig, filters config.FilterConfig, deps Deps) *Engine {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNoop()
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Engine{cfg: cfg, filters: filters, deps: deps, sm: NewStateMachine()}
}

// Run drives cycles until the budget is exhausted, a stop signal fires, or
// ctx is cancelled. A nil return means a normal end of session.
func (e *Engine) Run(ctx context.Context) error {
	e.sm.Apply(EventStart)
	e.deps.Log.Info("engine started",
		zap.String("market", e.cfg.Market),
		zap.Int("max_cycles", e.cfg.MaxCycles),
		zap.Float64("spread_threshold_percent", e.cfg.SpreadThresholdPercent))

	for {
		if err := ctx.Err(); err != nil {
			e.sm.Apply(EventStop)
			return err
		}
		if e.deps.Stop != nil && e.deps.Stop.Stopped() {
			e.sm.Apply(EventStop)
			e.deps.Log.Info("stop signal received", zap.Int("cycles_completed", e.Cycles()))
			return nil
		}
		if e.Cycles() >= e.cfg.MaxCycles {
			e.sm.Apply(EventStop)
			e.deps.Log.Info("cycle budget exhausted", zap.Int("cycles_completed", e.Cycles()))
			return nil
		}

		e.iterate(ctx)

		if !sleepCtx(ctx, e.cfg.Interval) {
			e.sm.Apply(EventStop)
			return ctx.Err()
		}
	}
}

func (e *Engine) iterate(ctx context.Context) {
	if e.Paused() {
		e.skip(SkipPaused)
		return
	}
	if e.deps.Active != nil {
		active, err := e.deps.Active(ctx)
		if err != nil {
			e.deps.Log.Warn("schedule check failed", zap.Error(err))
			return
		}
		if !active {
			e.skip(SkipOutOfSchedule)
			return
		}
	}
	if e.deps.Limiter != nil {
		if ok, window, retryAfter := e.deps.Limiter.Allow(); !ok {
			e.deps.Metrics.RateLimitBlocks.Inc()
			e.skip(SkipRateLimited,
				zap.String("window", window),
				zap.Duration("retry_after", retryAfter))
			return
		}
	}

	m, err := e.deps.Quotes.Spread(ctx)
	if err != nil {
		e.mu.Lock()
		e.quoteFailures++
		e.mu.Unlock()
		e.deps.Metrics.QuoteFailures.Inc()
		e.deps.Log.Warn("spread measurement failed", zap.Error(err))
		return
	}
	e.mu.Lock()
	e.lastSpread = m.Percent
	e.mu.Unlock()
	e.deps.Metrics.LastSpreadPct.Set(m.Percent)

	if reason, ok := e.entryGate(m); !ok {
		e.skip(reason, zap.Float64("spread_percent", m.Percent))
		return
	}

	e.trade(ctx, m)
}

// skip records one SKIPPING iteration. The first skip for a reason logs at
// Info; repeats of the same reason drop to Debug so a drained rate window or
// an overnight schedule gap does not flood the log.
func (e *Engine) skip(reason SkipReason, fields ...zap.Field) {
	e.sm.Apply(EventSkip)
	e.mu.Lock()
	e.skips++
	repeat := e.lastSkip == reason
	e.lastSkip = reason
	e.mu.Unlock()
	e.deps.Metrics.CyclesSkipped.Inc()
	fields = append(fields, zap.String("reason", string(reason)))
	if repeat {
		e.deps.Log.Debug("cycle skipped", fields...)
	} else {
		e.deps.Log.Info("cycle skipped", fields...)
	}
	e.sm.Apply(EventResolve)
}

// entryGate applies the depth, volatility and spread filters in that order.
func (e *Engine) entryGate(m market.SpreadMeasurement) (SkipReason, bool) {
	if e.filters.MinDepth > 0 && (m.Quote.BidSize < e.filters.MinDepth || m.Quote.AskSize < e.filters.MinDepth) {
		return SkipDepthThin, false
	}
	if e.filters.VolatilityEnabledValue() {
		if vol := e.deps.Quotes.Volatility(); vol > e.filters.MaxVolatilityPercent {
			e.deps.Metrics.VolatilityPct.Set(vol)
			return SkipVolatility, false
		}
	}
	if m.Percent > e.cfg.SpreadThresholdPercent {
		return SkipSpreadWide, false
	}
	return "", true
}

func (e *Engine) trade(ctx context.Context, m market.SpreadMeasurement) {
	e.sm.Apply(EventTrade)
	defer e.sm.Apply(EventResolve)

	sellFirst := e.sellFirst(m)
	if e.deps.Limiter != nil {
		// Both legs draw on the request budget.
		e.deps.Limiter.Record()
		e.deps.Limiter.Record()
	}

	pair, err := e.deps.Executor.ExecutePair(ctx, e.cfg.OrderSize, sellFirst)
	if pair.Open.Err == nil {
		e.deps.Metrics.OrdersPlaced.Inc()
	} else {
		e.deps.Metrics.OrdersFailed.Inc()
	}
	if pair.Close.Err == nil {
		e.deps.Metrics.OrdersPlaced.Inc()
	} else {
		e.deps.Metrics.OrdersFailed.Inc()
	}

	e.mu.Lock()
	e.cycles++
	seq := e.cycles
	e.lastSkip = ""
	e.mu.Unlock()
	e.deps.Metrics.CyclesCompleted.Inc()

	if err != nil {
		e.deps.Log.Warn("cycle completed with failed leg",
			zap.Int("cycle", seq),
			zap.Error(err))
	} else {
		e.deps.Log.Info("cycle completed",
			zap.Int("cycle", seq),
			zap.Float64("spread_percent", m.Percent),
			zap.Bool("sell_first", sellFirst))
	}

	if e.deps.OnCycle != nil {
		e.deps.OnCycle(CycleRecord{
			Seq:           seq,
			Market:        e.cfg.Market,
			SellFirst:     sellFirst,
			SpreadPercent: m.Percent,
			Mid:           m.Mid,
			Size:          e.cfg.OrderSize,
			OpenOrderID:   pair.Open.OrderID,
			CloseOrderID:  pair.Close.OrderID,
			Success:       pair.Succeeded(),
			At:            time.Now(),
		})
	}
}

// sellFirst picks the opening side. Depth mode shorts when asks outweigh
// bids; fixed mode always buys first.
func (e *Engine) sellFirst(m market.SpreadMeasurement) bool {
	if e.cfg.Direction == config.DirectionDepth {
		return m.Quote.BidSize < m.Quote.AskSize
	}
	return false
}

func (e *Engine) Pause() {
	e.mu.Lock()
	e.paused = true
	e.mu.Unlock()
}

func (e *Engine) Resume() {
	e.mu.Lock()
	e.paused = false
	e.mu.Unlock()
}

func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *Engine) Cycles() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cycles
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Status{
		State:             e.sm.State(),
		CyclesCompleted:   e.cycles,
		MaxCycles:         e.cfg.MaxCycles,
		Skips:             e.skips,
		QuoteFailures:     e.quoteFailures,
		LastSpreadPercent: e.lastSpread,
		Paused:            e.paused,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
