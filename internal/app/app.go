package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"pdx-scalper-bot/internal/account"
	"pdx-scalper-bot/internal/alerts"
	"pdx-scalper-bot/internal/config"
	"pdx-scalper-bot/internal/engine"
	"pdx-scalper-bot/internal/exec"
	"pdx-scalper-bot/internal/market"
	"pdx-scalper-bot/internal/metrics"
	"pdx-scalper-bot/internal/pdx/rest"
	"pdx-scalper-bot/internal/pdx/ws"
	"pdx-scalper-bot/internal/ratelimit"
	"pdx-scalper-bot/internal/recorder"
	"pdx-scalper-bot/internal/schedule"
	"pdx-scalper-bot/internal/state"
	"pdx-scalper-bot/internal/state/sqlite"
	"pdx-scalper-bot/internal/stop"
)

const sampleInterval = 30 * time.Second

type App struct {
	cfg      *config.Config
	log      *zap.Logger
	store    *sqlite.Store
	rest     *rest.Client
	ws       *ws.Client
	monitor  *market.Monitor
	tracker  *account.Tracker
	executor *exec.Executor
	engine   *engine.Engine
	metrics  *metrics.Metrics
	prom     *metrics.Prometheus
	alerts   *alerts.Telegram
	schedule *schedule.Schedule
	limiter  *ratelimit.Limiter
	recorder *recorder.Recorder
	manual   *stop.Manual

	operatorWarned bool
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	token := strings.TrimSpace(os.Getenv("PDX_API_TOKEN"))
	if token == "" {
		return nil, errors.New("PDX_API_TOKEN is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.State.SQLitePath), 0o755); err != nil {
		return nil, err
	}
	store, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}

	restClient := rest.New(cfg.REST.BaseURL, token, cfg.REST.Timeout, log)
	wsClient := ws.New(cfg.WS.URL, cfg.WS.ReconnectDelay, cfg.WS.PingInterval, log)

	vol := market.NewVolatilityWindow(cfg.Filters.VolatilityWindow)
	monitor := market.NewMonitor(restClient, cfg.Cycle.Market, cfg.Filters.MaxQuoteAge, cfg.Cycle.QuoteTimeout, vol, log)
	tracker := account.NewTracker(restClient, log)
	executor := exec.New(restClient, cfg.Cycle.Market, cfg.Cycle.OrderTimeout, log)

	limiter := ratelimit.New(
		ratelimit.Window{Name: "minute", Limit: cfg.RateLimit.PerMinute, Period: time.Minute},
		ratelimit.Window{Name: "hour", Limit: cfg.RateLimit.PerHour, Period: time.Hour},
		ratelimit.Window{Name: "day", Limit: cfg.RateLimit.PerDay, Period: 24 * time.Hour},
	)

	var prom *metrics.Prometheus
	m := metrics.NewNoop()
	if cfg.Metrics.EnabledValue() {
		prom = metrics.NewPrometheus()
		m = prom.Metrics
	}

	alertsClient := alerts.NewTelegram(cfg.Telegram, log)
	sched := schedule.New(store)
	manual := stop.NewManual()

	rec, err := recorder.New(cfg.Recorder, log)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		store:    store,
		rest:     restClient,
		ws:       wsClient,
		monitor:  monitor,
		tracker:  tracker,
		executor: executor,
		metrics:  m,
		prom:     prom,
		alerts:   alertsClient,
		schedule: sched,
		limiter:  limiter,
		recorder: rec,
		manual:   manual,
	}

	sentinel := stop.NewSentinel(cfg.Stop.SentinelPath, log)
	a.engine = engine.New(cfg.Cycle, cfg.Filters, engine.Deps{
		Quotes:   monitor,
		Executor: executor,
		Limiter:  limiter,
		Stop:     stop.Any{sentinel, manual},
		Active:   sched.Active,
		Metrics:  m,
		OnCycle:  a.onCycle,
		Log:      log,
	})
	return a, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	defer a.recorder.Close()

	if err := a.tracker.Init(ctx); err != nil {
		a.log.Warn("initial balance fetch failed", zap.Error(err))
	} else {
		a.metrics.AccountBalance.Set(a.tracker.Summary().CurrentBalance)
	}

	a.recorder.Start(ctx)
	a.startFeed(ctx)
	stopMetrics := a.startMetricsServer()
	defer stopMetrics()
	a.startOperator(ctx)
	go a.sampleLoop(ctx)

	if a.alerts.Enabled() {
		if err := a.alerts.Send(ctx, fmt.Sprintf("scalper started: %s size %s threshold %.4f%% budget %d cycles",
			a.cfg.Cycle.Market, exec.FormatSize(a.cfg.Cycle.OrderSize),
			a.cfg.Cycle.SpreadThresholdPercent, a.cfg.Cycle.MaxCycles)); err != nil {
			a.log.Warn("alert send failed", zap.Error(err))
		}
	}

	runErr := a.engine.Run(ctx)

	a.flattenResidual(context.WithoutCancel(ctx))
	a.saveSnapshot(context.WithoutCancel(ctx))
	a.sendSummary(context.WithoutCancel(ctx))
	return runErr
}

// RequestStop flips the in-process stop flag; the engine halts within one
// interval.
func (a *App) RequestStop() {
	a.manual.Stop()
}

func (a *App) onCycle(record engine.CycleRecord) {
	a.tracker.RecordPair(record.Size * record.Mid)
	summary := a.tracker.Summary()
	a.metrics.SessionVolumeUSD.Set(summary.Volume)
	a.recorder.EnqueueCycle(record)
}

// startFeed keeps the BBO cache hot over WebSocket. The engine falls back to
// REST when the feed is down, so failures here are not fatal.
func (a *App) startFeed(ctx context.Context) {
	channel := ws.BBOChannel(a.cfg.Cycle.Market)
	go func() {
		if err := a.ws.Connect(ctx); err != nil {
			a.log.Warn("ws connect failed, using rest quotes", zap.Error(err))
		} else if err := a.ws.Subscribe(ctx, channel); err != nil {
			a.log.Warn("ws subscribe failed, using rest quotes", zap.Error(err))
		}
		_ = a.ws.Run(ctx, func(env ws.Envelope) {
			if env.Params.Channel != channel {
				return
			}
			a.monitor.ApplyUpdate(env.Params.Data)
		})
	}()
}

func (a *App) startMetricsServer() func() {
	if a.prom == nil {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, a.prom.Handler())
	server := &http.Server{Addr: a.cfg.Metrics.Address, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Warn("metrics server failed", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}

// sampleLoop refreshes the balance and pushes session samples downstream.
func (a *App) sampleLoop(ctx context.Context) {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if balance, err := a.tracker.Refresh(ctx); err == nil {
				a.metrics.AccountBalance.Set(balance)
			}
			summary := a.tracker.Summary()
			a.metrics.VolatilityPct.Set(a.monitor.Volatility())
			a.recorder.EnqueueSample(recorder.SessionSample{
				Time:       time.Now().UTC(),
				Balance:    summary.CurrentBalance,
				PnL:        summary.PnL,
				Volume:     summary.Volume,
				Pairs:      summary.Pairs,
				WearPer10K: summary.WearPer10K,
			})
		}
	}
}

// flattenResidual closes any position left behind by a half-filled pair so
// the session never ends with open exposure.
func (a *App) flattenResidual(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	positions, err := a.rest.Positions(checkCtx)
	if err != nil {
		a.log.Warn("residual position check failed", zap.Error(err))
		return
	}
	for _, p := range positions {
		if p.Market != a.cfg.Cycle.Market || float64(p.Size) == 0 {
			continue
		}
		a.log.Warn("closing residual position",
			zap.String("market", p.Market),
			zap.String("size", exec.FormatSize(float64(p.Size))))
		leg := a.executor.ClosePosition(checkCtx, float64(p.Size))
		if leg.Err != nil {
			a.log.Error("residual close failed", zap.Error(leg.Err))
		} else {
			a.log.Info("residual position closed", zap.String("order_id", leg.OrderID))
		}
	}
}

func (a *App) saveSnapshot(ctx context.Context) {
	status := a.engine.Status()
	snapshot := state.SessionSnapshot{
		State:             string(status.State),
		Market:            a.cfg.Cycle.Market,
		CyclesCompleted:   status.CyclesCompleted,
		Skips:             status.Skips,
		QuoteFailures:     status.QuoteFailures,
		LastSpreadPercent: status.LastSpreadPercent,
		UpdatedAtMS:       time.Now().UnixMilli(),
	}
	saveCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := state.SaveSessionSnapshot(saveCtx, a.store, snapshot); err != nil {
		a.log.Warn("session snapshot save failed", zap.Error(err))
	}
}

func (a *App) sendSummary(ctx context.Context) {
	if _, err := a.tracker.Refresh(ctx); err != nil {
		a.log.Debug("final balance refresh failed", zap.Error(err))
	}
	status := a.engine.Status()
	summary := a.tracker.Summary()
	a.log.Info("session finished",
		zap.Int("cycles_completed", status.CyclesCompleted),
		zap.Int("skips", status.Skips),
		zap.Int("quote_failures", status.QuoteFailures),
		zap.Float64("volume_usd", summary.Volume),
		zap.Float64("pnl_usdc", summary.PnL),
		zap.Float64("wear_per_10k", summary.WearPer10K))
	if !a.alerts.Enabled() {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	msg := fmt.Sprintf("scalper finished: %d/%d cycles, %d skips, volume %.2f USD, pnl %.4f USDC, wear %.4f/10k",
		status.CyclesCompleted, status.MaxCycles, status.Skips, summary.Volume, summary.PnL, summary.WearPer10K)
	if err := a.alerts.Send(sendCtx, msg); err != nil {
		a.log.Warn("summary alert failed", zap.Error(err))
	}
}
