package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"pdx-scalper-bot/internal/config"
	"pdx-scalper-bot/internal/engine"
)

const writeTimeout = 3 * time.Second

// SessionSample is a periodic snapshot of session economics.
type SessionSample struct {
	Time       time.Time
	Balance    float64
	PnL        float64
	Volume     float64
	Pairs      int
	WearPer10K float64
}

// Recorder writes cycle outcomes and session samples to TimescaleDB.
// Writes are queued; a full queue drops rather than blocking the engine.
type Recorder struct {
	db      *sql.DB
	log     *zap.Logger
	schema  string
	cycles  chan engine.CycleRecord
	samples chan SessionSample

	started     atomic.Bool
	dropCycles  atomic.Uint64
	dropSamples atomic.Uint64
}

func New(cfg config.RecorderConfig, log *zap.Logger) (*Recorder, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("recorder dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	r := &Recorder{
		db:      db,
		log:     log,
		schema:  schema,
		cycles:  make(chan engine.CycleRecord, queueSize),
		samples: make(chan SessionSample, queueSize),
	}
	if err := r.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Recorder) Start(ctx context.Context) {
	if r == nil {
		return
	}
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	go r.run(ctx)
}

func (r *Recorder) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Recorder) EnqueueCycle(record engine.CycleRecord) {
	if r == nil {
		return
	}
	select {
	case r.cycles <- record:
		return
	default:
		if r.dropCycles.Add(1) == 1 && r.log != nil {
			r.log.Warn("recorder cycle queue full")
		}
	}
}

func (r *Recorder) EnqueueSample(sample SessionSample) {
	if r == nil {
		return
	}
	select {
	case r.samples <- sample:
		return
	default:
		if r.dropSamples.Add(1) == 1 && r.log != nil {
			r.log.Warn("recorder sample queue full")
		}
	}
}

func (r *Recorder) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case record := <-r.cycles:
			r.writeCycle(ctx, record)
		case sample := <-r.samples:
			r.writeSample(ctx, sample)
		}
	}
}

func (r *Recorder) ensureSchema(ctx context.Context) error {
	if r.db == nil {
		return errors.New("recorder db not initialized")
	}
	if r.schema != "public" {
		if err := r.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", r.schema)); err != nil {
			return err
		}
	}
	if err := r.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		seq INTEGER NOT NULL,
		market TEXT NOT NULL,
		sell_first BOOLEAN NOT NULL,
		spread_percent DOUBLE PRECISION NOT NULL,
		mid DOUBLE PRECISION NOT NULL,
		size DOUBLE PRECISION NOT NULL,
		open_order_id TEXT NOT NULL,
		close_order_id TEXT NOT NULL,
		success BOOLEAN NOT NULL
	)`, r.table("cycles"))); err != nil {
		return err
	}
	if err := r.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		balance DOUBLE PRECISION NOT NULL,
		pnl DOUBLE PRECISION NOT NULL,
		volume DOUBLE PRECISION NOT NULL,
		pairs INTEGER NOT NULL,
		wear_per_10k DOUBLE PRECISION NOT NULL
	)`, r.table("session_samples"))); err != nil {
		return err
	}
	if err := r.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if r.log != nil {
			r.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := r.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", r.table("cycles"))); err != nil && r.log != nil {
		r.log.Warn("cycles hypertable create failed", zap.Error(err))
	}
	if err := r.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", r.table("session_samples"))); err != nil && r.log != nil {
		r.log.Warn("session_samples hypertable create failed", zap.Error(err))
	}
	return nil
}

func (r *Recorder) writeCycle(ctx context.Context, record engine.CycleRecord) {
	if r.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, seq, market, sell_first, spread_percent, mid, size, open_order_id, close_order_id, success
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, r.table("cycles"))
	if _, err := r.db.ExecContext(ctx, query,
		record.At,
		record.Seq,
		record.Market,
		record.SellFirst,
		record.SpreadPercent,
		record.Mid,
		record.Size,
		record.OpenOrderID,
		record.CloseOrderID,
		record.Success,
	); err != nil && r.log != nil {
		r.log.Warn("cycle insert failed", zap.Error(err))
	}
}

func (r *Recorder) writeSample(ctx context.Context, sample SessionSample) {
	if r.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, balance, pnl, volume, pairs, wear_per_10k
	) VALUES ($1,$2,$3,$4,$5,$6)`, r.table("session_samples"))
	if _, err := r.db.ExecContext(ctx, query,
		sample.Time,
		sample.Balance,
		sample.PnL,
		sample.Volume,
		sample.Pairs,
		sample.WearPer10K,
	); err != nil && r.log != nil {
		r.log.Warn("session sample insert failed", zap.Error(err))
	}
}

func (r *Recorder) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := r.db.ExecContext(ctx, query)
	return err
}

func (r *Recorder) table(name string) string {
	return r.schema + "." + name
}
