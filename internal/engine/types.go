package engine

import "time"

type State string

type Event string

const (
	StateIdle     State = "IDLE"
	StateRunning  State = "RUNNING"
	StateTrading  State = "TRADING"
	StateSkipping State = "SKIPPING"
	StateStopped  State = "STOPPED"
)

const (
	EventStart   Event = "START"
	EventTrade   Event = "TRADE"
	EventSkip    Event = "SKIP"
	EventResolve Event = "RESOLVE"
	EventStop    Event = "STOP"
)

// SkipReason explains why an iteration did not trade.
type SkipReason string

const (
	SkipSpreadWide    SkipReason = "spread_above_threshold"
	SkipDepthThin     SkipReason = "depth_below_minimum"
	SkipVolatility    SkipReason = "volatility_above_maximum"
	SkipRateLimited   SkipReason = "rate_limited"
	SkipPaused        SkipReason = "paused"
	SkipOutOfSchedule SkipReason = "out_of_schedule"
)

// CycleRecord describes one completed trading cycle for downstream sinks.
type CycleRecord struct {
	Seq           int
	Market        string
	SellFirst     bool
	SpreadPercent float64
	Mid           float64
	Size          float64
	OpenOrderID   string
	CloseOrderID  string
	Success       bool
	At            time.Time
}

// Status is a point-in-time engine view for operator reporting.
type Status struct {
	State             State
	CyclesCompleted   int
	MaxCycles         int
	Skips             int
	QuoteFailures     int
	LastSpreadPercent float64
	Paused            bool
}
