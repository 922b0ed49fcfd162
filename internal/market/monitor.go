package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"pdx-scalper-bot/internal/pdx/rest"
)

// ErrQuoteUnavailable covers every failure to obtain a usable book:
// upstream errors, timeouts, empty or crossed books, stale data.
var ErrQuoteUnavailable = errors.New("quote unavailable")

type Quote struct {
	Bid     float64
	Ask     float64
	BidSize float64
	AskSize float64
	At      time.Time
}

// SpreadMeasurement is the relative spread in percent, computed against mid.
type SpreadMeasurement struct {
	Quote   Quote
	Mid     float64
	Percent float64
}

type BBOSource interface {
	BBO(ctx context.Context, market string) (rest.BBO, error)
}

// Monitor serves the freshest best-bid/ask for a single market. A WebSocket
// feed keeps the cache hot; REST is the fallback when the cache is stale.
type Monitor struct {
	source  BBOSource
	market  string
	maxAge  time.Duration
	timeout time.Duration
	log     *zap.Logger
	vol     *VolatilityWindow
	now     func() time.Time

	mu   sync.RWMutex
	last Quote
}

func NewMonitor(source BBOSource, market string, maxAge, timeout time.Duration, vol *VolatilityWindow, log *zap.Logger) *Monitor {
	return &Monitor{
		source:  source,
		market:  market,
		maxAge:  maxAge,
		timeout: timeout,
		log:     log,
		vol:     vol,
		now:     time.Now,
	}
}

// ApplyUpdate ingests a pushed BBO payload.
func (m *Monitor) ApplyUpdate(data json.RawMessage) {
	var bbo rest.BBO
	if err := json.Unmarshal(data, &bbo); err != nil {
		if m.log != nil {
			m.log.Warn("bbo update decode failed", zap.Error(err))
		}
		return
	}
	m.record(quoteFromBBO(bbo, m.now()))
}

// Spread returns the current relative spread. The cached quote is used when
// fresh enough; otherwise one bounded REST fetch is attempted.
func (m *Monitor) Spread(ctx context.Context) (SpreadMeasurement, error) {
	now := m.now()
	m.mu.RLock()
	last := m.last
	m.mu.RUnlock()

	if !last.At.IsZero() && now.Sub(last.At) <= m.maxAge {
		return computeSpread(last)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	bbo, err := m.source.BBO(fetchCtx, m.market)
	if err != nil {
		return SpreadMeasurement{}, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
	}
	quote := quoteFromBBO(bbo, m.now())
	m.record(quote)
	return computeSpread(quote)
}

// Volatility reports the rolling mid-price range in percent.
func (m *Monitor) Volatility() float64 {
	if m.vol == nil {
		return 0
	}
	return m.vol.Percent(m.now())
}

func (m *Monitor) record(quote Quote) {
	if quote.Bid <= 0 || quote.Ask <= 0 {
		return
	}
	m.mu.Lock()
	m.last = quote
	m.mu.Unlock()
	if m.vol != nil {
		m.vol.Add((quote.Bid+quote.Ask)/2, quote.At)
	}
}

func computeSpread(quote Quote) (SpreadMeasurement, error) {
	if quote.Bid <= 0 || quote.Ask <= 0 {
		return SpreadMeasurement{}, fmt.Errorf("%w: empty book", ErrQuoteUnavailable)
	}
	if quote.Ask < quote.Bid {
		return SpreadMeasurement{}, fmt.Errorf("%w: crossed book", ErrQuoteUnavailable)
	}
	mid := (quote.Bid + quote.Ask) / 2
	return SpreadMeasurement{
		Quote:   quote,
		Mid:     mid,
		Percent: (quote.Ask - quote.Bid) / mid * 100,
	}, nil
}

func quoteFromBBO(bbo rest.BBO, at time.Time) Quote {
	return Quote{
		Bid:     float64(bbo.Bid),
		Ask:     float64(bbo.Ask),
		BidSize: float64(bbo.BidSize),
		AskSize: float64(bbo.AskSize),
		At:      at,
	}
}
