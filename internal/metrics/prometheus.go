package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "pdx_scalper"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type promGauge struct {
	gauge prometheus.Gauge
}

func (p promGauge) Set(v float64) {
	p.gauge.Set(v)
}

type Prometheus struct {
	Metrics *Metrics

	registry        *prometheus.Registry
	cyclesCompleted prometheus.Counter
	cyclesSkipped   prometheus.Counter
	quoteFailures   prometheus.Counter
	ordersPlaced    prometheus.Counter
	ordersFailed    prometheus.Counter
	rateLimitBlocks prometheus.Counter
	lastSpreadPct   prometheus.Gauge
	volatilityPct   prometheus.Gauge
	accountBalance  prometheus.Gauge
	sessionVolume   prometheus.Gauge
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	cyclesCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cycles_completed_total",
		Help:      "Total number of completed open+close cycles.",
	})
	cyclesSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "cycles_skipped_total",
		Help:      "Total number of iterations skipped by entry gates.",
	})
	quoteFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "quote_failures_total",
		Help:      "Total number of failed spread measurements.",
	})
	ordersPlaced := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_placed_total",
		Help:      "Total number of orders placed.",
	})
	ordersFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "orders_failed_total",
		Help:      "Total number of order placement failures.",
	})
	rateLimitBlocks := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: promNamespace,
		Name:      "rate_limit_blocks_total",
		Help:      "Total number of iterations blocked by the request budget.",
	})
	lastSpreadPct := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "last_spread_percent",
		Help:      "Most recently observed relative spread in percent.",
	})
	volatilityPct := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "volatility_percent",
		Help:      "Rolling mid-price range in percent.",
	})
	accountBalance := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "account_balance_usdc",
		Help:      "Last known USDC account balance.",
	})
	sessionVolume := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: promNamespace,
		Name:      "session_volume_usd",
		Help:      "Cumulative traded volume this session in USD.",
	})

	registry.MustRegister(cyclesCompleted, cyclesSkipped, quoteFailures, ordersPlaced, ordersFailed,
		rateLimitBlocks, lastSpreadPct, volatilityPct, accountBalance, sessionVolume)

	m := &Metrics{
		CyclesCompleted:  promCounter{cyclesCompleted},
		CyclesSkipped:    promCounter{cyclesSkipped},
		QuoteFailures:    promCounter{quoteFailures},
		OrdersPlaced:     promCounter{ordersPlaced},
		OrdersFailed:     promCounter{ordersFailed},
		RateLimitBlocks:  promCounter{rateLimitBlocks},
		LastSpreadPct:    promGauge{lastSpreadPct},
		VolatilityPct:    promGauge{volatilityPct},
		AccountBalance:   promGauge{accountBalance},
		SessionVolumeUSD: promGauge{sessionVolume},
	}

	return &Prometheus{
		Metrics:         m,
		registry:        registry,
		cyclesCompleted: cyclesCompleted,
		cyclesSkipped:   cyclesSkipped,
		quoteFailures:   quoteFailures,
		ordersPlaced:    ordersPlaced,
		ordersFailed:    ordersFailed,
		rateLimitBlocks: rateLimitBlocks,
		lastSpreadPct:   lastSpreadPct,
		volatilityPct:   volatilityPct,
		accountBalance:  accountBalance,
		sessionVolume:   sessionVolume,
	}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
