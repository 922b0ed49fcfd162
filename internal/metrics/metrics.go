package metrics

type Counter interface {
	Inc()
}

type Gauge interface {
	Set(v float64)
}

type Metrics struct {
	CyclesCompleted  Counter
	CyclesSkipped    Counter
	QuoteFailures    Counter
	OrdersPlaced     Counter
	OrdersFailed     Counter
	RateLimitBlocks  Counter
	LastSpreadPct    Gauge
	VolatilityPct    Gauge
	AccountBalance   Gauge
	SessionVolumeUSD Gauge
}

type noopCounter struct{}

func (noopCounter) Inc() {}

type noopGauge struct{}

func (noopGauge) Set(float64) {}

func NewNoop() *Metrics {
	c := noopCounter{}
	g := noopGauge{}
	return &Metrics{
		CyclesCompleted:  c,
		CyclesSkipped:    c,
		QuoteFailures:    c,
		OrdersPlaced:     c,
		OrdersFailed:     c,
		RateLimitBlocks:  c,
		LastSpreadPct:    g,
		VolatilityPct:    g,
		AccountBalance:   g,
		SessionVolumeUSD: g,
	}
}
