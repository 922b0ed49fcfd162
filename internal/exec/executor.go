package exec

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"pdx-scalper-bot/internal/pdx/rest"
)

var (
	// ErrOrderRejected means the venue refused the order outright.
	ErrOrderRejected = errors.New("order rejected")
	// ErrOrderTimeout means the order request did not resolve in time.
	ErrOrderTimeout = errors.New("order timed out")
)

type OrderClient interface {
	SubmitOrder(ctx context.Context, req rest.OrderRequest) (rest.OrderResult, error)
}

// Leg is one market order of a cycle pair.
type Leg struct {
	Side    string
	OrderID string
	Status  string
	Err     error
}

// OrderPair is the outcome of one open+close cycle. The close leg is always
// attempted once the open leg has resolved, so a rejected open cannot leave
// a position dangling from a partial fill.
type OrderPair struct {
	Open  Leg
	Close Leg
}

func (p OrderPair) Succeeded() bool {
	return p.Open.Err == nil && p.Close.Err == nil
}

// Executor places the market-order pairs. Orders are never retried within a
// cycle; a failed leg is reported and the next cycle starts clean.
type Executor struct {
	client  OrderClient
	market  string
	timeout time.Duration
	log     *zap.Logger
}

func New(client OrderClient, market string, timeout time.Duration, log *zap.Logger) *Executor {
	return &Executor{client: client, market: market, timeout: timeout, log: log}
}

// ExecutePair opens and then closes a position of the given size. sellFirst
// selects the short direction: sell to open, buy to close.
func (e *Executor) ExecutePair(ctx context.Context, size float64, sellFirst bool) (OrderPair, error) {
	openSide, closeSide := rest.SideBuy, rest.SideSell
	if sellFirst {
		openSide, closeSide = rest.SideSell, rest.SideBuy
	}

	var pair OrderPair
	pair.Open = e.placeLeg(ctx, openSide, size)
	if pair.Open.Err != nil {
		e.log.Warn("open leg failed",
			zap.String("side", pair.Open.Side),
			zap.Error(pair.Open.Err))
	}
	pair.Close = e.placeLeg(ctx, closeSide, size)
	if pair.Close.Err != nil {
		e.log.Warn("close leg failed",
			zap.String("side", pair.Close.Side),
			zap.Error(pair.Close.Err))
	}

	if pair.Open.Err != nil {
		return pair, pair.Open.Err
	}
	return pair, pair.Close.Err
}

// ClosePosition submits one reducing market order for a residual position.
// A positive size is a long being sold off, a negative size a short being
// bought back.
func (e *Executor) ClosePosition(ctx context.Context, size float64) Leg {
	side := rest.SideSell
	if size < 0 {
		side = rest.SideBuy
		size = -size
	}
	return e.placeLeg(ctx, side, size)
}

func (e *Executor) placeLeg(ctx context.Context, side string, size float64) Leg {
	leg := Leg{Side: side}
	legCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.client.SubmitOrder(legCtx, rest.OrderRequest{
		Market: e.market,
		Side:   side,
		Type:   rest.OrderTypeMarket,
		Size:   FormatSize(size),
	})
	if err != nil {
		leg.Err = classify(err)
		return leg
	}
	leg.OrderID = res.ID
	leg.Status = res.Status
	e.log.Debug("order placed",
		zap.String("side", side),
		zap.String("order_id", res.ID),
		zap.String("status", res.Status))
	return leg
}

func classify(err error) error {
	var apiErr *rest.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: %v", ErrOrderRejected, apiErr)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrOrderTimeout, err)
	}
	return err
}

// FormatSize renders an order size as the decimal string the venue expects.
func FormatSize(size float64) string {
	return strconv.FormatFloat(size, 'f', -1, 64)
}
