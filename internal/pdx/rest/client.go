package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client talks to the Paradex REST API. Authentication is a pre-issued
// bearer token; credential derivation happens outside this process.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

func New(baseURL, token string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// APIError is a non-2xx response from the venue.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paradex api: http %d: %s", e.Status, e.Message)
}

func (c *Client) BBO(ctx context.Context, market string) (BBO, error) {
	if market == "" {
		return BBO{}, errors.New("market is required")
	}
	var out BBO
	if err := c.get(ctx, "/bbo/"+market, &out); err != nil {
		return BBO{}, err
	}
	return out, nil
}

func (c *Client) SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	if req.Market == "" {
		return OrderResult{}, errors.New("order market is required")
	}
	if req.Size == "" {
		return OrderResult{}, errors.New("order size is required")
	}
	if req.Type == "" {
		req.Type = OrderTypeMarket
	}
	var out OrderResult
	if err := c.post(ctx, "/orders", req, &out); err != nil {
		return OrderResult{}, err
	}
	return out, nil
}

func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	var out resultsPage[Position]
	if err := c.get(ctx, "/positions", &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *Client) Balances(ctx context.Context) ([]Balance, error) {
	var out resultsPage[Balance]
	if err := c.get(ctx, "/balance", &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// USDCBalance returns the account's free USDC, or zero when absent.
func (c *Client) USDCBalance(ctx context.Context) (float64, error) {
	balances, err := c.Balances(ctx)
	if err != nil {
		return 0, err
	}
	for _, bal := range balances {
		if strings.EqualFold(bal.Token, "USDC") {
			return bal.SizeFloat(), nil
		}
	}
	return 0, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, payload, out)
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) error {
	url := c.baseURL + path
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type resultsPage[T any] struct {
	Results []T `json:"results"`
}
