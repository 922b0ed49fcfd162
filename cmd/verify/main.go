package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"pdx-scalper-bot/internal/config"
	"pdx-scalper-bot/internal/exec"
	"pdx-scalper-bot/internal/logging"
	"pdx-scalper-bot/internal/market"
	"pdx-scalper-bot/internal/pdx/rest"
	"pdx-scalper-bot/internal/state"
	"pdx-scalper-bot/internal/state/sqlite"
)

// verify is the preflight check: it confirms credentials, connectivity and
// order parameters before the bot is allowed near real money.

const (
	defaultRESTBaseURL  = "https://api.prod.paradex.trade/v1"
	defaultRESTTimeout  = 10 * time.Second
	defaultVerifyEnvKey = ".env"
)

func main() {
	configPath := flag.String("config", "", "optional config path for REST settings")
	placeOrder := flag.Bool("place-order", false, "place one open+close pair at the configured size")
	flag.Parse()

	if err := config.LoadEnv(defaultVerifyEnvKey); err != nil {
		fatal(err)
	}

	logCfg := config.LoggingConfig{Level: "info"}
	baseURL := defaultRESTBaseURL
	timeout := defaultRESTTimeout
	marketName := "BTC-USD-PERP"
	orderSize := 0.006
	statePath := "data/pdx-scalper.db"
	var cfg *config.Config
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fatal(err)
		}
		cfg = loaded
		logCfg = cfg.Log
		baseURL = cfg.REST.BaseURL
		timeout = cfg.REST.Timeout
		marketName = cfg.Cycle.Market
		orderSize = cfg.Cycle.OrderSize
		statePath = cfg.State.SQLitePath
	}

	log := logging.New(logCfg)
	defer func() { _ = log.Sync() }()

	printLastSession(statePath)

	token := strings.TrimSpace(os.Getenv("PDX_API_TOKEN"))
	if token == "" {
		fatal(errors.New("PDX_API_TOKEN is required"))
	}

	client := rest.New(baseURL, token, timeout, log)
	ctx := context.Background()

	balance, err := client.USDCBalance(ctx)
	if err != nil {
		fatal(fmt.Errorf("balance check failed (token valid?): %w", err))
	}
	fmt.Printf("balance: %.4f USDC\n", balance)

	bbo, err := client.BBO(ctx, marketName)
	if err != nil {
		fatal(fmt.Errorf("bbo fetch failed for %s: %w", marketName, err))
	}
	quote := market.Quote{
		Bid:     float64(bbo.Bid),
		Ask:     float64(bbo.Ask),
		BidSize: float64(bbo.BidSize),
		AskSize: float64(bbo.AskSize),
	}
	mid := (quote.Bid + quote.Ask) / 2
	spread := 0.0
	if mid > 0 {
		spread = (quote.Ask - quote.Bid) / mid * 100
	}
	fmt.Printf("bbo %s: bid=%.2f ask=%.2f spread=%.6f%% depth=%.4f/%.4f\n",
		marketName, quote.Bid, quote.Ask, spread, quote.BidSize, quote.AskSize)

	positions, err := client.Positions(ctx)
	if err != nil {
		fatal(fmt.Errorf("positions fetch failed: %w", err))
	}
	open := 0
	for _, p := range positions {
		if float64(p.Size) != 0 {
			open++
			fmt.Printf("open position: %s size=%s\n", p.Market, exec.FormatSize(float64(p.Size)))
		}
	}
	if open == 0 {
		fmt.Println("no open positions")
	}

	if !*placeOrder {
		fmt.Printf("dry run complete; pass -place-order to trade one %s pair of size %s\n",
			marketName, exec.FormatSize(orderSize))
		return
	}

	executor := exec.New(client, marketName, timeout, log)
	pair, err := executor.ExecutePair(ctx, orderSize, false)
	if pair.Open.OrderID != "" {
		fmt.Printf("open leg: id=%s status=%s\n", pair.Open.OrderID, pair.Open.Status)
	}
	if pair.Close.OrderID != "" {
		fmt.Printf("close leg: id=%s status=%s\n", pair.Close.OrderID, pair.Close.Status)
	}
	if err != nil {
		fatal(fmt.Errorf("verify pair failed: %w", err))
	}
	fmt.Println("verify pair complete")
}

// printLastSession reports how the previous run ended, when a state database
// exists at the configured path.
func printLastSession(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	store, err := sqlite.New(path)
	if err != nil {
		fmt.Printf("state db unreadable: %v\n", err)
		return
	}
	defer store.Close()
	snapshot, ok, err := state.LoadSessionSnapshot(context.Background(), store)
	if err != nil {
		fmt.Printf("last session unreadable: %v\n", err)
		return
	}
	if !ok {
		return
	}
	fmt.Printf("last session: %s %s, %d cycles, %d skips, %d quote failures, ended %s\n",
		snapshot.Market, snapshot.State, snapshot.CyclesCompleted, snapshot.Skips,
		snapshot.QuoteFailures, time.UnixMilli(snapshot.UpdatedAtMS).UTC().Format(time.RFC3339))
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
