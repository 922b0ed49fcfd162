package rest

import (
	"encoding/json"
	"strconv"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderTypeMarket = "MARKET"
)

type BBO struct {
	Market     string      `json:"market"`
	Bid        FlexFloat   `json:"bid"`
	Ask        FlexFloat   `json:"ask"`
	BidSize    FlexFloat   `json:"bid_size"`
	AskSize    FlexFloat   `json:"ask_size"`
	LastUpdate json.Number `json:"last_updated_at"`
}

type OrderRequest struct {
	Market string `json:"market"`
	Side   string `json:"side"`
	Type   string `json:"type"`
	Size   string `json:"size"`
}

type OrderResult struct {
	ID     string   `json:"id"`
	Status string   `json:"status"`
	Market string   `json:"market"`
	Flags  []string `json:"flags"`
}

type Position struct {
	Market            string    `json:"market"`
	Size              FlexFloat `json:"size"`
	AverageEntryPrice FlexFloat `json:"average_entry_price"`
	UnrealizedPnL     FlexFloat `json:"unrealized_pnl"`
}

type Balance struct {
	Token string    `json:"token"`
	Size  FlexFloat `json:"size"`
}

func (b Balance) SizeFloat() float64 {
	return float64(b.Size)
}

// FlexFloat decodes the venue's stringified decimals as well as bare numbers.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}
