package models

import "time"

// OptionChain represents an option chain snapshot for an index.
type OptionChain struct {
	Symbol    string         `json:"symbol"`
	SpotPrice float64        `json:"spot_price"`
	Expiry    time.Time      `json:"expiry_date"`
	Strikes   []OptionStrike `json:"strikes"`
	ATM       []float64      `json:"atm_strikes"`
}

// OptionStrike represents a single strike row in the option chain.
type OptionStrike struct {
	Strike float64     `json:"strike"`
	Call   *OptionData `json:"ce,omitempty"`
	Put    *OptionData `json:"pe,omitempty"`
}

// OptionData represents quote data for a single option contract.
type OptionData struct {
	Symbol        string       `json:"symbol"`
	LTP           float64      `json:"ltp"`
	LotSize       int          `json:"lot_size"`
	OI            int64        `json:"oi"`
	Volume        int64        `json:"volume"`
	Change        float64      `json:"change"`
	ChangePercent float64      `json:"change_percent"`
	IV            float64      `json:"iv,omitempty"`
	Greeks        OptionGreeks `json:"greeks,omitempty"`
}

// OptionGreeks represents option Greeks.
type OptionGreeks struct {
	Delta float64 `json:"delta"`
	Gamma float64 `json:"gamma"`
	Theta float64 `json:"theta"`
	Vega  float64 `json:"vega"`
}
