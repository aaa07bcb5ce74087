package models

import "time"

// -----------------------------------------------------------------------------
// MPositionEntry tracks one held symbol: created on fill, mutated on every
// observed price, deleted on exit.
// -----------------------------------------------------------------------------

type MPositionEntry struct {
	Symbol         string    `json:"symbol"`
	EntryTime      time.Time `json:"entry_time"`
	EntryPrice     float64   `json:"entry_price"`
	EntrySentiment float64   `json:"entry_sentiment"`
	Sources        []string  `json:"sources"`
	Qty            float64   `json:"qty"`
	PeakPrice      float64   `json:"peak_price"` // trailing high since entry
	LastPrice      float64   `json:"last_price"`
	IsCrypto       bool      `json:"is_crypto"`
}

// -----------------------------------------------------------------------------

// ObservePrice updates the mark and the trailing peak.
func (p *MPositionEntry) ObservePrice(price float64) {
	if price <= 0 {
		return
	}
	p.LastPrice = price
	if price > p.PeakPrice {
		p.PeakPrice = price
	}
}

// -----------------------------------------------------------------------------

// ReturnPercent is the unrealized return against entry, in percent.
func (p *MPositionEntry) ReturnPercent() float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return (p.LastPrice - p.EntryPrice) / p.EntryPrice * 100
}

// -----------------------------------------------------------------------------

// DrawdownFromPeakPercent is how far the mark has fallen from the trailing
// peak, in percent (positive number).
func (p *MPositionEntry) DrawdownFromPeakPercent() float64 {
	if p.PeakPrice <= 0 {
		return 0
	}
	return (p.PeakPrice - p.LastPrice) / p.PeakPrice * 100
}
