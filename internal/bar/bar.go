// Package bar defines the raw and containment-free candle types shared by every
// stage of the analyzer pipeline, plus the technical indicators computed over them.
package bar

import "time"

// RawBar is a single OHLCV candle as received from a data-source adapter.
type RawBar struct {
	Symbol string    `json:"symbol"`
	DT     time.Time `json:"dt"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Vol    float64   `json:"vol"`
}

// MergedBar is a containment-free candle produced by the merger (C2). It carries
// the same shape as RawBar minus the symbol, since a merged bar may have absorbed
// several raw bars.
type MergedBar struct {
	DT    time.Time `json:"dt"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
	Vol   float64   `json:"vol"`
}

// Contains reports whether a is fully covered by b's high/low range, or
// vice versa — the containment relation checked by the merger (invariant I1).
func Contains(a, b MergedBar) bool {
	return (a.High <= b.High && a.Low >= b.Low) || (a.High >= b.High && a.Low <= b.Low)
}

// FromRaw copies a RawBar into a MergedBar, dropping the symbol.
func FromRaw(r RawBar) MergedBar {
	return MergedBar{DT: r.DT, Open: r.Open, High: r.High, Low: r.Low, Close: r.Close, Vol: r.Vol}
}
