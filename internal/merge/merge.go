// Package merge implements the containment merger (C2): it maintains a
// containment-free bar series incrementally from an append-only raw bar
// sequence, re-deriving only a bounded tail on every update.
package merge

import (
	"github.com/sawpanic/czsc/internal/bar"
	"github.com/sawpanic/czsc/internal/czscerr"
)

// retrogradeDrop is the number of trailing merged bars discarded before every
// reprocessing pass, per spec.md §4.1 — absorbs retroactive changes caused by
// an in-progress (replaced) latest raw bar.
const retrogradeDrop = 2

// rawWindow bounds how far back into the raw series a reprocessing pass looks
// once the merged series is past its seed, a performance tuning constant, not
// a correctness boundary.
const rawWindow = 100

// Merger owns the containment-free bar sequence derived from a raw bar
// series. It is not safe for concurrent use.
type Merger struct {
	bars []bar.MergedBar
}

// New creates an empty merger.
func New() *Merger {
	return &Merger{}
}

// Bars returns the current containment-free sequence. The returned slice must
// not be mutated by the caller; treat it as a snapshot valid until the next
// Update.
func (m *Merger) Bars() []bar.MergedBar {
	return m.bars
}

// Update recomputes the containment-free series from the given raw bar
// sequence (already bounded to max_raw_len by the caller). It seeds from the
// first four raw bars on the very first call (containment merging is not
// associative across direction changes, so seeding with a single raw bar
// would produce a different result than seeding with four), then drops the
// last retrogradeDrop bars and reprocesses every raw bar newer than the new
// tail.
func (m *Merger) Update(raw []bar.RawBar) error {
	if len(m.bars) == 0 {
		if len(raw) < 4 {
			return czscerr.NewInsufficientData("merge", 4, len(raw))
		}
		m.bars = make([]bar.MergedBar, 0, 4)
		for _, r := range raw[:4] {
			m.bars = append(m.bars, bar.FromRaw(r))
		}
	}

	drop := retrogradeDrop
	if drop > len(m.bars) {
		drop = len(m.bars)
	}
	m.bars = m.bars[:len(m.bars)-drop]
	if len(m.bars) < 2 {
		// Not enough tail survived the drop to resume incremental processing
		// this round; clearing the series makes the next Update call reseed
		// from the raw bars and catch up.
		m.bars = nil
		return nil
	}

	var window []bar.RawBar
	tailDT := m.bars[len(m.bars)-1].DT
	source := raw
	if len(m.bars) > 4 {
		if len(raw) > rawWindow {
			source = raw[len(raw)-rawWindow:]
		}
	}
	for _, r := range source {
		if r.DT.After(tailDT) {
			window = append(window, r)
		}
	}

	for _, r := range window {
		last := m.bars[len(m.bars)-1]
		prev := m.bars[len(m.bars)-2]

		direction := "down"
		if last.High > prev.High {
			direction = "up"
		}

		cur := bar.FromRaw(r)
		if bar.Contains(cur, last) {
			m.bars = m.bars[:len(m.bars)-1]
			merged := cur
			switch direction {
			case "up":
				merged.High = max(last.High, cur.High)
				merged.Low = max(last.Low, cur.Low)
			case "down":
				merged.High = min(last.High, cur.High)
				merged.Low = min(last.Low, cur.Low)
			default:
				return czscerr.NewInternalInvariant("merge-direction", "direction must be up or down, got %q", direction)
			}
			if r.Open >= r.Close {
				merged.Open, merged.Close = merged.High, merged.Low
			} else {
				merged.Open, merged.Close = merged.Low, merged.High
			}
			m.bars = append(m.bars, merged)
			tailDT = merged.DT
			continue
		}

		m.bars = append(m.bars, cur)
		tailDT = cur.DT
	}

	return nil
}

// Trim retains only the last n merged bars, used by the retention pass after
// the raw series exceeds max_raw_len.
func (m *Merger) Trim(n int) {
	if n >= 0 && len(m.bars) > n {
		m.bars = m.bars[len(m.bars)-n:]
	}
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
