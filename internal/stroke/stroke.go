// Package stroke implements the stroke builder (C4): it promotes confirmed
// fractals into alternating monotone strokes, enforcing minimum length and
// non-overlap between adjacent endpoints.
package stroke

import (
	"time"

	"github.com/sawpanic/czsc/internal/bar"
	"github.com/sawpanic/czsc/internal/czscerr"
	"github.com/sawpanic/czsc/internal/fractal"
)

// DefaultMinBiK is the minimum number of merged bars required between
// adjacent stroke endpoints.
const DefaultMinBiK = 5

// fractalWindow bounds how many trailing fractals a reprocessing pass
// reconsiders, a performance tuning constant.
const fractalWindow = 100

// Stroke is a confirmed fractal promoted to a stroke endpoint.
type Stroke struct {
	DT    time.Time     `json:"dt"`
	Mark  fractal.Mark  `json:"mark"`
	Price float64       `json:"price"`
	High  float64       `json:"high"`
	Low   float64       `json:"low"`
}

// Builder owns the stroke sequence derived from a fractal series. Not safe
// for concurrent use.
type Builder struct {
	minBiK  int
	strokes []Stroke
}

// New creates a stroke builder requiring at least minBiK merged bars between
// adjacent strokes. minBiK <= 0 falls back to DefaultMinBiK.
func New(minBiK int) *Builder {
	if minBiK <= 0 {
		minBiK = DefaultMinBiK
	}
	return &Builder{minBiK: minBiK}
}

// Strokes returns the current stroke sequence; treat as a snapshot valid
// until the next Update.
func (b *Builder) Strokes() []Stroke {
	return b.strokes
}

// Update recomputes the stroke sequence from the given fractal and merged bar
// series. Drops the last tentative stroke, then reconsiders fractals from the
// stroke tail onward (bounded to the last fractalWindow), and finally
// re-checks tail validity against the merged series.
func (b *Builder) Update(fractals []fractal.Fractal, merged []bar.MergedBar) error {
	if len(fractals) < 2 {
		return czscerr.NewInsufficientData("stroke", 2, len(fractals))
	}

	if len(b.strokes) == 0 {
		b.strokes = append(b.strokes, fromFractal(fractals[0]), fromFractal(fractals[1]))
	}

	// Drop the last tentative stroke before every reprocessing pass, the
	// same retrograde discipline as the merger and fractal detector. Keep at
	// least one stroke on the books so the tail-anchor below never runs out
	// of bounds.
	if len(b.strokes) > 1 {
		b.strokes = b.strokes[:len(b.strokes)-1]
	}

	tailDT := b.strokes[len(b.strokes)-1].DT
	source := fractals
	if len(b.strokes) > 2 && len(source) > fractalWindow {
		source = source[len(source)-fractalWindow:]
	}
	var candidates []fractal.Fractal
	for _, f := range source {
		if f.DT.After(tailDT) {
			candidates = append(candidates, f)
		}
	}

	for _, fx := range candidates {
		last := b.strokes[len(b.strokes)-1]

		if fx.Mark == last.Mark {
			switch fx.Mark {
			case fractal.Top:
				if fx.Price > last.Price {
					b.strokes[len(b.strokes)-1] = fromFractal(fx)
				}
			case fractal.Bottom:
				if fx.Price < last.Price {
					b.strokes[len(b.strokes)-1] = fromFractal(fx)
				}
			default:
				return czscerr.NewInternalInvariant("stroke-mark", "fractal mark must be top or bottom, got %q", fx.Mark)
			}
			continue
		}

		count := countMergedInRange(merged, last.DT, fx.DT)
		if count < b.minBiK {
			continue
		}
		if !nonOverlap(last, fx) {
			continue
		}
		b.strokes = append(b.strokes, fromFractal(fx))
	}

	b.enforceTailValidity(merged)

	return nil
}

// enforceTailValidity pops the last stroke if subsequent merged bars broke it:
// a bottom stroke invalidated by a lower low, a top stroke by a higher high.
func (b *Builder) enforceTailValidity(merged []bar.MergedBar) {
	for len(b.strokes) > 0 {
		last := b.strokes[len(b.strokes)-1]
		broken := false
		for _, m := range merged {
			if !m.DT.After(last.DT) {
				continue
			}
			switch last.Mark {
			case fractal.Bottom:
				if m.Low < last.Price {
					broken = true
				}
			case fractal.Top:
				if m.High > last.Price {
					broken = true
				}
			}
			if broken {
				break
			}
		}
		if !broken {
			return
		}
		b.strokes = b.strokes[:len(b.strokes)-1]
	}
}

// Trim retains only the last n strokes, used by the retention pass.
func (b *Builder) Trim(n int) {
	if n >= 0 && len(b.strokes) > n {
		b.strokes = b.strokes[len(b.strokes)-n:]
	}
}

// nonOverlap checks I5: adjacent (top, bottom) requires cur.high < prev.low;
// adjacent (bottom, top) requires cur.low > prev.high.
func nonOverlap(prev Stroke, cur fractal.Fractal) bool {
	switch prev.Mark {
	case fractal.Top:
		return cur.High < prev.Low
	case fractal.Bottom:
		return cur.Low > prev.High
	default:
		return false
	}
}

func countMergedInRange(merged []bar.MergedBar, start, end time.Time) int {
	n := 0
	for _, m := range merged {
		if !m.DT.Before(start) && !m.DT.After(end) {
			n++
		}
	}
	return n
}

func fromFractal(f fractal.Fractal) Stroke {
	return Stroke{DT: f.DT, Mark: f.Mark, Price: f.Price, High: f.High, Low: f.Low}
}
