// Package fractal implements the fractal detector (C3): it scans the
// containment-free bar series for local top/bottom triples and maintains the
// fractal sequence incrementally.
package fractal

import (
	"time"

	"github.com/sawpanic/czsc/internal/bar"
	"github.com/sawpanic/czsc/internal/czscerr"
)

// Mark is the kind of a fractal or, once promoted, a stroke/segment endpoint.
type Mark string

const (
	Top    Mark = "top"
	Bottom Mark = "bottom"
)

// Fractal is a local extremum over three consecutive merged bars (invariant
// I2: it always references an interior merged bar).
type Fractal struct {
	DT    time.Time `json:"dt"`
	Mark  Mark      `json:"mark"`
	Price float64   `json:"price"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
}

// mergedWindow bounds how far back a reprocessing pass looks once more than
// one fractal has been confirmed — a performance tuning constant.
const mergedWindow = 100

// Detector owns the fractal sequence derived from a containment-free bar
// series. Not safe for concurrent use.
type Detector struct {
	fractals []Fractal
}

// New creates an empty fractal detector.
func New() *Detector {
	return &Detector{}
}

// Fractals returns the current fractal sequence; treat as a snapshot valid
// until the next Update.
func (d *Detector) Fractals() []Fractal {
	return d.fractals
}

// Update recomputes the fractal sequence from the given merged bar series.
// Drops the last tentative fractal, then rescans merged bars from that tail
// onward (or from the start, if no fractal exists yet).
func (d *Detector) Update(merged []bar.MergedBar) error {
	if len(merged) < 3 {
		return czscerr.NewInsufficientData("fractal", 3, len(merged))
	}

	if len(d.fractals) > 0 {
		d.fractals = d.fractals[:len(d.fractals)-1]
	}

	var kn []bar.MergedBar
	if len(d.fractals) == 0 {
		kn = merged
	} else {
		tailDT := d.fractals[len(d.fractals)-1].DT
		source := merged
		if len(source) > mergedWindow {
			source = source[len(source)-mergedWindow:]
		}
		for _, k := range source {
			if !k.DT.Before(tailDT) {
				kn = append(kn, k)
			}
		}
	}

	for i := 1; i+1 < len(kn); i++ {
		k1, k2, k3 := kn[i-1], kn[i], kn[i+1]

		switch {
		case k1.High < k2.High && k2.High > k3.High:
			d.fractals = append(d.fractals, Fractal{
				DT:    k2.DT,
				Mark:  Top,
				Price: k2.High,
				High:  k2.High,
				Low:   maxf(k1.Low, k3.Low),
			})
		case k1.Low > k2.Low && k2.Low < k3.Low:
			d.fractals = append(d.fractals, Fractal{
				DT:    k2.DT,
				Mark:  Bottom,
				Price: k2.Low,
				High:  minf(k1.High, k3.High),
				Low:   k2.Low,
			})
		}
	}

	return nil
}

// Trim retains only the last n fractals, used by the retention pass.
func (d *Detector) Trim(n int) {
	if n >= 0 && len(d.fractals) > n {
		d.fractals = d.fractals[len(d.fractals)-n:]
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
