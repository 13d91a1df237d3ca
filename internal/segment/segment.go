// Package segment implements the segment builder (C5): it assembles
// higher-order segments from the stroke series using the two-case
// (gap / no-gap) confirmation rule.
package segment

import (
	"sort"
	"time"

	"github.com/sawpanic/czsc/internal/bar"
	"github.com/sawpanic/czsc/internal/czscerr"
	"github.com/sawpanic/czsc/internal/fractal"
	"github.com/sawpanic/czsc/internal/stroke"
)

// strokeWindow bounds how many trailing strokes a reprocessing pass
// reconsiders, a performance tuning constant.
const strokeWindow = 200

// Segment is an endpoint of a higher-order leg; it always coincides with a
// stroke endpoint.
type Segment struct {
	DT    time.Time    `json:"dt"`
	Mark  fractal.Mark `json:"mark"`
	Price float64      `json:"price"`
}

// Builder owns the segment sequence derived from a stroke series. Not safe
// for concurrent use.
type Builder struct {
	segments []Segment
}

// New creates an empty segment builder.
func New() *Builder {
	return &Builder{}
}

// Segments returns the current segment sequence; treat as a snapshot valid
// until the next Update.
func (b *Builder) Segments() []Segment {
	return b.segments
}

// Update recomputes the segment sequence from the given stroke and merged
// bar series. Drops the last two tentative segments, then reconsiders
// strokes from the segment tail onward (bounded to the last strokeWindow),
// applying the two-case rule for exact 4-stroke separations.
func (b *Builder) Update(strokes []stroke.Stroke, merged []bar.MergedBar) error {
	if len(strokes) < 4 {
		return czscerr.NewInsufficientData("segment", 4, len(strokes))
	}

	if len(b.segments) >= 2 {
		b.segments = b.segments[:len(b.segments)-2]
	} else {
		b.segments = nil
	}

	if len(b.segments) == 0 {
		for _, s := range strokes[:3] {
			b.segments = append(b.segments, Segment{DT: s.DT, Mark: s.Mark, Price: s.Price})
		}
	}

	tailDT := b.segments[len(b.segments)-1].DT
	source := strokes
	if len(b.segments) > 3 && len(source) > strokeWindow {
		source = source[len(source)-strokeWindow:]
	}
	var rightBi []stroke.Stroke
	for _, s := range source {
		if !s.DT.Before(tailDT) {
			rightBi = append(rightBi, s)
		}
	}

	candidates := candidateEndpoints(rightBi)

	for _, xp := range candidates {
		last := b.segments[len(b.segments)-1]

		if xp.Mark == last.Mark {
			switch xp.Mark {
			case fractal.Bottom:
				if xp.Price < last.Price {
					b.segments[len(b.segments)-1] = xp
				}
			case fractal.Top:
				if xp.Price > last.Price {
					b.segments[len(b.segments)-1] = xp
				}
			}
			continue
		}

		var inside []stroke.Stroke
		for _, s := range rightBi {
			if !s.DT.Before(last.DT) && !s.DT.After(xp.DT) {
				inside = append(inside, s)
			}
		}
		n := len(inside)

		switch {
		case n < 4:
			continue
		case n > 4:
			b.segments = append(b.segments, xp)
		default:
			accepted, err := b.twoCaseRule(xp, rightBi, inside)
			if err != nil {
				return err
			}
			if accepted {
				b.segments = append(b.segments, xp)
			}
		}
	}

	b.enforceTailValidity(merged)

	return nil
}

// twoCaseRule decides, for an exact 4-stroke separation, whether the
// candidate segment endpoint xp is confirmed. bi_r is the characteristic
// stroke sequence from xp onward; bi_inside is the (exactly 4-element)
// stroke run from the previous segment endpoint through xp, both included.
func (b *Builder) twoCaseRule(xp Segment, rightBi, inside []stroke.Stroke) (bool, error) {
	var biR []stroke.Stroke
	for _, s := range rightBi {
		if !s.DT.Before(xp.DT) {
			biR = append(biR, s)
		}
	}
	if len(biR) < 2 || len(inside) < 3 {
		// Not enough trailing context yet to decide; the next Update call
		// will reconsider this candidate once more strokes arrive.
		return false, nil
	}

	next := biR[1]
	secondFromLastInside := inside[len(inside)-2]
	thirdFromLastInside := inside[len(inside)-3]

	if next.Mark != secondFromLastInside.Mark {
		return false, czscerr.NewInternalInvariant("segment-two-case", "expected bi_r[1] mark %q to match bi_inside[-2] mark %q", next.Mark, secondFromLastInside.Mark)
	}

	// Case 1: no gap.
	if (next.Mark == fractal.Top && next.Price > thirdFromLastInside.Price) ||
		(next.Mark == fractal.Bottom && next.Price < thirdFromLastInside.Price) {
		return true, nil
	}

	// Case 2: with gap.
	if (next.Mark == fractal.Top && next.Price < secondFromLastInside.Price) ||
		(next.Mark == fractal.Bottom && next.Price > secondFromLastInside.Price) {
		return true, nil
	}

	return false, nil
}

// Trim retains only the last n segments, used by the retention pass.
func (b *Builder) Trim(n int) {
	if n >= 0 && len(b.segments) > n {
		b.segments = b.segments[len(b.segments)-n:]
	}
}

// candidateEndpoints partitions strokes into bottom/top runs and finds
// candidate segment endpoints: the middle of any (d1,d2,d3) with
// d1 > d2 < d3, or (g1,g2,g3) with g1 < g2 > g3. Merged and sorted by dt.
func candidateEndpoints(strokes []stroke.Stroke) []Segment {
	var dList, gList []stroke.Stroke
	for _, s := range strokes {
		switch s.Mark {
		case fractal.Bottom:
			dList = append(dList, s)
		case fractal.Top:
			gList = append(gList, s)
		}
	}

	var candidates []Segment
	for i := 1; i+1 < len(dList); i++ {
		d1, d2, d3 := dList[i-1], dList[i], dList[i+1]
		if d1.Price > d2.Price && d2.Price < d3.Price {
			candidates = append(candidates, Segment{DT: d2.DT, Mark: d2.Mark, Price: d2.Price})
		}
	}
	for j := 1; j+1 < len(gList); j++ {
		g1, g2, g3 := gList[j-1], gList[j], gList[j+1]
		if g1.Price < g2.Price && g2.Price > g3.Price {
			candidates = append(candidates, Segment{DT: g2.DT, Mark: g2.Mark, Price: g2.Price})
		}
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].DT.Before(candidates[j].DT) })
	return candidates
}

// enforceTailValidity pops the last segment if subsequent merged bars broke
// it: a bottom segment invalidated by a lower low, a top by a higher high.
func (b *Builder) enforceTailValidity(merged []bar.MergedBar) {
	for len(b.segments) > 0 {
		last := b.segments[len(b.segments)-1]
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
		b.segments = b.segments[:len(b.segments)-1]
	}
}
