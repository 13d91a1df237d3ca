package segment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sawpanic/czsc/internal/czscerr"
	"github.com/sawpanic/czsc/internal/fractal"
	"github.com/sawpanic/czsc/internal/stroke"
)

func at(i int) time.Time {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return t0.Add(time.Duration(i) * time.Hour)
}

func mkStroke(i int, mark fractal.Mark, price float64) stroke.Stroke {
	return stroke.Stroke{DT: at(i), Mark: mark, Price: price, High: price, Low: price}
}

func TestSegmentInsufficientData(t *testing.T) {
	b := New()
	err := b.Update([]stroke.Stroke{mkStroke(0, fractal.Bottom, 5)}, nil)
	require.True(t, czscerr.IsInsufficientData(err), "expected InsufficientData, got %v", err)
}

// Seed copies the first three strokes verbatim; a subsequent opposite-mark
// candidate separated by more than four strokes (n > 4) is appended directly.
func TestSegmentAppendsOnMoreThanFourStrokes(t *testing.T) {
	strokes := []stroke.Stroke{
		mkStroke(0, fractal.Bottom, 5),
		mkStroke(1, fractal.Top, 10),
		mkStroke(2, fractal.Bottom, 3),
		mkStroke(3, fractal.Top, 6),
		mkStroke(4, fractal.Bottom, 2.5),
		mkStroke(5, fractal.Top, 12),
		mkStroke(6, fractal.Bottom, 2),
		mkStroke(7, fractal.Top, 18), // candidate: peak among [12,18,9] in gList
		mkStroke(8, fractal.Bottom, 1.5),
		mkStroke(9, fractal.Top, 9),
		mkStroke(10, fractal.Bottom, 1),
		mkStroke(11, fractal.Top, 20),
	}

	b := New()
	require.NoError(t, b.Update(strokes, nil))

	segs := b.Segments()
	require.Len(t, segs, 4, "expected 3 seeded + 1 appended, got %+v", segs)
	last := segs[len(segs)-1]
	require.Equal(t, fractal.Top, last.Mark)
	require.Equal(t, 18.0, last.Price)

	for i := 0; i+1 < len(segs); i++ {
		require.NotEqual(t, segs[i].Mark, segs[i+1].Mark, "segment marks must alternate at %d", i)
	}
}

// Same-mark consolidation: a later bottom extending lower replaces the
// pending bottom segment rather than appending a new one.
func TestSegmentSameMarkConsolidation(t *testing.T) {
	strokes := []stroke.Stroke{
		mkStroke(0, fractal.Bottom, 5),
		mkStroke(1, fractal.Top, 10),
		mkStroke(2, fractal.Bottom, 3), // seeded as last segment
		mkStroke(3, fractal.Top, 6),
		mkStroke(4, fractal.Bottom, 1), // dip candidate: 3 > 1 < 5, same mark as last -> replaces
		mkStroke(5, fractal.Top, 8),
		mkStroke(6, fractal.Bottom, 5),
	}

	b := New()
	require.NoError(t, b.Update(strokes, nil))
	segs := b.Segments()
	last := segs[len(segs)-1]
	require.Equal(t, fractal.Bottom, last.Mark)
	require.Equal(t, 1.0, last.Price)
	require.Len(t, segs, 3, "consolidation should not grow segment count")
}

// TestSegmentTwoCaseRuleNoGapConfirms exercises Case 1 of the exact-4-stroke
// two-case rule: the confirming stroke stays on the far side of bi_inside's
// third-from-last endpoint, so the candidate confirms without a gap.
func TestSegmentTwoCaseRuleNoGapConfirms(t *testing.T) {
	strokes := []stroke.Stroke{
		mkStroke(0, fractal.Bottom, 1),
		mkStroke(1, fractal.Top, 15),
		mkStroke(2, fractal.Bottom, 5),  // seeds segments[2], becomes "last" for the candidate below
		mkStroke(3, fractal.Top, 20),    // bi_inside[-3]
		mkStroke(4, fractal.Bottom, 8),  // bi_inside[-2]
		mkStroke(5, fractal.Top, 25),    // candidate xp: exactly 4 strokes inside [last, xp]
		mkStroke(6, fractal.Bottom, 10), // bi_r[1]: no gap, 10 < bi_inside[-3].Price (20)
		mkStroke(7, fractal.Top, 15),    // keeps xp a valid top peak: 20 < 25 > 15
	}

	b := New()
	require.NoError(t, b.Update(strokes, nil))

	segs := b.Segments()
	require.Len(t, segs, 4, "expected 3 seeded + 1 confirmed by the no-gap case, got %+v", segs)
	last := segs[len(segs)-1]
	require.Equal(t, fractal.Top, last.Mark)
	require.Equal(t, 25.0, last.Price)
}

// TestSegmentTwoCaseRuleWithGapConfirms exercises Case 2 of the exact-4-stroke
// two-case rule: the confirming stroke overshoots bi_inside's second-from-last
// endpoint instead, so the candidate confirms with a gap.
func TestSegmentTwoCaseRuleWithGapConfirms(t *testing.T) {
	strokes := []stroke.Stroke{
		mkStroke(0, fractal.Bottom, 1),
		mkStroke(1, fractal.Top, 15),
		mkStroke(2, fractal.Bottom, 5),
		mkStroke(3, fractal.Top, 20),
		mkStroke(4, fractal.Bottom, 8),
		mkStroke(5, fractal.Top, 25),
		mkStroke(6, fractal.Bottom, 22), // gap: 22 > bi_inside[-2].Price (8), not < bi_inside[-3].Price (20)
		mkStroke(7, fractal.Top, 15),
	}

	b := New()
	require.NoError(t, b.Update(strokes, nil))

	segs := b.Segments()
	require.Len(t, segs, 4, "expected 3 seeded + 1 confirmed by the gap case, got %+v", segs)
	last := segs[len(segs)-1]
	require.Equal(t, fractal.Top, last.Mark)
	require.Equal(t, 25.0, last.Price)
}
