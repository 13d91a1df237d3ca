package stroke

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/czsc/internal/bar"
	"github.com/sawpanic/czsc/internal/czscerr"
	"github.com/sawpanic/czsc/internal/fractal"
)

func at(i int) time.Time {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return t0.Add(time.Duration(i) * time.Hour)
}

func mkMerged(i int, high, low float64) bar.MergedBar {
	return bar.MergedBar{DT: at(i), Open: low, High: high, Low: low, Close: high}
}

func TestStrokeInsufficientData(t *testing.T) {
	b := New(5)
	err := b.Update([]fractal.Fractal{{DT: at(1), Mark: fractal.Bottom, Price: 9}}, nil)
	assert.True(t, czscerr.IsInsufficientData(err), "expected InsufficientData, got %v", err)
}

// Scenario 2: a single fractal produces no stroke (needs a paired opposite
// mark); only once a second fractal arrives does the seed happen at all, and
// even then the retrograde drop keeps just the first until a valid opposite
// arrives with enough separation.
func TestStrokeSingleFractalNoPair(t *testing.T) {
	b := New(5)
	err := b.Update([]fractal.Fractal{{DT: at(2), Mark: fractal.Top, Price: 12, High: 12, Low: 10}}, nil)
	assert.True(t, czscerr.IsInsufficientData(err), "expected InsufficientData with one fractal, got %v", err)
}

// Scenario 4: minimum-length rejection. F1=bottom@t=1, F2=top@t=2 with only
// 3 merged bars between them and min_bi_k=5 — expect strokes == [F1].
func TestStrokeMinimumLengthRejection(t *testing.T) {
	f1 := fractal.Fractal{DT: at(1), Mark: fractal.Bottom, Price: 9, High: 11, Low: 9}
	f2 := fractal.Fractal{DT: at(2), Mark: fractal.Top, Price: 15, High: 15, Low: 12}

	merged := []bar.MergedBar{
		mkMerged(1, 11, 9),
		mkMerged(2, 13, 11),
		mkMerged(2, 15, 12), // 3 merged bars spanning [f1.dt, f2.dt]
	}

	b := New(5)
	require.NoError(t, b.Update([]fractal.Fractal{f1, f2}, merged))
	strokes := b.Strokes()
	require.Len(t, strokes, 1, "expected exactly one stroke (F1 only): %+v", strokes)
	assert.Equal(t, fractal.Bottom, strokes[0].Mark)
	assert.Equal(t, 9.0, strokes[0].Price)
}

// With enough separation (>= min_bi_k merged bars) and non-overlapping
// extremes, the opposite-mark fractal is promoted to a second stroke.
func TestStrokeAcceptsValidOppositeMark(t *testing.T) {
	f1 := fractal.Fractal{DT: at(0), Mark: fractal.Bottom, Price: 9, High: 11, Low: 9}
	f2 := fractal.Fractal{DT: at(6), Mark: fractal.Top, Price: 20, High: 20, Low: 15}

	merged := make([]bar.MergedBar, 0, 7)
	for i := 0; i <= 6; i++ {
		merged = append(merged, mkMerged(i, 11+float64(i), 9+float64(i)))
	}

	b := New(5)
	require.NoError(t, b.Update([]fractal.Fractal{f1, f2}, merged))
	strokes := b.Strokes()
	require.Len(t, strokes, 2, "%+v", strokes)
	assert.Equal(t, fractal.Top, strokes[1].Mark)
	assert.Equal(t, 20.0, strokes[1].Price)
}

// Same-mark consolidation: a later top fractal with a higher price replaces
// the pending top stroke rather than appending a new one.
func TestStrokeSameMarkConsolidation(t *testing.T) {
	f1 := fractal.Fractal{DT: at(0), Mark: fractal.Bottom, Price: 9, High: 11, Low: 9}
	f2 := fractal.Fractal{DT: at(6), Mark: fractal.Top, Price: 20, High: 20, Low: 15}
	f3 := fractal.Fractal{DT: at(7), Mark: fractal.Top, Price: 22, High: 22, Low: 16}

	merged := make([]bar.MergedBar, 0, 8)
	for i := 0; i <= 7; i++ {
		merged = append(merged, mkMerged(i, 11+float64(i), 9+float64(i)))
	}

	b := New(5)
	require.NoError(t, b.Update([]fractal.Fractal{f1, f2, f3}, merged))
	strokes := b.Strokes()
	last := strokes[len(strokes)-1]
	assert.Equal(t, fractal.Top, last.Mark)
	assert.Equal(t, 22.0, last.Price, "expected the higher top (22) to replace the pending stroke")
}

// P3/P4: adjacent strokes satisfy min length and non-overlap.
func TestStrokeInvariantsHoldAcrossSequence(t *testing.T) {
	f1 := fractal.Fractal{DT: at(0), Mark: fractal.Bottom, Price: 9, High: 11, Low: 9}
	f2 := fractal.Fractal{DT: at(6), Mark: fractal.Top, Price: 20, High: 20, Low: 15}
	f3 := fractal.Fractal{DT: at(13), Mark: fractal.Bottom, Price: 5, High: 10, Low: 5}

	merged := make([]bar.MergedBar, 0, 14)
	for i := 0; i <= 6; i++ {
		merged = append(merged, mkMerged(i, 11+float64(i), 9+float64(i)))
	}
	for i := 7; i <= 13; i++ {
		merged = append(merged, mkMerged(i, 20-float64(i-6), 15-float64(i-6)))
	}

	b := New(5)
	require.NoError(t, b.Update([]fractal.Fractal{f1, f2, f3}, merged))
	strokes := b.Strokes()
	for i := 0; i+1 < len(strokes); i++ {
		require.NotEqual(t, strokes[i].Mark, strokes[i+1].Mark, "marks must alternate")
		n := countMergedInRange(merged, strokes[i].DT, strokes[i+1].DT)
		assert.GreaterOrEqual(t, n, 5, "adjacent strokes %d,%d span only %d merged bars", i, i+1, n)
	}
}
