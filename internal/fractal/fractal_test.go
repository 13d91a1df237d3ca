package fractal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/czsc/internal/bar"
	"github.com/sawpanic/czsc/internal/czscerr"
)

func mkMerged(i int, high, low float64) bar.MergedBar {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return bar.MergedBar{
		DT:    t0.Add(time.Duration(i) * time.Hour),
		Open:  low,
		High:  high,
		Low:   low,
		Close: high,
	}
}

func TestFractalInsufficientData(t *testing.T) {
	d := New()
	err := d.Update([]bar.MergedBar{mkMerged(0, 10, 9), mkMerged(1, 11, 10)})
	assert.True(t, czscerr.IsInsufficientData(err), "expected InsufficientData, got %v", err)
}

// Monotone ascending series: no local extrema anywhere.
func TestFractalNoneOnMonotoneSeries(t *testing.T) {
	merged := make([]bar.MergedBar, 10)
	for i := range merged {
		merged[i] = mkMerged(i, 10+float64(i), 9+float64(i))
	}
	d := New()
	require.NoError(t, d.Update(merged))
	assert.Empty(t, d.Fractals(), "expected no fractals on monotone series")
}

// A single peak in the middle should produce exactly one top fractal.
func TestFractalSingleTop(t *testing.T) {
	merged := []bar.MergedBar{
		mkMerged(0, 10, 9),
		mkMerged(1, 12, 11),
		mkMerged(2, 15, 13), // peak
		mkMerged(3, 12, 10),
		mkMerged(4, 11, 9),
	}
	d := New()
	require.NoError(t, d.Update(merged))
	fx := d.Fractals()
	require.Len(t, fx, 1)
	assert.Equal(t, Top, fx[0].Mark)
	assert.Equal(t, 15.0, fx[0].Price)
	assert.Equal(t, maxf(merged[1].Low, merged[3].Low), fx[0].Low)
}

// A single trough in the middle should produce exactly one bottom fractal.
func TestFractalSingleBottom(t *testing.T) {
	merged := []bar.MergedBar{
		mkMerged(0, 20, 18),
		mkMerged(1, 17, 15),
		mkMerged(2, 14, 12), // trough
		mkMerged(3, 17, 15),
		mkMerged(4, 19, 17),
	}
	d := New()
	require.NoError(t, d.Update(merged))
	fx := d.Fractals()
	require.Len(t, fx, 1)
	assert.Equal(t, Bottom, fx[0].Mark)
	assert.Equal(t, 12.0, fx[0].Price)
}

// Incremental updates must converge to the same fractal set as a single
// full-series update (replay-equivalence, P6 for this stage).
func TestFractalIncrementalMatchesFullReplay(t *testing.T) {
	merged := []bar.MergedBar{
		mkMerged(0, 10, 9),
		mkMerged(1, 12, 11),
		mkMerged(2, 15, 13),
		mkMerged(3, 12, 10),
		mkMerged(4, 9, 7),
		mkMerged(5, 11, 9),
		mkMerged(6, 14, 12),
		mkMerged(7, 13, 11),
	}

	full := New()
	require.NoError(t, full.Update(merged), "full update")

	inc := New()
	for i := 3; i <= len(merged); i++ {
		require.NoError(t, inc.Update(merged[:i]), "incremental update at %d", i)
	}

	fullFx, incFx := full.Fractals(), inc.Fractals()
	require.Len(t, incFx, len(fullFx), "fractal count mismatch")
	for i := range fullFx {
		assert.Equal(t, fullFx[i], incFx[i], "fractal %d mismatch", i)
	}
}
