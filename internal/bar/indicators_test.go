package bar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closesToBars(closes []float64) []MergedBar {
	bars := make([]MergedBar, len(closes))
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		bars[i] = MergedBar{DT: t0.Add(time.Duration(i) * time.Hour), Open: c, High: c + 1, Low: c - 1, Close: c}
	}
	return bars
}

func TestCalculateMA(t *testing.T) {
	bars := closesToBars([]float64{1, 2, 3, 4, 5})

	result := CalculateMA(bars, 3)
	require.True(t, result.IsValid, "MA should be valid with sufficient data")
	want := (3.0 + 4.0 + 5.0) / 3.0
	assert.Equal(t, want, result.Value)

	short := CalculateMA(bars, 10)
	assert.False(t, short.IsValid, "MA should be invalid with insufficient data")
}

func TestCalculateMACDSeriesValidityWindow(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)*0.5
	}
	bars := closesToBars(closes)
	cfg := DefaultMACDConfig()

	series := CalculateMACDSeries(bars, cfg)
	require.Len(t, series, len(bars))
	for i, v := range series {
		wantValid := i >= cfg.Slow-1
		assert.Equal(t, wantValid, v.IsValid, "index %d", i)
	}
	// steady uptrend: DIF should be positive once warmed up
	assert.Greater(t, series[len(series)-1].DIF, 0.0, "expected positive DIF for steady uptrend")
}

func TestCalculateBollinger(t *testing.T) {
	closes := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10,
		10, 10, 10, 10, 10, 10, 10, 10, 10, 20}
	bars := closesToBars(closes)

	result := CalculateBollinger(bars, DefaultBollingerConfig())
	require.True(t, result.IsValid, "Bollinger should be valid with 20 bars")
	assert.Less(t, result.Lower, result.Mid)
	assert.Less(t, result.Mid, result.Upper)

	short := CalculateBollinger(bars[:5], DefaultBollingerConfig())
	assert.False(t, short.IsValid, "Bollinger should be invalid with insufficient data")
}
