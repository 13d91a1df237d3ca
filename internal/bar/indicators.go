package bar

import "math"

// MAResult is the result of a single moving-average calculation.
type MAResult struct {
	Period  int     `json:"period"`
	Value   float64 `json:"value"`
	IsValid bool    `json:"is_valid"`
}

// CalculateMA computes the simple moving average of Close over the trailing
// `period` merged bars. With insufficient data the result is marked invalid
// and carries a zero value rather than an error, since indicators
// are a pure derived view and must never block the pipeline.
func CalculateMA(bars []MergedBar, period int) MAResult {
	if period <= 0 || len(bars) < period {
		return MAResult{Period: period, Value: 0, IsValid: false}
	}
	window := bars[len(bars)-period:]
	sum := 0.0
	for _, b := range window {
		sum += b.Close
	}
	return MAResult{Period: period, Value: sum / float64(period), IsValid: true}
}

// MACDValue is the standard DIF/DEA/Histogram triple. Hist is the input to the
// divergence comparator's MACD-sum (C7).
type MACDValue struct {
	DIF     float64 `json:"dif"`
	DEA     float64 `json:"dea"`
	Hist    float64 `json:"hist"`
	IsValid bool    `json:"is_valid"`
}

// MACDConfig holds the standard fast/slow/signal EMA periods.
type MACDConfig struct {
	Fast   int
	Slow   int
	Signal int
}

// DefaultMACDConfig returns the conventional 12/26/9 configuration.
func DefaultMACDConfig() MACDConfig {
	return MACDConfig{Fast: 12, Slow: 26, Signal: 9}
}

// CalculateMACDSeries computes DIF/DEA/Hist for every bar in the window, using
// standard (non-Wilder) EMA smoothing: alpha = 2/(n+1). Returns one MACDValue
// per input bar; entries before the slow EMA has enough data are IsValid=false.
func CalculateMACDSeries(bars []MergedBar, cfg MACDConfig) []MACDValue {
	n := len(bars)
	out := make([]MACDValue, n)
	if n == 0 {
		return out
	}

	closes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
	}

	fastEMA := ema(closes, cfg.Fast)
	slowEMA := ema(closes, cfg.Slow)

	dif := make([]float64, n)
	for i := range dif {
		dif[i] = fastEMA[i] - slowEMA[i]
	}
	dea := ema(dif, cfg.Signal)

	for i := 0; i < n; i++ {
		out[i] = MACDValue{
			DIF:     dif[i],
			DEA:     dea[i],
			Hist:    2 * (dif[i] - dea[i]),
			IsValid: i >= cfg.Slow-1,
		}
	}
	return out
}

// ema computes an exponential moving average series with alpha = 2/(period+1),
// seeded by a simple average of the first `period` values (or all available
// values if fewer).
func ema(values []float64, period int) []float64 {
	n := len(values)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	seed := period
	if seed > n {
		seed = n
	}
	sum := 0.0
	for i := 0; i < seed; i++ {
		sum += values[i]
		out[i] = sum / float64(i+1)
	}
	alpha := 2.0 / (float64(period) + 1.0)
	for i := seed; i < n; i++ {
		out[i] = out[i-1]*(1-alpha) + values[i]*alpha
	}
	return out
}

// BollingerValue is the standard SMA mid-band with +/- k*stddev envelope.
type BollingerValue struct {
	Mid     float64 `json:"mid"`
	Upper   float64 `json:"upper"`
	Lower   float64 `json:"lower"`
	IsValid bool    `json:"is_valid"`
}

// BollingerConfig holds the period and standard-deviation multiplier.
type BollingerConfig struct {
	Period int
	K      float64
}

// DefaultBollingerConfig returns the conventional 20-period, 2-sigma config.
func DefaultBollingerConfig() BollingerConfig {
	return BollingerConfig{Period: 20, K: 2.0}
}

// CalculateBollinger computes the Bollinger band anchored at the trailing
// window ending at the last bar in `bars`.
func CalculateBollinger(bars []MergedBar, cfg BollingerConfig) BollingerValue {
	if cfg.Period <= 0 || len(bars) < cfg.Period {
		return BollingerValue{IsValid: false}
	}
	window := bars[len(bars)-cfg.Period:]
	mid := 0.0
	for _, b := range window {
		mid += b.Close
	}
	mid /= float64(cfg.Period)

	variance := 0.0
	for _, b := range window {
		d := b.Close - mid
		variance += d * d
	}
	variance /= float64(cfg.Period)
	stddev := math.Sqrt(variance)

	return BollingerValue{
		Mid:     mid,
		Upper:   mid + cfg.K*stddev,
		Lower:   mid - cfg.K*stddev,
		IsValid: true,
	}
}

// Indicators aggregates the per-bar technical view. To_frame rows carry the
// same three values as separate MA, MACD and Boll fields, not this type.
type Indicators struct {
	MA   map[int]MAResult `json:"ma"`
	MACD MACDValue        `json:"macd"`
	Boll BollingerValue   `json:"boll"`
}
