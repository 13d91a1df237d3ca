// Package telemetry provides the structured logging and Prometheus metrics
// an analyzer instance emits as it processes bars. Grounded on the teacher's
// progress/metrics pair: zerolog for structured lines, a small counter/gauge
// collector in place of the teacher's hand-rolled, simulation-driven one.
package telemetry

import (
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Stage names one of the analyzer's derivation stages. LogUpdate and the
// Collector counters take per-stage booleans rather than Stage values.
type Stage string

const (
	StageMerge     Stage = "merge"
	StageFractal   Stage = "fractal"
	StageStroke    Stage = "stroke"
	StageSegment   Stage = "segment"
	StagePivot     Stage = "pivot"
)

// Collector owns the Prometheus metrics for one analyzer instance. Every
// instance gets its own uuid-tagged instance ID so two analyzers tracking
// the same symbol at different frequencies don't collide on the symbol
// label alone.
type Collector struct {
	instanceID string
	symbol     string

	barsIngested    prometheus.Counter
	merges          prometheus.Counter
	fractals        prometheus.Counter
	strokes         prometheus.Counter
	segments        prometheus.Counter
	pivotsEmitted   prometheus.Counter
	updateDuration  prometheus.Histogram
	rawBufferLen    prometheus.Gauge
}

// NewCollector registers a fresh set of metrics for symbol against reg. Pass
// a dedicated *prometheus.Registry per analyzer instance (or a shared one —
// the instance_id label keeps series apart either way).
func NewCollector(reg prometheus.Registerer, symbol string) *Collector {
	id := uuid.NewString()
	labels := prometheus.Labels{"symbol": symbol, "instance_id": id}

	c := &Collector{
		instanceID: id,
		symbol:     symbol,
		barsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "czsc_bars_ingested_total",
			Help:        "Raw bars passed to Analyzer.Update.",
			ConstLabels: labels,
		}),
		merges: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "czsc_merges_total",
			Help:        "Update calls in which the merged bar series grew.",
			ConstLabels: labels,
		}),
		fractals: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "czsc_fractals_total",
			Help:        "Update calls in which the fractal series grew.",
			ConstLabels: labels,
		}),
		strokes: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "czsc_strokes_total",
			Help:        "Update calls in which the stroke series grew.",
			ConstLabels: labels,
		}),
		segments: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "czsc_segments_total",
			Help:        "Update calls in which the segment series grew.",
			ConstLabels: labels,
		}),
		pivotsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "czsc_pivots_emitted_total",
			Help:        "Pivots (zhongshu) emitted by FindZS.",
			ConstLabels: labels,
		}),
		updateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "czsc_update_duration_seconds",
			Help:        "Wall time of one Analyzer.Update call.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		rawBufferLen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "czsc_raw_buffer_len",
			Help:        "Current length of the retained raw bar buffer.",
			ConstLabels: labels,
		}),
	}

	if reg != nil {
		reg.MustRegister(c.barsIngested, c.merges, c.fractals, c.strokes,
			c.segments, c.pivotsEmitted, c.updateDuration, c.rawBufferLen)
	}
	return c
}

// ObserveUpdate records one Update call's wall time and the count of each
// derived sequence that grew during it.
func (c *Collector) ObserveUpdate(dur time.Duration, mergedGrew, fractalGrew, strokeGrew, segmentGrew bool) {
	c.barsIngested.Inc()
	c.updateDuration.Observe(dur.Seconds())
	if mergedGrew {
		c.merges.Inc()
	}
	if fractalGrew {
		c.fractals.Inc()
	}
	if strokeGrew {
		c.strokes.Inc()
	}
	if segmentGrew {
		c.segments.Inc()
	}
}

// ObservePivotsEmitted adds n newly emitted pivots to the counter.
func (c *Collector) ObservePivotsEmitted(n int) {
	if n > 0 {
		c.pivotsEmitted.Add(float64(n))
	}
}

// SetRawBufferLen reports the current retained raw buffer length.
func (c *Collector) SetRawBufferLen(n int) {
	c.rawBufferLen.Set(float64(n))
}

// LogUpdate emits one structured debug line per Update call, tagged with
// which derived sequences grew during it.
func LogUpdate(symbol string, dt time.Time, mergedGrew, fractalGrew, strokeGrew, segmentGrew bool) {
	log.Debug().
		Str("symbol", symbol).
		Time("dt", dt).
		Bool("merge", mergedGrew).
		Bool("fractal", fractalGrew).
		Bool("stroke", strokeGrew).
		Bool("segment", segmentGrew).
		Msg("update applied")
}

// LogInvariantViolation emits a warn-level line for an InternalInvariantViolation,
// the one error class that indicates a bug rather than bad input.
func LogInvariantViolation(symbol, invariant, detail string) {
	log.Warn().
		Str("symbol", symbol).
		Str("invariant", invariant).
		Str("detail", detail).
		Msg("internal invariant violated")
}

// ConfigureConsoleLogging sets the global zerolog logger to a human-readable
// console writer, the teacher's startup convention for interactive use.
func ConfigureConsoleLogging(verbose bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{TimeFormat: time.Kitchen})
}
