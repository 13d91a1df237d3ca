// Package analyzer owns the incremental structural analyzer facade (C8): it
// drives the containment merger, fractal detector, stroke builder, and
// segment builder in lockstep from an append-only raw bar stream, applies
// bounded retention, and exposes tabular snapshots.
package analyzer

import (
	"time"

	"github.com/sawpanic/czsc/internal/bar"
	"github.com/sawpanic/czsc/internal/czscerr"
	"github.com/sawpanic/czsc/internal/divergence"
	"github.com/sawpanic/czsc/internal/fractal"
	"github.com/sawpanic/czsc/internal/merge"
	"github.com/sawpanic/czsc/internal/pivot"
	"github.com/sawpanic/czsc/internal/segment"
	"github.com/sawpanic/czsc/internal/stroke"
	"github.com/sawpanic/czsc/internal/telemetry"
)

// DefaultMaxRawLen is the retention cap applied once the raw series grows
// past it.
const DefaultMaxRawLen = 10_000

// PreconditionViolation, InsufficientData and InternalInvariantViolation are
// the three error kinds surfaced by the analyzer and its sub-updaters.
type (
	PreconditionViolation      = czscerr.Precondition
	InsufficientData           = czscerr.InsufficientData
	InternalInvariantViolation = czscerr.InternalInvariant
)

// Option configures an Analyzer at construction time.
type Option func(*Analyzer)

// WithMinBiK sets the minimum number of merged bars required between
// adjacent stroke endpoints (default stroke.DefaultMinBiK).
func WithMinBiK(k int) Option {
	return func(a *Analyzer) { a.minBiK = k }
}

// WithMaxRawLen sets the retention cap on the raw bar series (default
// DefaultMaxRawLen).
func WithMaxRawLen(n int) Option {
	return func(a *Analyzer) { a.maxRawLen = n }
}

// WithVerbose records the verbose flag on the analyzer. Update does not read
// it: no tracing of structural decisions (consolidation, rejection,
// invalidation) is emitted, whatever its value.
func WithVerbose(v bool) Option {
	return func(a *Analyzer) { a.verbose = v }
}

// WithTelemetry attaches a telemetry.Collector so every Update call reports
// its counters, gauges and wall time. Omit it and the analyzer still emits
// the per-update zerolog debug line, just without metrics.
func WithTelemetry(c *telemetry.Collector) Option {
	return func(a *Analyzer) { a.telemetry = c }
}

// Analyzer owns the raw bar series for one symbol/frequency and all
// sequences derived from it. Not safe for concurrent use; callers coordinate
// externally (see the concurrency model this package assumes).
type Analyzer struct {
	Name      string
	minBiK    int
	maxRawLen int
	verbose   bool

	raw []bar.RawBar

	merger  *merge.Merger
	fx      *fractal.Detector
	strokes *stroke.Builder
	segs    *segment.Builder

	telemetry *telemetry.Collector
}

// New constructs an analyzer, replaying each of the initial bars through
// Update so the resulting state is identical to incrementally streaming them
// (the replay-equivalence guarantee, P6, holds from the very first bar).
func New(initial []bar.RawBar, name string, opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		Name:      name,
		minBiK:    stroke.DefaultMinBiK,
		maxRawLen: DefaultMaxRawLen,
		merger:    merge.New(),
		fx:        fractal.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.strokes = stroke.New(a.minBiK)
	a.segs = segment.New()

	for _, b := range initial {
		if err := a.Update(b); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Update applies a new or in-progress bar. A bar is a new period (appended)
// unless raw is non-empty and bar.Open equals raw.last.Open, in which case it
// replaces raw.last (an in-progress replacement keeps Open constant while
// later fields mutate). Precondition: bar.DT >= raw.last.DT.
func (a *Analyzer) Update(b bar.RawBar) error {
	if len(a.raw) > 0 && b.DT.Before(a.raw[len(a.raw)-1].DT) {
		return czscerr.NewPrecondition("bar.dt %s precedes raw.last.dt %s", b.DT, a.raw[len(a.raw)-1].DT)
	}

	start := time.Now()

	if len(a.raw) == 0 || b.Open != a.raw[len(a.raw)-1].Open {
		a.raw = append(a.raw, b)
	} else {
		a.raw[len(a.raw)-1] = b
	}

	mergedBefore := len(a.merger.Bars())
	fractalsBefore := len(a.fx.Fractals())
	strokesBefore := len(a.strokes.Strokes())
	segmentsBefore := len(a.segs.Segments())

	if err := a.merger.Update(a.raw); err != nil && !czscerr.IsInsufficientData(err) {
		a.logInvariantViolation(err)
		return err
	}
	merged := a.merger.Bars()

	if err := a.fx.Update(merged); err != nil && !czscerr.IsInsufficientData(err) {
		a.logInvariantViolation(err)
		return err
	}

	if err := a.strokes.Update(a.fx.Fractals(), merged); err != nil && !czscerr.IsInsufficientData(err) {
		a.logInvariantViolation(err)
		return err
	}

	if err := a.segs.Update(a.strokes.Strokes(), merged); err != nil && !czscerr.IsInsufficientData(err) {
		a.logInvariantViolation(err)
		return err
	}

	mergedGrew := len(a.merger.Bars()) > mergedBefore
	fractalGrew := len(a.fx.Fractals()) > fractalsBefore
	strokeGrew := len(a.strokes.Strokes()) > strokesBefore
	segmentGrew := len(a.segs.Segments()) > segmentsBefore

	a.trim()

	telemetry.LogUpdate(a.Name, b.DT, mergedGrew, fractalGrew, strokeGrew, segmentGrew)
	if a.telemetry != nil {
		a.telemetry.ObserveUpdate(time.Since(start), mergedGrew, fractalGrew, strokeGrew, segmentGrew)
		a.telemetry.SetRawBufferLen(len(a.raw))
	}

	return nil
}

// logInvariantViolation reports err via telemetry.LogInvariantViolation when
// it is an InternalInvariantViolation — the one error class that indicates a
// bug in this analyzer rather than bad input.
func (a *Analyzer) logInvariantViolation(err error) {
	if inv, ok := err.(*InternalInvariantViolation); ok {
		telemetry.LogInvariantViolation(a.Name, inv.Invariant, inv.Detail)
	}
}

// trim enforces retention: once the raw series exceeds maxRawLen, every
// derived sequence is truncated proportionally (merged/raw at 1x, fractals at
// 1/2, strokes at 1/4, segments at 1/8).
func (a *Analyzer) trim() {
	if len(a.raw) <= a.maxRawLen {
		return
	}
	a.raw = a.raw[len(a.raw)-a.maxRawLen:]
	a.merger.Trim(a.maxRawLen)
	a.fx.Trim(a.maxRawLen / 2)
	a.strokes.Trim(a.maxRawLen / 4)
	a.segs.Trim(a.maxRawLen / 8)
}

// RawBars returns the retained raw bar series; treat as a snapshot valid
// until the next Update.
func (a *Analyzer) RawBars() []bar.RawBar { return a.raw }

// MergedBars returns the current containment-free series.
func (a *Analyzer) MergedBars() []bar.MergedBar { return a.merger.Bars() }

// Fractals returns the current fractal series.
func (a *Analyzer) Fractals() []fractal.Fractal { return a.fx.Fractals() }

// Strokes returns the current stroke series.
func (a *Analyzer) Strokes() []stroke.Stroke { return a.strokes.Strokes() }

// Segments returns the current segment series.
func (a *Analyzer) Segments() []segment.Segment { return a.segs.Segments() }

// Row is one projected raw bar in a Snapshot, annotated with the sequence
// endpoints (if any) that coincide with its timestamp.
type Row struct {
	DT    time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
	Vol   float64

	MA    map[int]bar.MAResult
	MACD  bar.MACDValue
	Boll  bar.BollingerValue

	FXMark string // "top", "bottom", or "" when this bar is not a fractal
	FX     float64
	Bi     float64
	BiSet  bool
	Xd     float64
	XdSet  bool
}

// Snapshot is the tabular projection returned by ToFrame.
type Snapshot struct {
	Symbol string
	Rows   []Row
}

// ToFrameParams configures ToFrame.
type ToFrameParams struct {
	MAParams []int
	UseMACD  bool
	UseBoll  bool
	MaxCount int
}

// ToFrame returns a tabular projection of the last MaxCount raw bars with
// indicator columns and annotation columns (fx_mark, fx, bi, xd) populated
// when the raw bar's timestamp matches a sequence endpoint.
func (a *Analyzer) ToFrame(p ToFrameParams) (Snapshot, error) {
	if p.MaxCount <= 0 {
		return Snapshot{}, czscerr.NewPrecondition("max_count must be positive, got %d", p.MaxCount)
	}

	raw := a.raw
	if len(raw) > p.MaxCount {
		raw = raw[len(raw)-p.MaxCount:]
	}
	merged := a.merger.Bars()

	fxByDT := make(map[time.Time]fractal.Fractal, len(a.fx.Fractals()))
	for _, f := range a.fx.Fractals() {
		fxByDT[f.DT] = f
	}
	biByDT := make(map[time.Time]stroke.Stroke, len(a.strokes.Strokes()))
	for _, s := range a.strokes.Strokes() {
		biByDT[s.DT] = s
	}
	xdByDT := make(map[time.Time]segment.Segment, len(a.segs.Segments()))
	for _, s := range a.segs.Segments() {
		xdByDT[s.DT] = s
	}

	macdCfg := bar.DefaultMACDConfig()
	var macdSeries []bar.MACDValue
	if p.UseMACD {
		macdSeries = bar.CalculateMACDSeries(merged, macdCfg)
	}
	macdByDT := make(map[time.Time]bar.MACDValue, len(macdSeries))
	for i, v := range macdSeries {
		if i < len(merged) {
			macdByDT[merged[i].DT] = v
		}
	}

	rows := make([]Row, 0, len(raw))
	for i, rb := range raw {
		row := Row{
			DT:    rb.DT,
			Open:  rb.Open,
			High:  rb.High,
			Low:   rb.Low,
			Close: rb.Close,
			Vol:   rb.Vol,
		}

		if len(p.MAParams) > 0 {
			row.MA = make(map[int]bar.MAResult, len(p.MAParams))
			window := merged
			if i+1 <= len(merged) {
				window = merged[:i+1]
			}
			for _, period := range p.MAParams {
				row.MA[period] = bar.CalculateMA(window, period)
			}
		}
		if p.UseMACD {
			row.MACD = macdByDT[rb.DT]
		}
		if p.UseBoll {
			window := merged
			if i+1 <= len(merged) {
				window = merged[:i+1]
			}
			row.Boll = bar.CalculateBollinger(window, bar.DefaultBollingerConfig())
		}

		if f, ok := fxByDT[rb.DT]; ok {
			row.FXMark = string(f.Mark)
			row.FX = f.Price
		}
		if s, ok := biByDT[rb.DT]; ok {
			row.Bi, row.BiSet = s.Price, true
		}
		if s, ok := xdByDT[rb.DT]; ok {
			row.Xd, row.XdSet = s.Price, true
		}

		rows = append(rows, row)
	}

	return Snapshot{Symbol: a.Name, Rows: rows}, nil
}

// StrokePoints projects the stroke series into the common {dt, mark, price}
// shape FindZS consumes.
func (a *Analyzer) StrokePoints() []pivot.Point {
	strokes := a.strokes.Strokes()
	points := make([]pivot.Point, len(strokes))
	for i, s := range strokes {
		points[i] = pivot.Point{DT: s.DT, Mark: s.Mark, Price: s.Price}
	}
	return points
}

// SegmentPoints projects the segment series into the common {dt, mark,
// price} shape FindZS consumes.
func (a *Analyzer) SegmentPoints() []pivot.Point {
	segs := a.segs.Segments()
	points := make([]pivot.Point, len(segs))
	for i, s := range segs {
		points[i] = pivot.Point{DT: s.DT, Mark: s.Mark, Price: s.Price}
	}
	return points
}

// FindZS identifies zhongshu (pivot) overlap zones from a chronological list
// of stroke or segment endpoints.
func FindZS(points []pivot.Point) []pivot.Pivot {
	return pivot.FindZS(points)
}

// MACDSnapshot builds the minimal divergence.Snapshot — merged-bar
// timestamps paired with their MACD histogram value — that IsBeiChi needs.
func (a *Analyzer) MACDSnapshot() divergence.Snapshot {
	merged := a.merger.Bars()
	series := bar.CalculateMACDSeries(merged, bar.DefaultMACDConfig())
	dt := make([]time.Time, len(merged))
	hist := make([]float64, len(merged))
	for i, m := range merged {
		dt[i] = m.DT
		if i < len(series) {
			hist[i] = series[i].Hist
		}
	}
	return divergence.Snapshot{DT: dt, MACD: hist}
}

// IsBeiChi compares the momentum of two legs over the given snapshot to test
// for bei-chi (背驰) divergence.
func IsBeiChi(snap divergence.Snapshot, zs1, zs2 divergence.Leg, mode divergence.Mode, adjust float64) (bool, error) {
	return divergence.IsBeiChi(snap, zs1, zs2, mode, adjust)
}
