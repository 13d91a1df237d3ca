// Package feed is the thin, deliberately partial plumbing boundary between
// an external bar source and the analyzer. It is the one place the
// analyzer's "no I/O" non-goal is respected: feed only ever calls
// Analyzer.Update, never reaches into its internals.
package feed

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/sawpanic/czsc/internal/bar"
)

// BarSource yields the next raw bar for one symbol, blocking until it is
// available or ctx is done. No concrete exchange adapter implements this in
// this module — it's satisfied by NewReplaySource and by test fakes.
type BarSource interface {
	Next(ctx context.Context) (bar.RawBar, error)
}

// ErrSourceExhausted is returned by a BarSource (in particular
// NewReplaySource) once there are no more bars to produce.
var ErrSourceExhausted = fmt.Errorf("feed: source exhausted")

// Updater is the subset of *analyzer.Analyzer the poller drives; satisfied
// by *analyzer.Analyzer.
type Updater interface {
	Update(b bar.RawBar) error
}

// Poller drives a BarSource in a loop, feeding every bar through a circuit
// breaker and a rate limiter into an Updater.
type Poller struct {
	symbol  string
	source  BarSource
	updater Updater
	limiter *rate.Limiter
	br      *breaker
}

// NewPoller builds a poller for symbol. ratePerSec bounds how many Next calls
// are issued per second (golang.org/x/time/rate); pass 0 for unlimited.
func NewPoller(symbol string, source BarSource, updater Updater, ratePerSec float64) *Poller {
	var limiter *rate.Limiter
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return &Poller{
		symbol:  symbol,
		source:  source,
		updater: updater,
		limiter: limiter,
		br:      newBreaker(symbol),
	}
}

// Run polls until ctx is done or the source returns ErrSourceExhausted. Any
// other source error is counted as a circuit-breaker failure and returned
// immediately; an updater error is returned immediately without passing
// through the breaker. Callers decide whether to retry with a fresh Poller.
func (p *Poller) Run(ctx context.Context) error {
	for {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		result, err := p.br.Execute(func() (any, error) {
			return p.source.Next(ctx)
		})
		if err != nil {
			if err == ErrSourceExhausted {
				return nil
			}
			return fmt.Errorf("feed: poll %s: %w", p.symbol, err)
		}

		b := result.(bar.RawBar)
		if err := p.updater.Update(b); err != nil {
			return fmt.Errorf("feed: update %s: %w", p.symbol, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// ReplaySource reads raw bars sequentially from a CSV or JSONL file, for the
// `czsc replay` command. CSV columns: symbol,dt,open,high,low,close,vol.
// JSONL: one bar.RawBar per line.
type ReplaySource struct {
	symbol string
	bars   []bar.RawBar
	pos    int
}

// NewReplaySource loads every bar from path up front. JSON lines are
// detected by a leading '{' on the first non-blank line; everything else is
// parsed as CSV.
func NewReplaySource(path, symbol string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("feed: open replay file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("feed: read replay file: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	var bars []bar.RawBar
	if strings.HasPrefix(trimmed, "{") {
		bars, err = parseJSONLBars(trimmed, symbol)
	} else {
		bars, err = parseCSVBars(trimmed, symbol)
	}
	if err != nil {
		return nil, err
	}

	return &ReplaySource{symbol: symbol, bars: bars}, nil
}

// Next returns the next bar in file order, or ErrSourceExhausted once the
// file is consumed.
func (r *ReplaySource) Next(ctx context.Context) (bar.RawBar, error) {
	if err := ctx.Err(); err != nil {
		return bar.RawBar{}, err
	}
	if r.pos >= len(r.bars) {
		return bar.RawBar{}, ErrSourceExhausted
	}
	b := r.bars[r.pos]
	r.pos++
	return b, nil
}

func parseJSONLBars(text, symbol string) ([]bar.RawBar, error) {
	var bars []bar.RawBar
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var b bar.RawBar
		if err := json.Unmarshal([]byte(line), &b); err != nil {
			return nil, fmt.Errorf("feed: parse JSONL bar: %w", err)
		}
		if b.Symbol == "" {
			b.Symbol = symbol
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func parseCSVBars(text, symbol string) ([]bar.RawBar, error) {
	reader := csv.NewReader(strings.NewReader(text))
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("feed: parse CSV: %w", err)
	}

	var bars []bar.RawBar
	for i, rec := range records {
		if len(rec) == 0 {
			continue
		}
		if i == 0 && !looksNumeric(rec[2]) {
			continue // header row
		}
		if len(rec) < 7 {
			return nil, fmt.Errorf("feed: CSV row %d: expected 7 columns, got %d", i, len(rec))
		}
		dt, err := time.Parse(time.RFC3339, strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, fmt.Errorf("feed: CSV row %d: parse dt: %w", i, err)
		}
		open, errO := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		high, errH := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		low, errL := strconv.ParseFloat(strings.TrimSpace(rec[4]), 64)
		close_, errC := strconv.ParseFloat(strings.TrimSpace(rec[5]), 64)
		vol, errV := strconv.ParseFloat(strings.TrimSpace(rec[6]), 64)
		if errO != nil || errH != nil || errL != nil || errC != nil || errV != nil {
			return nil, fmt.Errorf("feed: CSV row %d: parse numeric columns", i)
		}
		sym := strings.TrimSpace(rec[0])
		if sym == "" {
			sym = symbol
		}
		bars = append(bars, bar.RawBar{Symbol: sym, DT: dt, Open: open, High: high, Low: low, Close: close_, Vol: vol})
	}
	return bars, nil
}

func looksNumeric(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}
