// Package progress renders a terminal progress indicator for the czsc CLI's
// long-running replay command, adapted from the teacher's
// ProgressIndicator/StepLogger pair. Trimmed to the one spinner style and
// the fixed five-stage pipeline the analyzer actually runs.
package progress

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Stages names the analyzer pipeline C2 through C6 in order. Analyzer.Update
// runs only the first four (C2-C5); pivots come from FindZS on demand.
var Stages = []string{"merge", "fractal", "stroke", "segment", "pivot"}

// Indicator renders a single-line spinner with an optional progress bar.
type Indicator struct {
	mu        sync.Mutex
	name      string
	total     int
	current   int
	startTime time.Time
	spinner   *spinner
	plain     bool
}

type spinner struct {
	chars   []string
	current int
	mu      sync.Mutex
}

func newSpinner() *spinner {
	return &spinner{chars: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}}
}

func (s *spinner) tick() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.chars[s.current]
	s.current = (s.current + 1) % len(s.chars)
	return c
}

// New creates an indicator for a pipeline of `total` steps. plain disables
// the spinner/bar in favor of one log line per step, for non-TTY output.
func New(name string, total int, plain bool) *Indicator {
	ind := &Indicator{name: name, total: total, startTime: time.Now(), plain: plain}
	if !plain {
		ind.spinner = newSpinner()
	}
	return ind
}

// Step advances the indicator and reports the step name just entered.
func (ind *Indicator) Step(current int, stepName string) {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	ind.current = current

	if ind.plain {
		log.Info().Str("step", stepName).Int("n", current).Int("total", ind.total).Msg("pipeline step")
		return
	}

	var out strings.Builder
	out.WriteString("\r")
	out.WriteString(ind.spinner.tick())
	out.WriteString(" ")
	out.WriteString(ind.name)

	barWidth := 20
	filled := 0
	if ind.total > 0 {
		filled = int(float64(barWidth) * float64(current) / float64(ind.total))
	}
	out.WriteString(" [")
	for i := 0; i < barWidth; i++ {
		if i < filled {
			out.WriteString("#")
		} else {
			out.WriteString("-")
		}
	}
	out.WriteString(fmt.Sprintf("] %d/%d %s", current, ind.total, stepName))
	fmt.Print(out.String())
}

// Finish prints a final summary line.
func (ind *Indicator) Finish() {
	ind.mu.Lock()
	defer ind.mu.Unlock()
	dur := time.Since(ind.startTime)
	if ind.plain {
		log.Info().Dur("duration", dur).Msg(ind.name + " completed")
		return
	}
	fmt.Printf("\r%s completed (%v)\n", ind.name, dur.Round(time.Millisecond))
}
