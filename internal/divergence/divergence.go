// Package divergence implements the divergence comparator (C7): a pure
// function comparing the momentum (sum of MACD histogram magnitudes) of two
// legs to test for bei-chi (背驰).
package divergence

import (
	"time"

	"github.com/sawpanic/czsc/internal/czscerr"
)

// Mode selects how the MACD-sum is accumulated across a leg's bars.
type Mode string

const (
	// ModeStroke sums the absolute MACD histogram over every bar in the leg.
	ModeStroke Mode = "stroke"
	// ModeSegment keeps only bars whose histogram sign matches the leg's
	// direction before summing.
	ModeSegment Mode = "segment"
)

// Direction is the leg's price direction.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// DefaultAdjust is the default divergence sensitivity factor.
const DefaultAdjust = 0.9

// Leg is a directional slice of the bar series bounded by two timestamps.
type Leg struct {
	StartDT   time.Time
	EndDT     time.Time
	Direction Direction
}

// Snapshot is the minimal read-only view divergence needs from an analyzer:
// merged bars paired with their MACD histogram value, ordered ascending by
// time.
type Snapshot struct {
	DT   []time.Time
	MACD []float64
}

// IsBeiChi reports whether zs1 (the more recent leg) is divergent relative
// to zs2 (the earlier leg): true iff S(zs1) < adjust * S(zs2).
func IsBeiChi(snap Snapshot, zs1, zs2 Leg, mode Mode, adjust float64) (bool, error) {
	if adjust == 0 {
		adjust = DefaultAdjust
	}
	if adjust < 0.6 || adjust > 1.0 {
		return false, czscerr.NewPrecondition("adjust %.2f out of range [0.6, 1.0]", adjust)
	}
	if !zs1.StartDT.Before(zs1.EndDT) {
		return false, czscerr.NewPrecondition("zs1: start_dt must be before end_dt")
	}
	if !zs2.StartDT.Before(zs2.EndDT) {
		return false, czscerr.NewPrecondition("zs2: start_dt must be before end_dt")
	}
	if !zs1.StartDT.After(zs2.EndDT) {
		return false, czscerr.NewPrecondition("zs1.start_dt must be after zs2.end_dt")
	}
	if mode != ModeStroke && mode != ModeSegment {
		return false, czscerr.NewPrecondition("unknown mode %q", mode)
	}

	s1, err := legSum(snap, zs1, mode)
	if err != nil {
		return false, err
	}
	s2, err := legSum(snap, zs2, mode)
	if err != nil {
		return false, err
	}

	return s1 < adjust*s2, nil
}

func legSum(snap Snapshot, leg Leg, mode Mode) (float64, error) {
	var sum float64
	for i, dt := range snap.DT {
		if dt.Before(leg.StartDT) || dt.After(leg.EndDT) {
			continue
		}
		m := snap.MACD[i]
		if mode == ModeSegment {
			switch leg.Direction {
			case Up:
				if m <= 0 {
					continue
				}
			case Down:
				if m >= 0 {
					continue
				}
			default:
				return 0, czscerr.NewPrecondition("unknown leg direction %q", leg.Direction)
			}
		}
		sum += abs(m)
	}
	return sum, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
