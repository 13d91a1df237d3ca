// Package czscerr defines the three error kinds shared by every analyzer
// component, per spec.md §7: preconditions fail fast, data-shortage is not an
// error, invariant checks are assertions.
package czscerr

import (
	"errors"
	"fmt"
)

// Precondition reports a caller error detected before any state mutation —
// an out-of-order bar, a malformed leg for the divergence comparator, an
// unknown mode/direction. Raised synchronously; never leaves partial state
// behind.
type Precondition struct {
	Reason string
}

func (e *Precondition) Error() string {
	return fmt.Sprintf("precondition violation: %s", e.Reason)
}

// NewPrecondition constructs a Precondition error.
func NewPrecondition(format string, args ...any) error {
	return &Precondition{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientData is a private sentinel a sub-updater returns to signal it
// does not yet have the minimum bars needed for its derivation stage (merger
// needs 4 raw, fractals need 3 merged, strokes need 2 fractals, segments need
// 4 strokes). It is never surfaced to external callers of Analyzer.Update —
// the facade treats it as "sequence remains empty, do nothing" rather than
// propagating it. See IsInsufficientData.
type InsufficientData struct {
	Stage      string
	Need, Have int
}

func (e *InsufficientData) Error() string {
	return fmt.Sprintf("%s: insufficient data (need %d, have %d)", e.Stage, e.Need, e.Have)
}

// NewInsufficientData constructs an InsufficientData sentinel.
func NewInsufficientData(stage string, need, have int) error {
	return &InsufficientData{Stage: stage, Need: need, Have: have}
}

// IsInsufficientData reports whether err is (or wraps) an InsufficientData
// sentinel.
func IsInsufficientData(err error) bool {
	var target *InsufficientData
	return errors.As(err, &target)
}

// InternalInvariant reports a bug: a case the algorithm assumed was
// impossible actually occurred (e.g. the containment-merger direction
// computation saw neither up nor down, or the two-case segment rule saw
// mismatched marks). Fatal — it indicates the implementation, not the input,
// is wrong.
type InternalInvariant struct {
	Invariant string
	Detail    string
}

func (e *InternalInvariant) Error() string {
	return fmt.Sprintf("internal invariant violated (%s): %s", e.Invariant, e.Detail)
}

// NewInternalInvariant constructs an InternalInvariant error.
func NewInternalInvariant(invariant, format string, args ...any) error {
	return &InternalInvariant{Invariant: invariant, Detail: fmt.Sprintf(format, args...)}
}
