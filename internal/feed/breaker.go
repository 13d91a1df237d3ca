package feed

import (
	"time"

	gobreaker "github.com/sony/gobreaker"
)

// breaker wraps one BarSource's Next calls in a circuit breaker: three
// consecutive failures, or a >5% failure rate once at least 20 requests have
// been made, trips it open for 60s. Adapted from the teacher's generic
// infra/breakers.Breaker, specialized to name the breaker after the symbol
// it's guarding so multiple polled sources don't share trip state.
type breaker struct {
	cb *gobreaker.CircuitBreaker
}

func newBreaker(symbol string) *breaker {
	st := gobreaker.Settings{Name: "feed." + symbol}
	st.Interval = 60 * time.Second
	st.Timeout = 60 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		total := counts.Requests
		if total < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(total) > 0.05
	}
	return &breaker{cb: gobreaker.NewCircuitBreaker(st)}
}

func (b *breaker) Execute(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}

func (b *breaker) State() gobreaker.State {
	return b.cb.State()
}
