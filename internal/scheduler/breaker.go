package scheduler

import (
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/timeshareflow/pbxsync/internal/metrics"
	"github.com/timeshareflow/pbxsync/internal/stage"
)

type breakerKey struct {
	tenant string
	stage  string
}

// breakerRegistry lazily creates and caches one circuit breaker per
// (tenant, stage) pair, grounded on the teacher's single named
// gobreaker.CircuitBreaker, generalized from one external API to one
// breaker per tenant-stage combination.
type breakerRegistry struct {
	mu       sync.Mutex
	breakers map[breakerKey]*gobreaker.CircuitBreaker[stage.Result]
}

func newBreakerRegistry() *breakerRegistry {
	return &breakerRegistry{breakers: make(map[breakerKey]*gobreaker.CircuitBreaker[stage.Result])}
}

func (r *breakerRegistry) get(tenantID, stageName string) *gobreaker.CircuitBreaker[stage.Result] {
	key := breakerKey{tenantID, stageName}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[key]; ok {
		return cb
	}
	cb := newBreaker(tenantID, stageName)
	r.breakers[key] = cb
	return cb
}

// newBreaker opens after 3 consecutive stage failures and waits 2 minutes
// before allowing a single half-open probe, matching the teacher's
// Settings shape (MaxRequests/Interval/Timeout/ReadyToTrip/OnStateChange).
func newBreaker(tenantID, stageName string) *gobreaker.CircuitBreaker[stage.Result] {
	name := tenantID + "/" + stageName
	metrics.CircuitBreakerState.WithLabelValues(tenantID, stageName).Set(0)
	metrics.SetCircuitBreakerConsecutiveFailures(tenantID, stageName, 0)

	return gobreaker.NewCircuitBreaker[stage.Result](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			metrics.RecordCircuitBreakerTransition(tenantID, stageName, stateToString(from), stateToString(to))
			if to == gobreaker.StateClosed {
				metrics.SetCircuitBreakerConsecutiveFailures(tenantID, stageName, 0)
			}
		},
	})
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
