// Package resilience provides a named circuit breaker guarding calls to
// external dependencies, primarily the embedding provider.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"govjobs-semantic-platform/internal/logger"
)

// State is the breaker state machine position.
type State int32

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// OpenError is returned when the breaker rejects a call without invoking the
// wrapped operation. Distinct from a raw provider failure so callers can apply
// a fast-fail path.
type OpenError struct {
	Name string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit breaker %q is open", e.Name)
}

// TimeoutError is returned when the wrapped operation exceeds the breaker's
// per-call timeout. Timeouts count toward the failure threshold.
type TimeoutError struct {
	Name    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("circuit breaker %q: call exceeded %s timeout", e.Name, e.Timeout)
}

// IsOpen reports whether err is a breaker rejection.
func IsOpen(err error) bool {
	var oe *OpenError
	return errors.As(err, &oe)
}

// Settings configures a Breaker. Zero values fall back to defaults.
type Settings struct {
	Name             string
	FailureThreshold int           // consecutive expected failures before opening (default 5)
	SuccessThreshold int           // successful trials required to close from half-open (default 1)
	RecoveryTimeout  time.Duration // time after the last failure before a trial is admitted (default 30s)
	CallTimeout      time.Duration // hard per-call timeout (default 15s)

	// IsExpected classifies errors as transient dependency failures. Errors
	// it rejects propagate to the caller without touching the failure count.
	// nil means every error counts.
	IsExpected func(error) bool

	OnStateChange func(name string, from, to State)
}

// Transition is one recorded state change.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// Metrics is an observability snapshot. Not used for correctness.
type Metrics struct {
	State           State
	FailureCount    int
	TotalRequests   uint64
	TotalSuccesses  uint64
	TotalFailures   uint64
	LastSuccessTime time.Time
	LastFailureTime time.Time
	Transitions     []Transition
}

const transitionLogCap = 64

// Breaker is a per-dependency circuit breaker. All state transitions are
// serialized under a single mutex so concurrent callers observe and
// contribute to the same failure count.
type Breaker struct {
	name             string
	failureThreshold int
	successThreshold int
	recoveryTimeout  time.Duration
	callTimeout      time.Duration
	isExpected       func(error) bool
	onStateChange    func(name string, from, to State)

	mu                sync.Mutex
	state             State
	failureCount      int
	halfOpenInFlight  int
	halfOpenSuccesses int
	totalRequests     uint64
	totalSuccesses    uint64
	totalFailures     uint64
	lastSuccess       time.Time
	lastFailure       time.Time
	transitions       []Transition

	now func() time.Time // test hook
}

// NewBreaker creates a breaker in the closed state.
func NewBreaker(s Settings) *Breaker {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.SuccessThreshold <= 0 {
		s.SuccessThreshold = 1
	}
	if s.RecoveryTimeout <= 0 {
		s.RecoveryTimeout = 30 * time.Second
	}
	if s.CallTimeout <= 0 {
		s.CallTimeout = 15 * time.Second
	}
	return &Breaker{
		name:             s.Name,
		failureThreshold: s.FailureThreshold,
		successThreshold: s.SuccessThreshold,
		recoveryTimeout:  s.RecoveryTimeout,
		callTimeout:      s.CallTimeout,
		isExpected:       s.IsExpected,
		onStateChange:    s.OnStateChange,
		state:            StateClosed,
		now:              time.Now,
	}
}

// Name returns the breaker's dependency name.
func (b *Breaker) Name() string { return b.name }

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Metrics returns a snapshot of the breaker's counters.
func (b *Breaker) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	transitions := make([]Transition, len(b.transitions))
	copy(transitions, b.transitions)
	return Metrics{
		State:           b.state,
		FailureCount:    b.failureCount,
		TotalRequests:   b.totalRequests,
		TotalSuccesses:  b.totalSuccesses,
		TotalFailures:   b.totalFailures,
		LastSuccessTime: b.lastSuccess,
		LastFailureTime: b.lastFailure,
		Transitions:     transitions,
	}
}

// Execute runs op under the breaker's admission policy and hard timeout.
// Rejections return *OpenError without invoking op. Timed-out calls count as
// failures and return *TimeoutError. Errors outside the expected set
// propagate without touching the failure count.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) (interface{}, error)) (interface{}, error) {
	if err := b.admit(); err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, b.callTimeout)
	defer cancel()

	type callResult struct {
		value interface{}
		err   error
	}
	done := make(chan callResult, 1)
	go func() {
		v, err := op(cctx)
		done <- callResult{value: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err == nil {
			b.onSuccess()
			return r.value, nil
		}
		if b.expected(r.err) && ctx.Err() == nil {
			b.onFailure()
		} else {
			// Unexpected errors and caller cancellation say nothing about
			// the health of the dependency.
			b.onUnclassified()
		}
		return nil, r.err
	case <-cctx.Done():
		// The in-flight call is cancelled via cctx; its eventual result is
		// discarded.
		if ctx.Err() != nil {
			// The caller gave up, which says nothing about the health of the
			// dependency. Leave the failure count alone, but release any
			// half-open trial slot so the breaker does not wedge.
			b.onUnclassified()
			return nil, ctx.Err()
		}
		// Exceeding the hard timeout counts as a failure.
		b.onFailure()
		return nil, &TimeoutError{Name: b.name, Timeout: b.callTimeout}
	}
}

func (b *Breaker) expected(err error) bool {
	if b.isExpected == nil {
		return true
	}
	return b.isExpected(err)
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.lastFailure) < b.recoveryTimeout {
			return &OpenError{Name: b.name}
		}
		b.transition(StateHalfOpen)
		b.halfOpenInFlight = 0
		b.halfOpenSuccesses = 0
		b.halfOpenInFlight++
	case StateHalfOpen:
		if b.halfOpenInFlight >= b.successThreshold {
			return &OpenError{Name: b.name}
		}
		b.halfOpenInFlight++
	}

	b.totalRequests++
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalSuccesses++
	b.lastSuccess = b.now()

	switch b.state {
	case StateHalfOpen:
		b.halfOpenSuccesses++
		if b.halfOpenSuccesses >= b.successThreshold {
			b.transition(StateClosed)
			b.failureCount = 0
		}
	case StateClosed:
		b.failureCount = 0
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.totalFailures++
	b.failureCount++
	b.lastFailure = b.now()

	switch b.state {
	case StateHalfOpen:
		// Failed trial: re-open and restart the recovery clock.
		b.transition(StateOpen)
	case StateClosed:
		if b.failureCount >= b.failureThreshold {
			b.transition(StateOpen)
		}
	}
}

// onUnclassified handles errors outside the expected set: they propagate to
// the caller but leave the failure count untouched. A half-open trial slot is
// released so the breaker does not wedge on a programming error.
func (b *Breaker) onUnclassified() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.halfOpenInFlight > 0 {
		b.halfOpenInFlight--
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.transitions = append(b.transitions, Transition{From: from, To: to, At: b.now()})
	if len(b.transitions) > transitionLogCap {
		b.transitions = b.transitions[len(b.transitions)-transitionLogCap:]
	}

	logger.Warn("Circuit breaker state change",
		"breaker", b.name, "from", from.String(), "to", to.String())

	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}
