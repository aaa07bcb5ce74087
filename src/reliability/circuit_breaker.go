package reliability

import (
	"strings"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// CircuitBreaker tracks failures for one external dependency and suppresses
// calls for an exponentially growing cool-off while open. A single success
// closes it immediately and zeroes the failure count.
// -----------------------------------------------------------------------------

const (
	breakerBaseDelay = 15 * time.Second
	breakerMaxDelay  = 5 * time.Minute
)

type CircuitBreaker struct {
	name string

	mu        sync.Mutex
	failures  int
	openUntil time.Time
	now       func() time.Time
}

// -----------------------------------------------------------------------------

func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{name: name, now: time.Now}
}

// -----------------------------------------------------------------------------

// Name returns the dependency this breaker guards.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// -----------------------------------------------------------------------------

// Allow reports whether a call may be attempted. A false result means the
// call is skipped, a distinct outcome from a failed attempt.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return !cb.now().Before(cb.openUntil)
}

// -----------------------------------------------------------------------------

// RecordFailure opens the breaker for min(5m, 15s × 2^(failures-1)).
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	delay := breakerBaseDelay
	for i := 1; i < cb.failures && delay < breakerMaxDelay; i++ {
		delay *= 2
	}
	if delay > breakerMaxDelay {
		delay = breakerMaxDelay
	}
	cb.openUntil = cb.now().Add(delay)
}

// -----------------------------------------------------------------------------

// RecordSuccess closes the breaker immediately and resets the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.openUntil = time.Time{}
}

// -----------------------------------------------------------------------------

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// -----------------------------------------------------------------------------
// LLMGuard wraps a dependency-wide breaker with an authentication cool-off:
// once a failure is classified as an auth failure, all calls to the
// dependency are suppressed for a fixed window, independent of the generic
// backoff. This is the stronger, manual override.
// -----------------------------------------------------------------------------

const authCoolOff = 5 * time.Minute

var llmAuthPatterns = []string{"unauthorized", "401", "invalid key", "invalid api key"}

type LLMGuard struct {
	breaker *CircuitBreaker

	mu            sync.Mutex
	authBlockedTo time.Time
	lastAuthError string
	now           func() time.Time
}

// -----------------------------------------------------------------------------

func NewLLMGuard() *LLMGuard {
	return &LLMGuard{breaker: NewCircuitBreaker("llm"), now: time.Now}
}

// -----------------------------------------------------------------------------

// Allow reports whether an LLM call may be attempted.
func (g *LLMGuard) Allow() bool {
	g.mu.Lock()
	blocked := g.now().Before(g.authBlockedTo)
	g.mu.Unlock()
	if blocked {
		return false
	}
	return g.breaker.Allow()
}

// -----------------------------------------------------------------------------

// RecordFailure feeds the generic breaker and, when the error text matches an
// auth pattern, arms the dependency-wide cool-off and records the message.
func (g *LLMGuard) RecordFailure(err error) {
	g.breaker.RecordFailure()
	if err == nil {
		return
	}

	text := strings.ToLower(err.Error())
	for _, p := range llmAuthPatterns {
		if strings.Contains(text, p) {
			g.mu.Lock()
			g.authBlockedTo = g.now().Add(authCoolOff)
			g.lastAuthError = err.Error()
			g.mu.Unlock()
			return
		}
	}
}

// -----------------------------------------------------------------------------

// RecordSuccess closes the generic breaker. The auth cool-off is left to
// expire on its own: a lone success does not prove the key is valid again.
func (g *LLMGuard) RecordSuccess() {
	g.breaker.RecordSuccess()
}

// -----------------------------------------------------------------------------

// LastAuthError surfaces the failing message for operators, or "".
func (g *LLMGuard) LastAuthError() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastAuthError
}
