package reliability

import (
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// TokenBucket rations a scarce external read budget. Two gates apply to every
// spend: a refilling bucket (rate = dailyLimit/86400 tokens per second) and an
// independent hard daily counter that resets 24h after its rolling anchor.
// A spend succeeds only if both gates have capacity; partial spends are
// rejected atomically.
// -----------------------------------------------------------------------------

type TokenBucket struct {
	mu sync.Mutex

	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time

	dailyLimit  int
	dailySpent  int
	dailyAnchor time.Time

	now func() time.Time
}

// -----------------------------------------------------------------------------

// NewTokenBucket creates a full bucket of the given capacity whose refill
// rate is derived from the daily limit.
func NewTokenBucket(capacity int, dailyLimit int) *TokenBucket {
	now := time.Now()
	return &TokenBucket{
		capacity:    float64(capacity),
		tokens:      float64(capacity),
		refillRate:  float64(dailyLimit) / 86400.0,
		lastRefill:  now,
		dailyLimit:  dailyLimit,
		dailyAnchor: now,
		now:         time.Now,
	}
}

// -----------------------------------------------------------------------------

// Spend debits k tokens from both gates, or neither.
func (tb *TokenBucket) Spend(k int) bool {
	if k <= 0 {
		return true
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	tb.refill(now)
	tb.rollDaily(now)

	if tb.dailySpent+k > tb.dailyLimit {
		return false
	}
	if float64(k) > tb.tokens {
		return false
	}

	tb.tokens -= float64(k)
	tb.dailySpent += k
	return true
}

// -----------------------------------------------------------------------------

// Remaining returns the current bucket level and daily headroom.
func (tb *TokenBucket) Remaining() (bucket float64, daily int) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	tb.refill(now)
	tb.rollDaily(now)
	return tb.tokens, tb.dailyLimit - tb.dailySpent
}

// -----------------------------------------------------------------------------

func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

// -----------------------------------------------------------------------------

func (tb *TokenBucket) rollDaily(now time.Time) {
	for now.Sub(tb.dailyAnchor) >= 24*time.Hour {
		tb.dailyAnchor = tb.dailyAnchor.Add(24 * time.Hour)
		tb.dailySpent = 0
	}
}
