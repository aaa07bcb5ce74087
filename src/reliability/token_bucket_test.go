package reliability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBucket(capacity, dailyLimit int) (*TokenBucket, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	tb := NewTokenBucket(capacity, dailyLimit)
	tb.now = clock.now
	tb.lastRefill = clock.t
	tb.dailyAnchor = clock.t
	return tb, clock
}

// -----------------------------------------------------------------------------

func TestSpendIsAtomic(t *testing.T) {
	tb, _ := newTestBucket(10, 1000)

	require.True(t, tb.Spend(10))

	// Bucket is empty: an oversized spend must not debit the daily counter.
	require.False(t, tb.Spend(3))
	_, daily := tb.Remaining()
	assert.Equal(t, 990, daily, "rejected spend must not touch the daily counter")
}

// -----------------------------------------------------------------------------

func TestDailyCounterBlocksIndependently(t *testing.T) {
	tb, clock := newTestBucket(100, 50)

	require.True(t, tb.Spend(50))

	// Refill the bucket well past 50 tokens; the daily counter still blocks.
	clock.advance(24 * time.Hour)
	// rolling anchor: exactly 24h elapsed resets the day
	assert.True(t, tb.Spend(1))

	tb2, clock2 := newTestBucket(100, 50)
	require.True(t, tb2.Spend(50))
	clock2.advance(12 * time.Hour)
	bucket, daily := tb2.Remaining()
	assert.Greater(t, bucket, 20.0, "bucket should have refilled")
	assert.Equal(t, 0, daily)
	assert.False(t, tb2.Spend(1), "daily counter must block despite bucket tokens")
}

// -----------------------------------------------------------------------------

func TestRefillRate(t *testing.T) {
	tb, clock := newTestBucket(100, 86400) // 1 token/sec

	require.True(t, tb.Spend(100))
	clock.advance(30 * time.Second)

	bucket, _ := tb.Remaining()
	assert.InDelta(t, 30.0, bucket, 0.01)

	clock.advance(time.Hour)
	bucket, _ = tb.Remaining()
	assert.Equal(t, 100.0, bucket, "bucket must cap at capacity")
}

// -----------------------------------------------------------------------------

func TestRollingDailyAnchor(t *testing.T) {
	tb, clock := newTestBucket(1000, 100)

	require.True(t, tb.Spend(100))
	assert.False(t, tb.Spend(1))

	clock.advance(23 * time.Hour)
	assert.False(t, tb.Spend(1), "counter resets 24h from anchor, not at midnight")

	clock.advance(time.Hour)
	assert.True(t, tb.Spend(1))
}
