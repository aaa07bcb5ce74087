package datasource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"trade-agent/src/interfaces"
	"trade-agent/src/logger"
	"trade-agent/src/models"
	"trade-agent/src/reliability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSource is a controllable signal source.
type stubSource struct {
	name     string
	signals  []models.MSignal
	err      error
	delay    time.Duration
	timeout  int
	budgeted bool
	calls    int
}

func (s *stubSource) Name() string   { return s.name }
func (s *stubSource) Timeout() int   { return s.timeout }
func (s *stubSource) Budgeted() bool { return s.budgeted }

func (s *stubSource) Fetch(ctx context.Context, _ []string) ([]models.MSignal, error) {
	s.calls++
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.signals, s.err
}

func testManager(bucket *reliability.TokenBucket, sources ...interfaces.ISignalSource) *MultiSourceManager {
	if bucket == nil {
		bucket = reliability.NewTokenBucket(100, 1000)
	}
	return NewMultiSourceManager(sources, bucket, logger.NewLogger("CRITICAL", "test"))
}

func sigFor(symbol, source string) models.MSignal {
	return models.MSignal{Symbol: symbol, Source: source, SourceDetail: "feed", Sentiment: 0.5, Timestamp: time.Now()}
}

// -----------------------------------------------------------------------------

func TestFetchAllMergesSettledSources(t *testing.T) {
	a := &stubSource{name: "a", timeout: 2, signals: []models.MSignal{sigFor("AAPL", "a")}}
	b := &stubSource{name: "b", timeout: 2, signals: []models.MSignal{sigFor("TSLA", "b"), sigFor("NVDA", "b")}}
	m := testManager(nil, a, b)

	merged, outcomes := m.FetchAll(context.Background(), []string{"AAPL", "TSLA", "NVDA"})
	assert.Len(t, merged, 3)
	assert.Len(t, outcomes, 2)
}

// -----------------------------------------------------------------------------

func TestFetchAllOneFailureDoesNotBlockOthers(t *testing.T) {
	good := &stubSource{name: "good", timeout: 2, signals: []models.MSignal{sigFor("AAPL", "good")}}
	bad := &stubSource{name: "bad", timeout: 2, err: errors.New("feed down")}
	m := testManager(nil, good, bad)

	merged, outcomes := m.FetchAll(context.Background(), []string{"AAPL"})
	require.Len(t, merged, 1)
	assert.Equal(t, "AAPL", merged[0].Symbol)

	byName := make(map[string]FetchOutcome)
	for _, o := range outcomes {
		byName[o.Source] = o
	}
	assert.NoError(t, byName["good"].Err)
	assert.Error(t, byName["bad"].Err)
	assert.Equal(t, 1, m.Breaker("bad").Failures())
	assert.Equal(t, 0, m.Breaker("good").Failures())
}

// -----------------------------------------------------------------------------

func TestFetchAllSkipsOpenBreaker(t *testing.T) {
	src := &stubSource{name: "flaky", timeout: 2, signals: []models.MSignal{sigFor("AAPL", "flaky")}}
	m := testManager(nil, src)

	m.Breaker("flaky").RecordFailure()

	merged, outcomes := m.FetchAll(context.Background(), []string{"AAPL"})
	assert.Empty(t, merged)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Skipped)
	assert.Equal(t, 0, src.calls, "skipped means not called at all")
}

// -----------------------------------------------------------------------------

func TestFetchAllSkipsBudgetedSourceWhenBucketEmpty(t *testing.T) {
	bucket := reliability.NewTokenBucket(0, 0) // always empty
	paid := &stubSource{name: "paid", timeout: 2, budgeted: true, signals: []models.MSignal{sigFor("AAPL", "paid")}}
	free := &stubSource{name: "free", timeout: 2, signals: []models.MSignal{sigFor("TSLA", "free")}}
	m := testManager(bucket, paid, free)

	merged, outcomes := m.FetchAll(context.Background(), []string{"AAPL", "TSLA"})
	require.Len(t, merged, 1)
	assert.Equal(t, "TSLA", merged[0].Symbol)
	assert.Equal(t, 0, paid.calls)

	names := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Skipped {
			names = append(names, o.Source)
		}
	}
	sort.Strings(names)
	assert.Equal(t, []string{"paid"}, names)
}

// -----------------------------------------------------------------------------

// Skip outcomes are appended by the dispatching goroutine while fetch
// goroutines from earlier iterations append their own; both paths must
// synchronize on the same mutex.
func TestFetchAllInterleavesSkipsAndFetchesSafely(t *testing.T) {
	bucket := reliability.NewTokenBucket(0, 0) // every budgeted source skips
	sources := make([]interfaces.ISignalSource, 0, 16)
	for i := 0; i < 8; i++ {
		sources = append(sources,
			&stubSource{name: fmt.Sprintf("live-%d", i), timeout: 2, delay: time.Millisecond,
				signals: []models.MSignal{sigFor("AAPL", "live")}},
			&stubSource{name: fmt.Sprintf("paid-%d", i), timeout: 2, budgeted: true},
		)
	}
	m := testManager(bucket, sources...)

	merged, outcomes := m.FetchAll(context.Background(), []string{"AAPL"})
	assert.Len(t, merged, 8)
	require.Len(t, outcomes, 16)

	skipped := 0
	for _, o := range outcomes {
		if o.Skipped {
			skipped++
		}
	}
	assert.Equal(t, 8, skipped)
}

// -----------------------------------------------------------------------------

func TestFetchAllTimeoutCountsAsFailure(t *testing.T) {
	slow := &stubSource{name: "slow", timeout: 1, delay: 3 * time.Second}
	fast := &stubSource{name: "fast", timeout: 1, signals: []models.MSignal{sigFor("AAPL", "fast")}}
	m := testManager(nil, slow, fast)

	start := time.Now()
	merged, _ := m.FetchAll(context.Background(), []string{"AAPL"})
	elapsed := time.Since(start)

	assert.Len(t, merged, 1, "slow source's result is discarded")
	assert.Less(t, elapsed, 2500*time.Millisecond, "deadline bounds the gather")
	assert.Equal(t, 1, m.Breaker("slow").Failures())
}
