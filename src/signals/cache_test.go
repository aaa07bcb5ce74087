package signals

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"trade-agent/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

func sig(symbol, detail string, sentiment float64, age time.Duration) models.MSignal {
	return models.MSignal{
		Symbol:       symbol,
		Source:       "stocktwits",
		SourceDetail: detail,
		Sentiment:    sentiment,
		Volume:       1000,
		Freshness:    1,
		SourceWeight: 1,
		Timestamp:    t0.Add(-age),
	}
}

// -----------------------------------------------------------------------------

func TestIngestNeverExceedsEntryCap(t *testing.T) {
	c := NewCache()

	var incoming []models.MSignal
	for i := 0; i < 500; i++ {
		incoming = append(incoming, sig(fmt.Sprintf("SYM%d", i), fmt.Sprintf("feed%d", i), 0.5, time.Minute))
	}

	out, _ := c.Ingest(nil, incoming, t0)
	assert.Len(t, out, c.MaxEntries)

	// A second ingest on top of a full cache stays capped.
	out, _ = c.Ingest(out, incoming, t0)
	assert.LessOrEqual(t, len(out), c.MaxEntries)
}

// -----------------------------------------------------------------------------

func TestIngestDropsInvalidAndStale(t *testing.T) {
	c := NewCache()

	incoming := []models.MSignal{
		sig("AAPL", "feed", 0.4, time.Hour),
		sig("OLD", "feed", 0.9, 25*time.Hour), // beyond max age
		{Symbol: "", Source: "x", Timestamp: t0}, // missing symbol
		{Symbol: "NOTIME", Source: "x"},          // missing timestamp
	}

	out, _ := c.Ingest(nil, incoming, t0)
	require.Len(t, out, 1)
	assert.Equal(t, "AAPL", out[0].Symbol)
}

// -----------------------------------------------------------------------------

func TestDedupKeepsMostRecentThenMostExtreme(t *testing.T) {
	c := NewCache()

	older := sig("TSLA", "board-a", 0.9, time.Hour)
	newer := sig("TSLA", "board-a", 0.2, time.Minute)
	out, _ := c.Ingest(nil, []models.MSignal{older, newer}, t0)
	require.Len(t, out, 1)
	assert.Equal(t, 0.2, out[0].Sentiment, "newer entry wins regardless of magnitude")

	// Same timestamp: the more extreme sentiment wins.
	a := sig("TSLA", "board-a", -0.3, time.Minute)
	b := sig("TSLA", "board-a", 0.8, time.Minute)
	out, _ = c.Ingest(nil, []models.MSignal{a, b}, t0)
	require.Len(t, out, 1)
	assert.Equal(t, 0.8, out[0].Sentiment)

	// Different source details survive side by side.
	out, _ = c.Ingest(nil, []models.MSignal{
		sig("TSLA", "board-a", 0.5, time.Minute),
		sig("TSLA", "board-b", 0.5, time.Minute),
	}, t0)
	assert.Len(t, out, 2)
}

// -----------------------------------------------------------------------------

func TestOrderingBySentimentThenRecency(t *testing.T) {
	c := NewCache()

	out, _ := c.Ingest(nil, []models.MSignal{
		sig("A", "f", 0.1, time.Minute),
		sig("B", "f", -0.9, time.Minute),
		sig("C", "f", 0.5, time.Minute),
		sig("D", "f", 0.5, time.Hour),
	}, t0)

	require.Len(t, out, 4)
	assert.Equal(t, "B", out[0].Symbol)
	assert.Equal(t, "C", out[1].Symbol, "equal magnitude: newer first")
	assert.Equal(t, "D", out[2].Symbol)
	assert.Equal(t, "A", out[3].Symbol)
}

// -----------------------------------------------------------------------------

func TestMemoryBudgetEviction(t *testing.T) {
	c := NewCache()
	c.MemoryBudget = 96 * 1024 // force the budget path with a small cap

	pad := strings.Repeat("x", 900)
	var incoming []models.MSignal
	for i := 0; i < 200; i++ {
		s := sig(fmt.Sprintf("SYM%d", i), pad+fmt.Sprint(i), 0.5, time.Minute)
		incoming = append(incoming, s)
	}

	out, info := c.Ingest(nil, incoming, t0)
	assert.True(t, info.BudgetEvicted)
	assert.GreaterOrEqual(t, len(out), c.Floor)
	assert.LessOrEqual(t, c.estimateBytes(out), c.MemoryBudget)
	assert.Equal(t, t0, info.At)
}

// -----------------------------------------------------------------------------

func TestQueriesDoNotMutate(t *testing.T) {
	c := NewCache()
	out, _ := c.Ingest(nil, []models.MSignal{
		sig("A", "f", 0.9, time.Minute),
		sig("B", "f", 0.5, time.Minute),
		sig("B", "g", 0.4, time.Minute),
	}, t0)
	before := append([]models.MSignal(nil), out...)

	_ = TopSymbols(out, 2, map[string]bool{"A": true})
	_ = ForSymbol(out, "B")
	_ = SentimentDispersion(out)

	assert.Equal(t, before, out)
}

// -----------------------------------------------------------------------------

func TestTopSymbolsDistinctAndExcluded(t *testing.T) {
	out := []models.MSignal{
		sig("A", "f", 0.9, time.Minute),
		sig("A", "g", 0.8, time.Minute),
		sig("B", "f", 0.7, time.Minute),
		sig("C", "f", 0.6, time.Minute),
	}

	top := TopSymbols(out, 2, map[string]bool{"B": true})
	assert.Equal(t, []string{"A", "C"}, top)
}
