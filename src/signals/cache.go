package signals

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"trade-agent/src/models"
)

// -----------------------------------------------------------------------------
// Cache is the memory-bounded signal buffer. The backing slice lives on the
// agent state (single owner); the cache holds only limits and operates on the
// slice passed per call. Eviction is lossy: callers must not assume any
// specific signal survives an ingest.
// -----------------------------------------------------------------------------

const (
	// MaxAge is the hard freshness limit for any signal.
	MaxAge = 24 * time.Hour
	// MaxEntries caps the cache after dedup and sorting.
	MaxEntries = 200
	// MemoryBudgetBytes bounds the serialized size of the cache.
	MemoryBudgetBytes = 5 * 1024 * 1024
	// EmergencyFloor is the minimum entry count kept by budget eviction.
	EmergencyFloor = 80
)

type Cache struct {
	MaxAge       time.Duration
	MaxEntries   int
	MemoryBudget int
	Floor        int
}

// -----------------------------------------------------------------------------

// CleanupInfo reports whether budget eviction ran during an ingest.
type CleanupInfo struct {
	BudgetEvicted bool
	Kept          int
	At            time.Time
}

// -----------------------------------------------------------------------------

func NewCache() *Cache {
	return &Cache{
		MaxAge:       MaxAge,
		MaxEntries:   MaxEntries,
		MemoryBudget: MemoryBudgetBytes,
		Floor:        EmergencyFloor,
	}
}

// -----------------------------------------------------------------------------

// Ingest merges incoming signals into existing ones and returns the new cache
// contents: validated, age-filtered, deduplicated by (symbol, source-detail),
// sorted by |sentiment| then recency, truncated to the entry cap and then to
// the memory budget.
func (c *Cache) Ingest(existing, incoming []models.MSignal, now time.Time) ([]models.MSignal, CleanupInfo) {
	merged := make([]models.MSignal, 0, len(existing)+len(incoming))
	merged = append(merged, existing...)
	merged = append(merged, incoming...)

	// Validate + age filter.
	kept := merged[:0]
	cutoff := now.Add(-c.MaxAge)
	for _, s := range merged {
		if !s.Valid() {
			continue
		}
		if s.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, s)
	}

	// Dedup by (symbol, source-detail): most recent wins, ties go to the
	// more extreme sentiment.
	byKey := make(map[string]models.MSignal, len(kept))
	for _, s := range kept {
		key := s.DedupKey()
		cur, ok := byKey[key]
		if !ok {
			byKey[key] = s
			continue
		}
		if s.Timestamp.After(cur.Timestamp) {
			byKey[key] = s
		} else if s.Timestamp.Equal(cur.Timestamp) &&
			math.Abs(s.Sentiment) > math.Abs(cur.Sentiment) {
			byKey[key] = s
		}
	}

	out := make([]models.MSignal, 0, len(byKey))
	for _, s := range byKey {
		out = append(out, s)
	}

	// Strongest sentiment first, recency breaks ties.
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].Sentiment), math.Abs(out[j].Sentiment)
		if ai != aj {
			return ai > aj
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if len(out) > c.MaxEntries {
		out = out[:c.MaxEntries]
	}

	info := CleanupInfo{Kept: len(out)}

	// Memory budget: shrink toward the emergency floor until the serialized
	// estimate fits.
	if c.estimateBytes(out) > c.MemoryBudget {
		info.BudgetEvicted = true
		info.At = now
		for len(out) > c.Floor && c.estimateBytes(out) > c.MemoryBudget {
			// Drop the weakest 10% per step to avoid re-serializing per entry.
			step := len(out) / 10
			if step < 1 {
				step = 1
			}
			next := len(out) - step
			if next < c.Floor {
				next = c.Floor
			}
			out = out[:next]
		}
		info.Kept = len(out)
	}

	return out, info
}

// -----------------------------------------------------------------------------

// estimateBytes sizes the cache as it will be persisted.
func (c *Cache) estimateBytes(sigs []models.MSignal) int {
	b, err := json.Marshal(sigs)
	if err != nil {
		return 0
	}
	return len(b)
}

// -----------------------------------------------------------------------------
// Query helpers. None of these mutate the cache.
// -----------------------------------------------------------------------------

// TopSymbols returns up to n distinct symbols ranked by the cache order,
// skipping any in the exclude set.
func TopSymbols(sigs []models.MSignal, n int, exclude map[string]bool) []string {
	seen := make(map[string]bool, n)
	out := make([]string, 0, n)
	for _, s := range sigs {
		if exclude[s.Symbol] || seen[s.Symbol] {
			continue
		}
		seen[s.Symbol] = true
		out = append(out, s.Symbol)
		if len(out) == n {
			break
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// ForSymbol returns the cached signals for one symbol, preserving order.
func ForSymbol(sigs []models.MSignal, symbol string) []models.MSignal {
	var out []models.MSignal
	for _, s := range sigs {
		if s.Symbol == symbol {
			out = append(out, s)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// SentimentDispersion is the population stdev of raw sentiment across the
// cache, one regime-classification input.
func SentimentDispersion(sigs []models.MSignal) float64 {
	if len(sigs) < 2 {
		return 0
	}
	mean := 0.0
	for _, s := range sigs {
		mean += s.Sentiment
	}
	mean /= float64(len(sigs))

	variance := 0.0
	for _, s := range sigs {
		d := s.Sentiment - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(sigs)))
}
