package datasource

import (
	"context"
	"sync"
	"time"

	"trade-agent/src/interfaces"
	"trade-agent/src/logger"
	"trade-agent/src/models"
	"trade-agent/src/reliability"
)

// -----------------------------------------------------------------------------
// MultiSourceManager fans one gather request out to every registered signal
// source, all-settled: each source runs under its own timeout and breaker,
// and one slow or broken source never blocks the rest. Results from a source
// that outlives its deadline are discarded.
// -----------------------------------------------------------------------------

type MultiSourceManager struct {
	Logger *logger.Logger

	mu       sync.RWMutex
	sources  map[string]interfaces.ISignalSource
	breakers map[string]*reliability.CircuitBreaker
	bucket   *reliability.TokenBucket
}

// -----------------------------------------------------------------------------

// FetchOutcome reports how one source fared during a gather, for telemetry.
type FetchOutcome struct {
	Source  string
	Signals int
	Skipped bool // open breaker or exhausted read budget
	Err     error
	Latency time.Duration
}

// -----------------------------------------------------------------------------

func NewMultiSourceManager(sources []interfaces.ISignalSource, bucket *reliability.TokenBucket, log *logger.Logger) *MultiSourceManager {
	m := &MultiSourceManager{
		Logger:   log.Named("MultiSourceManager"),
		sources:  make(map[string]interfaces.ISignalSource),
		breakers: make(map[string]*reliability.CircuitBreaker),
		bucket:   bucket,
	}

	for _, s := range sources {
		m.sources[s.Name()] = s
		m.breakers[s.Name()] = reliability.NewCircuitBreaker(s.Name())
	}

	return m
}

// -----------------------------------------------------------------------------

// Sources returns a snapshot of the registered sources.
func (m *MultiSourceManager) Sources() []interfaces.ISignalSource {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := make([]interfaces.ISignalSource, 0, len(m.sources))
	for _, s := range m.sources {
		list = append(list, s)
	}
	return list
}

// -----------------------------------------------------------------------------

// Breaker exposes the breaker guarding one source, or nil.
func (m *MultiSourceManager) Breaker(name string) *reliability.CircuitBreaker {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.breakers[name]
}

// -----------------------------------------------------------------------------

// FetchAll gathers from every source concurrently and merges whatever
// settled in time. Skipped sources (open breaker, empty budget) produce an
// outcome but no error.
func (m *MultiSourceManager) FetchAll(ctx context.Context, symbols []string) ([]models.MSignal, []FetchOutcome) {
	sources := m.Sources()

	var mu sync.Mutex
	var wg sync.WaitGroup
	var merged []models.MSignal
	outcomes := make([]FetchOutcome, 0, len(sources))

	for _, src := range sources {
		breaker := m.Breaker(src.Name())

		if !breaker.Allow() {
			m.Logger.Info("Skipping source %s: breaker open", src.Name())
			mu.Lock()
			outcomes = append(outcomes, FetchOutcome{Source: src.Name(), Skipped: true})
			mu.Unlock()
			continue
		}
		if src.Budgeted() && !m.bucket.Spend(1) {
			m.Logger.Warning("Skipping source %s: read budget exhausted", src.Name())
			mu.Lock()
			outcomes = append(outcomes, FetchOutcome{Source: src.Name(), Skipped: true})
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(s interfaces.ISignalSource, cb *reliability.CircuitBreaker) {
			defer wg.Done()

			timeout := time.Duration(s.Timeout()) * time.Second
			if timeout <= 0 {
				timeout = 8 * time.Second
			}
			fetchCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			sigs, err := s.Fetch(fetchCtx, symbols)
			latency := time.Since(start)

			outcome := FetchOutcome{Source: s.Name(), Err: err, Latency: latency}
			if err != nil {
				cb.RecordFailure()
				m.Logger.Error("Source %s failed after %v: %v", s.Name(), latency, err)
			} else {
				cb.RecordSuccess()
				outcome.Signals = len(sigs)
			}

			mu.Lock()
			if err == nil {
				merged = append(merged, sigs...)
			}
			outcomes = append(outcomes, outcome)
			mu.Unlock()
		}(src, breaker)
	}

	wg.Wait()
	return merged, outcomes
}
