package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"trade-agent/src/helpers"
	"trade-agent/src/interfaces"
	"trade-agent/src/logger"
	"trade-agent/src/models"
)

// -----------------------------------------------------------------------------
// ResilientStore wraps a state store with the degrade-and-retry ladder: when a
// snapshot exceeds the store's size budget, successive rungs trim log,
// episode, equity-history and signal retention in place until the write fits.
// Trimming is idempotent; a rung that already fits changes nothing.
// -----------------------------------------------------------------------------

// trimRung is one set of retention caps applied together.
type trimRung struct {
	Logs     int
	Episodes int
	Equity   int
	Signals  int
}

// degradeLadder runs from gentle to aggressive. The last rung keeps only
// what the dashboard minimally needs.
var degradeLadder = []trimRung{
	{Logs: 400, Episodes: 300, Equity: 180, Signals: 200},
	{Logs: 200, Episodes: 150, Equity: 120, Signals: 120},
	{Logs: 80, Episodes: 60, Equity: 90, Signals: 80},
	{Logs: 25, Episodes: 20, Equity: 60, Signals: 40},
}

// ErrLadderExhausted reports that no rung produced a snapshot the store
// would accept. The state stays in memory; the next persist retries from a
// smaller baseline.
var ErrLadderExhausted = errors.New("state too large after all degrade rungs")

// -----------------------------------------------------------------------------

type ResilientStore struct {
	store  interfaces.IStateStore
	logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewResilientStore(store interfaces.IStateStore, log *logger.Logger) *ResilientStore {
	return &ResilientStore{
		store:  store,
		logger: log.Named("ResilientStore"),
	}
}

// -----------------------------------------------------------------------------

// Persist writes the state, degrading retention rung by rung on size
// failures. The trims mutate the live state so the shrinkage carries into
// future ticks.
func (r *ResilientStore) Persist(state *models.MAgentState) error {
	snapshot, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to serialize state: %w", err)
	}

	err = r.store.SaveState(snapshot)
	if err == nil {
		return nil
	}
	if !errors.Is(err, interfaces.ErrStateTooLarge) {
		return err
	}

	for i, rung := range degradeLadder {
		state.TrimForStorage(rung.Logs, rung.Episodes, rung.Equity, rung.Signals)

		snapshot, err = json.Marshal(state)
		if err != nil {
			return fmt.Errorf("failed to serialize state: %w", err)
		}

		err = r.store.SaveState(snapshot)
		if err == nil {
			r.logger.Warning("state persisted after degrade rung %d (logs<=%d episodes<=%d equity<=%d signals<=%d, %d bytes)",
				i+1, rung.Logs, rung.Episodes, rung.Equity, rung.Signals, len(snapshot))
			return nil
		}
		if !errors.Is(err, interfaces.ErrStateTooLarge) {
			return err
		}
	}

	r.logger.Error("state persist failed: %d bytes still over budget after %d rungs", len(snapshot), len(degradeLadder))
	return ErrLadderExhausted
}

// -----------------------------------------------------------------------------

// Restore loads and deserializes the last snapshot, or returns nil when the
// store is empty.
func (r *ResilientStore) Restore() (*models.MAgentState, error) {
	snapshot, err := r.store.LoadState()
	if err != nil {
		return nil, err
	}
	if len(snapshot) == 0 {
		return nil, nil
	}

	var state models.MAgentState
	if err := json.Unmarshal(snapshot, &state); err != nil {
		return nil, fmt.Errorf("failed to deserialize persisted state: %w", err)
	}
	return &state, nil
}

// -----------------------------------------------------------------------------

// RecordOrder and LookupOrder pass through to the idempotency ledger.
func (r *ResilientStore) RecordOrder(key string, rec interfaces.MOrderRecord) (bool, error) {
	return r.store.RecordOrder(key, rec)
}

func (r *ResilientStore) LookupOrder(key string) (*interfaces.MOrderRecord, error) {
	return r.store.LookupOrder(key)
}

// -----------------------------------------------------------------------------

// NewStateStore picks the backing store from config. SQLite is the default;
// postgres is selected by db_type.
func NewStateStore(cfg *models.MAgentConfig, log *logger.Logger) (interfaces.IStateStore, error) {
	switch cfg.Storage.DBType {
	case "postgres":
		return NewPostgresDB(&cfg.Storage, cfg.Name, log)
	case "", "sqlite":
		return NewSQLiteDB(&cfg.Storage, log)
	default:
		return nil, &helpers.DatabaseError{AgentError: helpers.AgentError{
			Message: fmt.Sprintf("unknown storage db_type %q", cfg.Storage.DBType)}}
	}
}
