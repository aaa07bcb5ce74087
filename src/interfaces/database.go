package interfaces

import (
	"errors"
	"time"
)

// -----------------------------------------------------------------------------
// IStateStore defines the contract for durable agent-state storage.
// -----------------------------------------------------------------------------

// ErrStateTooLarge is returned by SaveState when the serialized snapshot
// exceeds the store's size budget. It is the explicit signal for the
// degrade-and-retry ladder; it must never be wrapped into a generic failure.
var ErrStateTooLarge = errors.New("state snapshot exceeds storage size limit")

type IStateStore interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// SaveState writes one serialized state snapshot, replacing the previous
	// one. Returns ErrStateTooLarge when the snapshot exceeds the size budget.
	SaveState(snapshot []byte) error

	// -----------------------------------------------------------------------------

	// LoadState returns the last persisted snapshot, or nil when none exists.
	LoadState() ([]byte, error)

	// -----------------------------------------------------------------------------

	// RecordOrder stores an accepted submission under its idempotency key.
	// Returns false when the key was already recorded (duplicate intent).
	RecordOrder(idempotencyKey string, rec MOrderRecord) (bool, error)

	// -----------------------------------------------------------------------------

	// LookupOrder returns the record for a key, or nil.
	LookupOrder(idempotencyKey string) (*MOrderRecord, error)

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}

// -----------------------------------------------------------------------------

// MOrderRecord is the dedup bookkeeping row for one accepted submission.
type MOrderRecord struct {
	IdempotencyKey  string    `json:"idempotency_key"`
	Action          string    `json:"action"`
	Symbol          string    `json:"symbol"`
	SubmissionState string    `json:"submission_state"`
	BrokerOrderID   string    `json:"broker_order_id"`
	SubmittedAt     time.Time `json:"submitted_at"`
}
