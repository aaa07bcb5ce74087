package models

import (
	"fmt"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Order submission types for the execution gateway.
// -----------------------------------------------------------------------------

const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// IdempotencyBucketSeconds is the width of the time bucket folded into
// idempotency keys: one key per logical intent per bucket.
const IdempotencyBucketSeconds = 120

// Submission states the downstream layer can return.
const (
	SubmissionSubmitted       = "SUBMITTED"
	SubmissionAccepted        = "ACCEPTED"
	SubmissionNew             = "NEW"
	SubmissionFilled          = "FILLED"
	SubmissionPartiallyFilled = "PARTIALLY_FILLED"
	SubmissionRejected        = "REJECTED"
	SubmissionDuplicate       = "DUPLICATE"
)

// -----------------------------------------------------------------------------

type MOrderSpec struct {
	Action        string  `json:"action"` // buy / sell
	Symbol        string  `json:"symbol"`
	Qty           float64 `json:"qty"`
	Notional      float64 `json:"notional"` // dollars; used when Qty is 0
	IsCrypto      bool    `json:"is_crypto"`
	ClientOrderID string  `json:"client_order_id"`
}

// -----------------------------------------------------------------------------

type MOrderResult struct {
	SubmissionState string    `json:"submission_state"`
	BrokerOrderID   string    `json:"broker_order_id,omitempty"`
	SubmittedAt     time.Time `json:"submitted_at"`
}

// -----------------------------------------------------------------------------

// AcceptedSubmission reports whether a submission state counts as accepted.
func AcceptedSubmission(state string) bool {
	switch state {
	case SubmissionSubmitted, SubmissionAccepted, SubmissionNew,
		SubmissionFilled, SubmissionPartiallyFilled:
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------

// IdempotencyKey derives the deterministic key for a logical order intent:
// (action, normalized symbol, time bucket).
func IdempotencyKey(action, symbol string, at time.Time) string {
	bucket := at.Unix() / IdempotencyBucketSeconds
	return fmt.Sprintf("%s|%s|%d", action, strings.ToUpper(strings.TrimSpace(symbol)), bucket)
}
