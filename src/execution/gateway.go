package execution

import (
	"context"
	"fmt"
	"time"

	"trade-agent/src/interfaces"
	"trade-agent/src/logger"
	"trade-agent/src/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Gateway is the idempotent order-submission path. It performs no risk checks
// of its own: the caller must already hold risk-manager approval for buys.
// Dedup is delegated to the state store's idempotency-key records; the
// gateway's contract is simply to always pass the same key for the same
// logical intent.
// -----------------------------------------------------------------------------

type Gateway struct {
	broker interfaces.IBroker
	store  interfaces.IStateStore
	logger *logger.Logger
	now    func() time.Time
}

// -----------------------------------------------------------------------------

func NewGateway(broker interfaces.IBroker, store interfaces.IStateStore, log *logger.Logger) *Gateway {
	return &Gateway{
		broker: broker,
		store:  store,
		logger: log.Named("ExecutionGateway"),
		now:    time.Now,
	}
}

// -----------------------------------------------------------------------------

// SubmitOrder places one order under an idempotency key. A previously
// accepted submission with the same key short-circuits to the prior result
// without touching the broker. Any non-accepted state or error must leave
// position tracking untouched, so callers only act on accepted results.
func (g *Gateway) SubmitOrder(ctx context.Context, idempotencyKey string, spec models.MOrderSpec) (*models.MOrderResult, error) {
	if idempotencyKey == "" {
		return nil, fmt.Errorf("empty idempotency key for %s %s", spec.Action, spec.Symbol)
	}

	prior, err := g.store.LookupOrder(idempotencyKey)
	if err != nil {
		// Bookkeeping failures must not double-submit; refuse instead.
		return nil, fmt.Errorf("idempotency lookup failed for %q: %w", idempotencyKey, err)
	}
	if prior != nil {
		g.logger.Info("duplicate intent %q collapsed to prior order %s", idempotencyKey, prior.BrokerOrderID)
		return &models.MOrderResult{
			SubmissionState: models.SubmissionDuplicate,
			BrokerOrderID:   prior.BrokerOrderID,
			SubmittedAt:     prior.SubmittedAt,
		}, nil
	}

	spec.Notional = roundNotional(spec.Notional)
	if spec.ClientOrderID == "" {
		spec.ClientOrderID = uuid.NewString()
	}

	result, err := g.broker.CreateOrder(ctx, spec)
	if err != nil {
		g.logger.Error("order %s %s rejected by broker: %v", spec.Action, spec.Symbol, err)
		return nil, err
	}
	if result.SubmittedAt.IsZero() {
		result.SubmittedAt = g.now().UTC()
	}

	if !models.AcceptedSubmission(result.SubmissionState) {
		g.logger.Warning("order %s %s not accepted: state=%s", spec.Action, spec.Symbol, result.SubmissionState)
		return result, nil
	}

	fresh, err := g.store.RecordOrder(idempotencyKey, interfaces.MOrderRecord{
		IdempotencyKey:  idempotencyKey,
		Action:          spec.Action,
		Symbol:          spec.Symbol,
		SubmissionState: result.SubmissionState,
		BrokerOrderID:   result.BrokerOrderID,
		SubmittedAt:     result.SubmittedAt,
	})
	if err != nil {
		// The order is live; losing the record only risks a duplicate within
		// the current time bucket. Surface it loudly and keep the result.
		g.logger.Error("failed to record idempotency key %q: %v", idempotencyKey, err)
	} else if !fresh {
		// A concurrent submission won the race to record the key.
		result.SubmissionState = models.SubmissionDuplicate
	}

	g.logger.Info("order %s %s state=%s broker_id=%s", spec.Action, spec.Symbol, result.SubmissionState, result.BrokerOrderID)
	return result, nil
}

// -----------------------------------------------------------------------------

// roundNotional quantizes a dollar notional to cents, away from float drift.
func roundNotional(notional float64) float64 {
	if notional == 0 {
		return 0
	}
	v, _ := decimal.NewFromFloat(notional).Round(2).Float64()
	return v
}
