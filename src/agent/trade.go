package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trade-agent/src/analysis"
	"trade-agent/src/interfaces"
	"trade-agent/src/models"
	"trade-agent/src/signals"
	"trade-agent/src/utils"
)

// -----------------------------------------------------------------------------
// Analyst stage: refresh the account picture, reclassify the regime, manage
// exits, then consider new entries. Exits always run before entries so freed
// capital and the updated daily P&L feed the sizing of the same tick.
// -----------------------------------------------------------------------------

func (a *Agent) runAnalyst(ctx context.Context) error {
	now := a.now().UTC()
	cfg := a.state.Config

	account, err := a.broker.GetAccount(ctx)
	if err != nil {
		var be *interfaces.BrokerError
		if errors.As(err, &be) && be.Classification != interfaces.BrokerErrOther {
			a.lastBrokerError = fmt.Sprintf("%s at %s", be.Classification, now.Format(time.RFC3339))
		}
		return fmt.Errorf("account fetch failed: %w", err)
	}
	a.lastBrokerError = ""
	a.state.AppendEquity(account.Equity, now)

	equity := a.equityValues()
	dispersion := signals.SentimentDispersion(a.state.Signals)
	a.state.Regime = analysis.ClassifyRegime(equity, dispersion, a.state.Regime, now)
	a.state.RiskProfile = analysis.BuildRiskProfile(
		equity, a.state.DailyPnL, account.Equity, a.state.Regime, a.state.Stress, cfg.PositionBasePercent)

	a.managePositions(ctx, now)
	a.openPositions(ctx, account, now)
	return nil
}

// -----------------------------------------------------------------------------

// managePositions marks every held position to market and closes the ones
// that hit an exit rule. A failed quote leaves the position at its last mark;
// a failed sell leaves the position held for the next pass.
func (a *Agent) managePositions(ctx context.Context, now time.Time) {
	cfg := a.state.Config

	for symbol, pos := range a.state.Positions {
		quote, err := a.market.GetSnapshot(ctx, symbol)
		if err != nil {
			a.logLocked("WARNING", "quote for %s failed, keeping last mark: %v", symbol, err)
		} else if quote != nil {
			pos.ObservePrice(quote.Price)
		}

		reason := exitReason(pos, cfg)
		if reason == "" {
			continue
		}

		key := models.IdempotencyKey(models.ActionSell, symbol, now)
		result, err := a.gateway.SubmitOrder(ctx, key, models.MOrderSpec{
			Action:   models.ActionSell,
			Symbol:   symbol,
			Qty:      pos.Qty,
			IsCrypto: pos.IsCrypto,
		})
		if err != nil {
			a.logLocked("ERROR", "exit %s (%s) failed: %v", symbol, reason, err)
			continue
		}
		if !models.AcceptedSubmission(result.SubmissionState) && result.SubmissionState != models.SubmissionDuplicate {
			a.logLocked("WARNING", "exit %s (%s) not accepted: %s", symbol, reason, result.SubmissionState)
			continue
		}

		a.settleExit(ctx, symbol, pos, reason, now)
	}
}

// -----------------------------------------------------------------------------

// exitReason returns the name of the first exit rule the position trips, or
// empty when it should be held.
func exitReason(pos *models.MPositionEntry, cfg *models.MAgentConfig) string {
	ret := pos.ReturnPercent()
	switch {
	case cfg.TakeProfitPercent > 0 && ret >= cfg.TakeProfitPercent:
		return "take profit"
	case cfg.StopLossPercent > 0 && ret <= -cfg.StopLossPercent:
		return "stop loss"
	case cfg.TrailingStopPercent > 0 && pos.DrawdownFromPeakPercent() >= cfg.TrailingStopPercent:
		return "trailing stop"
	default:
		return ""
	}
}

// -----------------------------------------------------------------------------

// settleExit books the realized P&L, feeds the predictive model and the risk
// manager, records the episode and drops the position.
func (a *Agent) settleExit(ctx context.Context, symbol string, pos *models.MPositionEntry, reason string, now time.Time) {
	realized := (pos.LastPrice - pos.EntryPrice) * pos.Qty
	returnPct := pos.ReturnPercent()
	won := realized > 0

	a.state.DailyPnL += realized

	feats := analysis.ExtractFeatures(signals.ForSymbol(a.state.Signals, symbol), a.state.Regime.Regime)
	analysis.RecordOutcome(a.state.Predictive, symbol, feats, won, returnPct)

	if realized < 0 {
		lossCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
		if err := a.riskMgr.UpdateLoss(lossCtx, realized); err != nil {
			a.logLocked("WARNING", "loss report for %s failed: %v", symbol, err)
		}
		cancel()
	}

	a.recordEpisodeLocked(models.MMemoryEpisode{
		Timestamp:  now,
		Tags:       []string{"exit", reason, strings.ToUpper(symbol)},
		Note:       fmt.Sprintf("Closed %s via %s: %.2f%% (%.2f USD)", symbol, reason, returnPct, realized),
		Impact:     clamp01(abs(returnPct) / 10),
		Confidence: 1.0,
		Novelty:    0.5,
	})

	delete(a.state.Positions, symbol)
	a.metrics.OrdersSubmitted.Inc()
	a.logLocked("INFO", "closed %s via %s: return=%.2f%% pnl=%.2f daily=%.2f",
		symbol, reason, returnPct, realized, a.state.DailyPnL)
}

// -----------------------------------------------------------------------------

// openPositions walks fresh BUY verdicts and submits entries that clear every
// gate: confidence, capacity, asset-class toggles, market hours and external
// risk approval.
func (a *Agent) openPositions(ctx context.Context, account *interfaces.MAccount, now time.Time) {
	cfg := a.state.Config

	for symbol, research := range a.state.Research {
		if research.Verdict != models.VerdictBuy || !research.Fresh(now) {
			continue
		}
		if research.Confidence < cfg.ConfidenceThreshold {
			continue
		}
		if _, held := a.state.Positions[symbol]; held {
			continue
		}
		if len(a.state.Positions) >= cfg.MaxPositions {
			a.logLocked("INFO", "entry %s skipped: at position cap %d", symbol, cfg.MaxPositions)
			return
		}

		isCrypto := utils.IsCryptoSymbol(symbol)
		if isCrypto && !cfg.CryptoEnabled {
			continue
		}
		if !utils.MarketOpenFor(symbol, now) {
			continue
		}

		notional := a.entryNotional(account.Equity, symbol)
		if notional <= 0 {
			continue
		}

		spec := models.MOrderSpec{
			Action:   models.ActionBuy,
			Symbol:   symbol,
			Notional: notional,
			IsCrypto: isCrypto,
		}

		verdictCtx, cancel := context.WithTimeout(ctx, 4*time.Second)
		verdict, err := a.riskMgr.Validate(verdictCtx, spec)
		cancel()
		if err != nil {
			a.logLocked("WARNING", "risk validation for %s failed, skipping entry: %v", symbol, err)
			continue
		}
		if !verdict.Approved {
			a.logLocked("INFO", "entry %s vetoed by risk manager: %s", symbol, verdict.Reason)
			continue
		}

		key := models.IdempotencyKey(models.ActionBuy, symbol, now)
		result, err := a.gateway.SubmitOrder(ctx, key, spec)
		if err != nil {
			a.logLocked("ERROR", "entry %s failed: %v", symbol, err)
			continue
		}
		if result.SubmissionState == models.SubmissionDuplicate {
			continue
		}
		if !models.AcceptedSubmission(result.SubmissionState) {
			a.logLocked("WARNING", "entry %s not accepted: %s", symbol, result.SubmissionState)
			continue
		}

		a.bookEntry(ctx, symbol, notional, isCrypto, research, now)
	}
}

// -----------------------------------------------------------------------------

// entryNotional sizes a new position: risk-profile percentage of equity,
// scaled by the latest stress multiplier and the predictive adjustment.
func (a *Agent) entryNotional(equity float64, symbol string) float64 {
	pct := a.state.RiskProfile.SuggestedPositionPct
	if pct <= 0 {
		pct = a.state.Config.PositionBasePercent
	}

	notional := equity * pct / 100

	if a.state.Stress != nil && a.state.Stress.RecommendedRiskMultiplier > 0 {
		notional *= a.state.Stress.RecommendedRiskMultiplier
	}

	feats := analysis.ExtractFeatures(signals.ForSymbol(a.state.Signals, symbol), a.state.Regime.Regime)
	notional *= analysis.SizeAdjustment(a.state.Predictive, feats)

	// Brokers reject sub-cent notionals; round down so sizing never exceeds
	// the computed budget.
	rounded, _ := decimal.NewFromFloat(notional).RoundDown(2).Float64()
	return rounded
}

// -----------------------------------------------------------------------------

// bookEntry records an accepted entry as a held position and an episode.
func (a *Agent) bookEntry(ctx context.Context, symbol string, notional float64, isCrypto bool, research *models.MResearchResult, now time.Time) {
	price := 0.0
	if quote, err := a.market.GetSnapshot(ctx, symbol); err == nil && quote != nil {
		price = quote.Price
	}

	qty := 0.0
	if price > 0 {
		qty = notional / price
	}

	symSigs := signals.ForSymbol(a.state.Signals, symbol)
	sentiment := 0.0
	sources := make([]string, 0, len(symSigs))
	seen := map[string]bool{}
	for _, s := range symSigs {
		sentiment += s.WeightedSentiment
		if !seen[s.Source] {
			seen[s.Source] = true
			sources = append(sources, s.Source)
		}
	}
	if len(symSigs) > 0 {
		sentiment /= float64(len(symSigs))
	}

	a.state.Positions[symbol] = &models.MPositionEntry{
		Symbol:         symbol,
		EntryTime:      now,
		EntryPrice:     price,
		EntrySentiment: sentiment,
		Sources:        sources,
		Qty:            qty,
		PeakPrice:      price,
		LastPrice:      price,
		IsCrypto:       isCrypto,
	}

	a.recordEpisodeLocked(models.MMemoryEpisode{
		Timestamp:  now,
		Tags:       []string{"entry", strings.ToUpper(symbol)},
		Note:       fmt.Sprintf("Opened %s: %.2f USD at %.4f (confidence %.2f)", symbol, notional, price, research.Confidence),
		Impact:     0.4,
		Confidence: research.Confidence,
		Novelty:    0.6,
	})

	a.metrics.OrdersSubmitted.Inc()
	a.logLocked("INFO", "opened %s: notional=%.2f price=%.4f qty=%.4f confidence=%.2f",
		symbol, notional, price, qty, research.Confidence)
}

// -----------------------------------------------------------------------------

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
