package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"trade-agent/src/analysis"
	"trade-agent/src/interfaces"
	"trade-agent/src/models"
	"trade-agent/src/signals"
)

// -----------------------------------------------------------------------------
// Research stage: rank cached candidates, reuse fresh verdicts, fan the rest
// out to the reasoning layer under a bounded pool.
// -----------------------------------------------------------------------------

const (
	researchPoolSize    = 3
	researchCallTimeout = 10 * time.Second
)

const researchSystemPrompt = `You are an equity/crypto entry analyst. Respond with strict JSON only:
{"verdict":"BUY|SKIP|WAIT","confidence":0.0,"entry_quality":"A|B|C","reasoning":"...","red_flags":[],"catalysts":[]}`

// -----------------------------------------------------------------------------

func (a *Agent) runResearch(ctx context.Context) error {
	now := a.now().UTC()

	if !a.llmGuard.Allow() {
		if msg := a.llmGuard.LastAuthError(); msg != "" {
			a.state.LastAuthError = msg
		}
		a.logLocked("WARNING", "research skipped: llm guard open")
		return nil
	}

	candidates := a.rankCandidates(now)
	if len(candidates) == 0 {
		a.logLocked("INFO", "research: no candidates")
		return nil
	}

	// Fan out the stale ones under the pool; fresh verdicts are served from
	// the per-symbol cache.
	var pending []string
	for _, symbol := range candidates {
		if r, ok := a.state.Research[symbol]; ok && r.Fresh(now) {
			continue
		}
		pending = append(pending, symbol)
	}
	if len(pending) == 0 {
		a.logLocked("INFO", "research: all %d candidates fresh", len(candidates))
		return nil
	}

	type outcome struct {
		result *models.MResearchResult
		usage  *interfaces.MLLMUsage
		err    error
	}

	sem := make(chan struct{}, researchPoolSize)
	results := make([]outcome, len(pending))
	var wg sync.WaitGroup

	for i, symbol := range pending {
		wg.Add(1)
		go func(idx int, sym string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			callCtx, cancel := context.WithTimeout(ctx, researchCallTimeout)
			defer cancel()

			res, usage, err := a.researchOne(callCtx, sym)
			results[idx] = outcome{result: res, usage: usage, err: err}
		}(i, symbol)
	}
	wg.Wait()

	// All settled: merge under the lock we already hold.
	var failures int
	priorAuthError := a.state.LastAuthError
	for i, symbol := range pending {
		o := results[i]
		if o.err != nil {
			failures++
			a.llmGuard.RecordFailure(o.err)
			if msg := a.llmGuard.LastAuthError(); msg != "" {
				a.state.LastAuthError = msg
			}
			a.logLocked("ERROR", "research %s failed: %v", symbol, o.err)
			continue
		}
		a.llmGuard.RecordSuccess()
		a.state.Research[symbol] = o.result
		if o.usage != nil {
			a.recordCostLocked(a.state.Config.LLMModel, o.usage)
		}
		a.metrics.ResearchCalls.Inc()
	}

	if a.state.LastAuthError != "" && a.state.LastAuthError != priorAuthError {
		a.recordEpisodeLocked(models.MMemoryEpisode{
			Timestamp:  now,
			Tags:       []string{"auth", "llm"},
			Note:       "llm auth failure: " + a.state.LastAuthError,
			Impact:     0.6,
			Confidence: 1.0,
			Novelty:    0.8,
		})
	}

	a.logLocked("INFO", "research: %d verdicts, %d failures (pool=%d)", len(pending)-failures, failures, researchPoolSize)

	if failures == len(pending) {
		return fmt.Errorf("all %d research calls failed", failures)
	}
	return nil
}

// -----------------------------------------------------------------------------

// rankCandidates orders unheld symbols by predictive score x weighted
// sentiment and truncates to the per-tick budget.
func (a *Agent) rankCandidates(now time.Time) []string {
	cfg := a.state.Config

	held := make(map[string]bool, len(a.state.Positions))
	for symbol := range a.state.Positions {
		held[symbol] = true
	}

	limit := cfg.MaxResearchPerTick
	if limit <= 0 {
		limit = 3
	}

	symbols := signals.TopSymbols(a.state.Signals, limit*2, held)

	type scored struct {
		symbol string
		score  float64
	}
	ranked := make([]scored, 0, len(symbols))
	for _, symbol := range symbols {
		symSigs := signals.ForSymbol(a.state.Signals, symbol)
		feats := analysis.ExtractFeatures(symSigs, a.state.Regime.Regime)
		prob := analysis.PredictScore(a.state.Predictive, feats)

		sentiment := 0.0
		for _, s := range symSigs {
			sentiment += s.WeightedSentiment
		}
		if len(symSigs) > 0 {
			sentiment /= float64(len(symSigs))
		}

		ranked = append(ranked, scored{symbol: symbol, score: prob * abs(sentiment)})
	}

	sort.Slice(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.symbol
	}
	return out
}

// -----------------------------------------------------------------------------

// researchOne makes one reasoning call and parses the verdict. An
// unparseable response degrades to WAIT with a red flag instead of failing
// the stage.
func (a *Agent) researchOne(ctx context.Context, symbol string) (*models.MResearchResult, *interfaces.MLLMUsage, error) {
	prompt := a.buildPrompt(symbol)

	resp, err := a.llm.Complete(ctx, interfaces.MLLMRequest{
		Model:       a.state.Config.LLMModel,
		System:      researchSystemPrompt,
		Prompt:      prompt,
		MaxTokens:   600,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, nil, err
	}

	result := parseVerdict(symbol, resp.Content, a.now().UTC())
	return result, resp.Usage, nil
}

// -----------------------------------------------------------------------------

func (a *Agent) buildPrompt(symbol string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Evaluate %s as a new long entry.\n\nRecent signals:\n", symbol)
	for _, s := range signals.ForSymbol(a.state.Signals, symbol) {
		fmt.Fprintf(&b, "- %s/%s sentiment=%.2f weighted=%.2f volume=%.0f age_factor=%.2f\n",
			s.Source, s.SourceDetail, s.Sentiment, s.WeightedSentiment, s.Volume, s.Freshness)
	}

	fmt.Fprintf(&b, "\nMarket regime: %s (volatility=%.4f trend=%.2f)\n",
		a.state.Regime.Regime, a.state.Regime.Volatility, a.state.Regime.Trend)

	if episodes := a.topEpisodesLocked(3); len(episodes) > 0 {
		b.WriteString("\nRelevant recent experience:\n")
		for _, e := range episodes {
			fmt.Fprintf(&b, "- [%s] %s\n", strings.Join(e.Tags, ","), e.Note)
		}
	}

	return b.String()
}

// -----------------------------------------------------------------------------

// parseVerdict does a strict JSON parse with one repair pass (trim to the
// outermost braces). Anything still unparseable becomes a WAIT verdict with
// a red flag, never a trusted field.
func parseVerdict(symbol, content string, now time.Time) *models.MResearchResult {
	var raw struct {
		Verdict      string   `json:"verdict"`
		Confidence   float64  `json:"confidence"`
		EntryQuality string   `json:"entry_quality"`
		Reasoning    string   `json:"reasoning"`
		RedFlags     []string `json:"red_flags"`
		Catalysts    []string `json:"catalysts"`
	}

	text := strings.TrimSpace(content)
	err := json.Unmarshal([]byte(text), &raw)
	if err != nil {
		// Repair pass: models love to wrap JSON in prose or fences.
		if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
			err = json.Unmarshal([]byte(text[start:end+1]), &raw)
		}
	}

	verdict := strings.ToUpper(strings.TrimSpace(raw.Verdict))
	if err != nil || (verdict != models.VerdictBuy && verdict != models.VerdictSkip && verdict != models.VerdictWait) {
		return &models.MResearchResult{
			Symbol:    symbol,
			Verdict:   models.VerdictWait,
			RedFlags:  []string{"unparseable model output"},
			Timestamp: now,
		}
	}

	confidence := raw.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return &models.MResearchResult{
		Symbol:       symbol,
		Verdict:      verdict,
		Confidence:   confidence,
		EntryQuality: raw.EntryQuality,
		Reasoning:    raw.Reasoning,
		RedFlags:     raw.RedFlags,
		Catalysts:    raw.Catalysts,
		Timestamp:    now,
	}
}

// -----------------------------------------------------------------------------

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
