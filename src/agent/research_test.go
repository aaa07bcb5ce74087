package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-agent/src/models"
)

// -----------------------------------------------------------------------------
// Verdict parsing
// -----------------------------------------------------------------------------

func TestParseVerdictStrictJSON(t *testing.T) {
	now := time.Now().UTC()
	res := parseVerdict("BTC/USD", buyVerdictJSON, now)

	assert.Equal(t, models.VerdictBuy, res.Verdict)
	assert.Equal(t, 0.9, res.Confidence)
	assert.Equal(t, "A", res.EntryQuality)
	assert.Equal(t, []string{"momentum"}, res.Catalysts)
	assert.Empty(t, res.RedFlags)
}

func TestParseVerdictRepairsWrappedJSON(t *testing.T) {
	wrapped := "Here is my analysis:\n```json\n" + buyVerdictJSON + "\n```\nGood luck!"
	res := parseVerdict("BTC/USD", wrapped, time.Now().UTC())

	assert.Equal(t, models.VerdictBuy, res.Verdict)
	assert.Equal(t, 0.9, res.Confidence)
}

func TestParseVerdictUnparseableFallsBackToWait(t *testing.T) {
	res := parseVerdict("BTC/USD", "I think you should definitely buy!", time.Now().UTC())

	assert.Equal(t, models.VerdictWait, res.Verdict)
	assert.Zero(t, res.Confidence)
	assert.Equal(t, []string{"unparseable model output"}, res.RedFlags)
}

func TestParseVerdictRejectsUnknownVerdict(t *testing.T) {
	res := parseVerdict("BTC/USD", `{"verdict":"YOLO","confidence":0.99}`, time.Now().UTC())

	assert.Equal(t, models.VerdictWait, res.Verdict)
	assert.Equal(t, []string{"unparseable model output"}, res.RedFlags)
}

func TestParseVerdictNormalizesCaseAndClampsConfidence(t *testing.T) {
	res := parseVerdict("BTC/USD", `{"verdict":" skip ","confidence":1.7}`, time.Now().UTC())

	assert.Equal(t, models.VerdictSkip, res.Verdict)
	assert.Equal(t, 1.0, res.Confidence)
}

// -----------------------------------------------------------------------------
// Stage behavior
// -----------------------------------------------------------------------------

// researchOnlyTick suppresses gather and analyst, leaving cached signals in
// place for candidate ranking.
func researchOnlyTick(fx *fixture) {
	now := time.Now().UTC()
	fx.agent.state.LastRun[models.StageGather] = now
	fx.agent.state.LastRun[models.StageAnalyst] = now
	fx.agent.state.LastRun[models.StageResearch] = time.Time{}
	fx.agent.state.Signals = []models.MSignal{buySignal("BTC/USD", 0.8)}
	fx.agent.Tick(context.Background())
}

func TestResearchCachesVerdictPerSymbol(t *testing.T) {
	fx := newFixture(t, testConfig())

	researchOnlyTick(fx)

	assert.Equal(t, 1, fx.llm.calls)
	require.Contains(t, fx.agent.state.Research, "BTC/USD")
	assert.Equal(t, models.VerdictBuy, fx.agent.state.Research["BTC/USD"].Verdict)
}

func TestResearchReusesFreshVerdict(t *testing.T) {
	fx := newFixture(t, testConfig())

	researchOnlyTick(fx)
	researchOnlyTick(fx)

	// Second pass inside the TTL must not call the model again.
	assert.Equal(t, 1, fx.llm.calls)
}

func TestResearchSkipsHeldSymbols(t *testing.T) {
	fx := newFixture(t, testConfig())
	fx.agent.state.Positions["BTC/USD"] = heldPosition("BTC/USD", 50_000, 0.2)

	researchOnlyTick(fx)

	assert.Zero(t, fx.llm.calls)
}

// -----------------------------------------------------------------------------

func TestResearchAuthFailureArmsGuard(t *testing.T) {
	fx := newFixture(t, testConfig())
	fx.llm.err = errors.New("llm backend returned 401: invalid api key")

	researchOnlyTick(fx)

	assert.Equal(t, 1, fx.llm.calls)
	assert.False(t, fx.agent.llmGuard.Allow())
	assert.Contains(t, fx.agent.state.LastAuthError, "invalid api key")

	// Guard open: the next pass never reaches the model.
	researchOnlyTick(fx)
	assert.Equal(t, 1, fx.llm.calls)
}

func TestResearchTransientFailureDoesNotBlockForever(t *testing.T) {
	fx := newFixture(t, testConfig())
	fx.llm.err = errors.New("timeout waiting for completion")

	researchOnlyTick(fx)

	assert.Equal(t, 1, fx.llm.calls)
	assert.Empty(t, fx.agent.state.LastAuthError)
	// Generic breaker opened for the short backoff window, not the auth
	// cool-off.
	assert.False(t, fx.agent.llmGuard.Allow())
}

// -----------------------------------------------------------------------------

func TestResearchUnparseableOutputBecomesWait(t *testing.T) {
	fx := newFixture(t, testConfig())
	fx.llm.content = "sure, sounds like a great buy"

	researchOnlyTick(fx)

	require.Contains(t, fx.agent.state.Research, "BTC/USD")
	res := fx.agent.state.Research["BTC/USD"]
	assert.Equal(t, models.VerdictWait, res.Verdict)
	assert.Contains(t, res.RedFlags, "unparseable model output")
}

// -----------------------------------------------------------------------------

func TestResearchRecordsCost(t *testing.T) {
	fx := newFixture(t, testConfig())

	researchOnlyTick(fx)

	tracker := fx.agent.state.Cost
	assert.Equal(t, int64(150), tracker.TokensByModel["gpt-4o-mini"])
	assert.Equal(t, int64(1), tracker.RequestsByModel["gpt-4o-mini"])
	assert.NotEqual(t, "0", tracker.TotalCostUSD)
}

// -----------------------------------------------------------------------------

func TestRankCandidatesHonorsPerTickBudget(t *testing.T) {
	cfg := testConfig()
	cfg.MaxResearchPerTick = 1
	fx := newFixture(t, cfg)
	fx.agent.state.Signals = []models.MSignal{
		buySignal("BTC/USD", 0.9),
		buySignal("ETH-USD", 0.4),
	}

	candidates := fx.agent.rankCandidates(time.Now().UTC())

	require.Len(t, candidates, 1)
	assert.Equal(t, "BTC/USD", candidates[0])
}
