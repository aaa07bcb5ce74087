package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"trade-agent/src/helpers"
	"trade-agent/src/interfaces"
	"trade-agent/src/logger"
	"trade-agent/src/models"
)

// -----------------------------------------------------------------------------
// WebFeedSource pulls sentiment items from a JSON feed endpoint. One feed
// instance per configured endpoint; the feed name becomes the signal source
// and the per-item board/channel becomes the source detail.
// -----------------------------------------------------------------------------

const webFeedTimeoutSeconds = 8

// freshnessHalfLife drives the age decay factor stamped on each signal.
const freshnessHalfLife = 6 * time.Hour

type WebFeedSource struct {
	name     string
	url      string
	weight   float64
	budgeted bool
	network  interfaces.INetworkManager
	logger   *logger.Logger
	now      func() time.Time
}

var _ interfaces.ISignalSource = (*WebFeedSource)(nil)

// -----------------------------------------------------------------------------

// feedItem is the raw wire shape of one feed entry.
type feedItem struct {
	Symbol    string  `json:"symbol"`
	Board     string  `json:"board"`
	Sentiment float64 `json:"sentiment"`
	Volume    float64 `json:"volume"`
	Timestamp int64   `json:"timestamp"` // unix seconds
}

// -----------------------------------------------------------------------------

func NewWebFeedSource(name, url string, weight float64, budgeted bool, nm interfaces.INetworkManager, log *logger.Logger) *WebFeedSource {
	if weight <= 0 {
		weight = 1
	}
	return &WebFeedSource{
		name:     name,
		url:      url,
		weight:   weight,
		budgeted: budgeted,
		network:  nm,
		logger:   log.Named(name),
		now:      time.Now,
	}
}

// -----------------------------------------------------------------------------

func (s *WebFeedSource) Name() string {
	return s.name
}

func (s *WebFeedSource) Timeout() int {
	return webFeedTimeoutSeconds
}

func (s *WebFeedSource) Budgeted() bool {
	return s.budgeted
}

// -----------------------------------------------------------------------------

// Fetch downloads the feed and maps its items into signals. Items for
// symbols outside the watch list are dropped at the edge.
func (s *WebFeedSource) Fetch(ctx context.Context, symbols []string) ([]models.MSignal, error) {
	body, err := s.network.Get(ctx, s.url, map[string]string{
		"symbols": strings.Join(symbols, ","),
	})
	if err != nil {
		return nil, fmt.Errorf("feed %s fetch failed: %w", s.name, err)
	}

	var items []feedItem
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, &helpers.DataSourceError{AgentError: helpers.AgentError{
			Message: fmt.Sprintf("feed %s returned malformed payload", s.name), Cause: err,
		}}
	}

	watched := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		watched[strings.ToUpper(sym)] = true
	}

	now := s.now().UTC()
	out := make([]models.MSignal, 0, len(items))
	for _, item := range items {
		symbol := strings.ToUpper(strings.TrimSpace(item.Symbol))
		if symbol == "" || (len(watched) > 0 && !watched[symbol]) {
			continue
		}

		ts := time.Unix(item.Timestamp, 0).UTC()
		if item.Timestamp == 0 {
			ts = now
		}

		freshness := ageDecay(now.Sub(ts))
		out = append(out, models.MSignal{
			Symbol:            symbol,
			Source:            s.name,
			SourceDetail:      item.Board,
			Sentiment:         clampSentiment(item.Sentiment),
			WeightedSentiment: clampSentiment(item.Sentiment) * s.weight * freshness,
			Volume:            item.Volume,
			Freshness:         freshness,
			SourceWeight:      s.weight,
			Timestamp:         ts,
		})
	}

	s.logger.Debug("fetched %d items, kept %d signals", len(items), len(out))
	return out, nil
}

// -----------------------------------------------------------------------------

// ageDecay maps an age onto (0, 1] with a 6h half-life.
func ageDecay(age time.Duration) float64 {
	if age <= 0 {
		return 1
	}
	return math.Pow(0.5, float64(age)/float64(freshnessHalfLife))
}

// -----------------------------------------------------------------------------

func clampSentiment(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
