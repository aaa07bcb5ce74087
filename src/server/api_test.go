package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-agent/src/agent"
	datasource "trade-agent/src/data_source"
	"trade-agent/src/execution"
	"trade-agent/src/interfaces"
	"trade-agent/src/logger"
	"trade-agent/src/models"
	"trade-agent/src/reliability"
	"trade-agent/src/storage"
)

// -----------------------------------------------------------------------------

type stubRiskManager struct{}

func (stubRiskManager) Validate(ctx context.Context, order models.MOrderSpec) (*interfaces.MRiskVerdict, error) {
	return &interfaces.MRiskVerdict{Approved: true}, nil
}

func (stubRiskManager) Status(ctx context.Context) (*interfaces.MRiskStatus, error) {
	return &interfaces.MRiskStatus{}, nil
}

func (stubRiskManager) UpdateLoss(ctx context.Context, realizedPnL float64) error {
	return nil
}

// -----------------------------------------------------------------------------

func serverConfig() *models.MAgentConfig {
	return &models.MAgentConfig{
		Name:                    "test-agent",
		Environment:             "development",
		Enabled:                 true,
		Host:                    "127.0.0.1",
		Port:                    8090,
		LogLevel:                "CRITICAL",
		APIToken:                "api-token",
		KillSecret:              "kill-secret",
		TickSeconds:             30,
		PollIntervalSeconds:     60,
		ResearchIntervalSeconds: 60,
		AnalystIntervalSeconds:  60,
		MaxPositions:            3,
		PositionBasePercent:     10,
		TakeProfitPercent:       8,
		StopLossPercent:         4,
		TrailingStopPercent:     3,
		ConfidenceThreshold:     0.65,
		DailyReadBudget:         1000,
		Symbols:                 []string{"BTC/USD"},
		Feeds:                   []models.MFeedConfig{{Name: "testfeed", URL: "http://localhost/feed", Weight: 1}},
		Storage:                 models.MStorageConfig{DBType: "sqlite", DBPath: ":memory:", MaxStateBytes: 4 << 20},
		Network:                 models.MNetworkConfig{RequestTimeout: 5, MaxRetries: 1},
	}
}

func newTestServer(t *testing.T) *APIServer {
	t.Helper()

	cfg := serverConfig()
	log := logger.NewLogger("CRITICAL", "test")

	db, err := storage.NewSQLiteDB(&cfg.Storage, log)
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })

	bucket := reliability.NewTokenBucket(10, 100)
	ag, err := agent.New(cfg, agent.Deps{
		Store:   storage.NewResilientStore(db, log),
		Gateway: execution.NewGateway(nil, db, log),
		Sources: datasource.NewMultiSourceManager(nil, bucket, log),
		RiskMgr: stubRiskManager{},
		Bucket:  bucket,
		Logger:  log,
	})
	require.NoError(t, err)

	return NewAPIServer(cfg, ag, log)
}

func doRequest(s *APIServer, method, path, token, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

// -----------------------------------------------------------------------------

func TestAPIRequiresBearerToken(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, doRequest(s, "GET", "/api/status", "", "").Code)
	assert.Equal(t, http.StatusUnauthorized, doRequest(s, "GET", "/api/status", "wrong-token", "").Code)
	assert.Equal(t, http.StatusOK, doRequest(s, "GET", "/api/status", "api-token", "").Code)
}

// -----------------------------------------------------------------------------

func TestStatusEndpointReturnsSnapshot(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, "GET", "/api/status", "api-token", "")
	require.Equal(t, http.StatusOK, w.Code)

	var snap agent.MStatusSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, "test-agent", snap.Name)
	assert.True(t, snap.Enabled)
	assert.False(t, snap.KillSwitch)
}

// -----------------------------------------------------------------------------

func TestConfigUpdateValidatesCandidate(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, "POST", "/api/config", "api-token", `{"max_positions": 0}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doRequest(s, "POST", "/api/config", "api-token", `{"max_positions": 9}`)
	require.Equal(t, http.StatusOK, w.Code)

	var updated models.MAgentConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, 9, updated.MaxPositions)
	// Untouched fields survive a partial patch.
	assert.Equal(t, []string{"BTC/USD"}, updated.Symbols)
}

// -----------------------------------------------------------------------------

func TestEnableDisableRoundTrip(t *testing.T) {
	s := newTestServer(t)

	require.Equal(t, http.StatusOK, doRequest(s, "POST", "/api/disable", "api-token", "").Code)
	w := doRequest(s, "GET", "/api/status", "api-token", "")
	var snap agent.MStatusSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.False(t, snap.Enabled)

	require.Equal(t, http.StatusOK, doRequest(s, "POST", "/api/enable", "api-token", "").Code)
	w = doRequest(s, "GET", "/api/status", "api-token", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.True(t, snap.Enabled)
}

// -----------------------------------------------------------------------------

func TestKillRequiresDistinctSecret(t *testing.T) {
	s := newTestServer(t)

	// The API token must not work as a kill secret.
	req := httptest.NewRequest("POST", "/api/kill", nil)
	req.Header.Set("X-Kill-Secret", "api-token")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest("POST", "/api/kill", nil)
	req.Header.Set("X-Kill-Secret", "kill-secret")
	w = httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	status := doRequest(s, "GET", "/api/status", "api-token", "")
	var snap agent.MStatusSnapshot
	require.NoError(t, json.Unmarshal(status.Body.Bytes(), &snap))
	assert.True(t, snap.KillSwitch)
}

// -----------------------------------------------------------------------------

func TestHealthAndPrometheusAreUnauthenticated(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusOK, doRequest(s, "GET", "/api/health", "", "").Code)

	w := doRequest(s, "GET", "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "agent_ticks_total")
}

// -----------------------------------------------------------------------------

func TestLogsEndpointHonorsLimit(t *testing.T) {
	s := newTestServer(t)

	w := doRequest(s, "GET", "/api/logs?limit=5", "api-token", "")
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Logs []models.MLogEntry `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.LessOrEqual(t, len(payload.Logs), 5)
}
