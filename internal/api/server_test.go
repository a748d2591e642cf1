package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insight-agents/internal/common/logger"
	orchestratequery "insight-agents/internal/workers/ai-conversation/orchestrate-query"
	"insight-agents/internal/models"
)

type fakeOrchestrator struct {
	resp      models.OrchestratorResponse
	queries   []models.Query
	requestID string
	panics    bool
}

func (f *fakeOrchestrator) ProcessQuery(ctx context.Context, q models.Query) models.OrchestratorResponse {
	if f.panics {
		panic("boom")
	}
	f.queries = append(f.queries, q)
	f.requestID = orchestratequery.RequestIDFromContext(ctx)
	resp := f.resp
	resp.Metadata.RequestID = f.requestID
	return resp
}

type pingFunc func(ctx context.Context) error

func (p pingFunc) Ping(ctx context.Context) error { return p(ctx) }

func newTestServer(t *testing.T, deps Dependencies) http.Handler {
	return NewWebAPI(logger.NewTestLogger(t), Config{
		AllowedOrigins: []string{"*"},
		Dependencies:   deps,
	}).Handler()
}

func postQuery(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// ==========================
// POST /query
// ==========================

func TestQuery_Success(t *testing.T) {
	orch := &fakeOrchestrator{resp: models.OrchestratorResponse{
		Success:  true,
		Response: "Traffic is up.",
		Data:     map[string]int{"rowCount": 5},
		Metadata: models.Metadata{Intent: models.IntentAnalytics, AgentsUsed: []string{"analytics"}},
	}}
	h := newTestServer(t, Dependencies{Orchestrator: orch})

	rec := postQuery(t, h, `{"query":"  Top 5 pages  ","propertyId":"516821164","extra":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body models.OrchestratorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, models.IntentAnalytics, body.Metadata.Intent)
	assert.Equal(t, []string{"analytics"}, body.Metadata.AgentsUsed)

	require.Len(t, orch.queries, 1)
	assert.Equal(t, models.Query{Query: "Top 5 pages", PropertyID: "516821164"}, orch.queries[0])

	assert.NotEmpty(t, orch.requestID)
	assert.Equal(t, orch.requestID, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, orch.requestID, body.Metadata.RequestID)
}

func TestQuery_FailedAgentIsStill200(t *testing.T) {
	orch := &fakeOrchestrator{resp: models.OrchestratorResponse{
		Success:  false,
		Response: "no propertyId",
		Metadata: models.Metadata{Intent: models.IntentAnalytics, AgentsUsed: []string{}},
		Error:    "Missing propertyId",
	}}
	h := newTestServer(t, Dependencies{Orchestrator: orch})

	rec := postQuery(t, h, `{"query":"page views?"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"agentsUsed":[]`)
}

func TestQuery_UnknownIntentIs500(t *testing.T) {
	orch := &fakeOrchestrator{resp: models.OrchestratorResponse{
		Metadata: models.Metadata{Intent: models.IntentUnknown, AgentsUsed: []string{}},
		Error:    "internal error: boom",
	}}
	h := newTestServer(t, Dependencies{Orchestrator: orch})

	rec := postQuery(t, h, `{"query":"q"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"intent":"unknown"`)
}

func TestQuery_InvalidBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "not json", body: "query=hi"},
		{name: "missing query", body: `{"propertyId":"1"}`},
		{name: "blank query", body: `{"query":"   "}`},
		{name: "query not a string", body: `{"query":42}`},
		{name: "property id not a string", body: `{"query":"q","propertyId":516821164}`},
		{name: "array", body: `[{"query":"q"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch := &fakeOrchestrator{}
			h := newTestServer(t, Dependencies{Orchestrator: orch})

			rec := postQuery(t, h, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, false, body["success"])
			assert.NotEmpty(t, body["error"])
			assert.Empty(t, orch.queries)
		})
	}
}

func TestQuery_CallerRequestIDIsKept(t *testing.T) {
	orch := &fakeOrchestrator{resp: models.OrchestratorResponse{Metadata: models.Metadata{Intent: models.IntentSEO}}}
	h := newTestServer(t, Dependencies{Orchestrator: orch})

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"q"}`))
	req.Header.Set(RequestIDHeader, "trace-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "trace-123", orch.requestID)
	assert.Equal(t, "trace-123", rec.Header().Get(RequestIDHeader))
}

func TestQuery_PanicIsRecovered(t *testing.T) {
	h := newTestServer(t, Dependencies{Orchestrator: &fakeOrchestrator{panics: true}})

	rec := postQuery(t, h, `{"query":"q"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestQuery_MethodNotAllowed(t *testing.T) {
	h := newTestServer(t, Dependencies{Orchestrator: &fakeOrchestrator{}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/query", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

// ==========================
// Health, readiness, metrics
// ==========================

func TestHealth(t *testing.T) {
	h := newTestServer(t, Dependencies{Orchestrator: &fakeOrchestrator{}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestReady(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name      string
		readiness map[string]Pinger
		status    int
		checks    map[string]interface{}
	}{
		{
			name:   "nothing configured",
			status: http.StatusOK,
			checks: map[string]interface{}{},
		},
		{
			name:      "all up",
			readiness: map[string]Pinger{"redis": ok, "postgres": ok},
			status:    http.StatusOK,
			checks:    map[string]interface{}{"redis": "ok", "postgres": "ok"},
		},
		{
			name:      "postgres down",
			readiness: map[string]Pinger{"redis": ok, "postgres": down},
			status:    http.StatusServiceUnavailable,
			checks:    map[string]interface{}{"redis": "ok", "postgres": "connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, Dependencies{Orchestrator: &fakeOrchestrator{}, Readiness: tt.readiness})

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

			assert.Equal(t, tt.status, rec.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.checks, body["checks"])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, Dependencies{Orchestrator: &fakeOrchestrator{}})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, Dependencies{Orchestrator: &fakeOrchestrator{}})

	req := httptest.NewRequest(http.MethodOptions, "/query", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
