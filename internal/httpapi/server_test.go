package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SupplyRadar/internal/domain"
	"SupplyRadar/internal/infrastructure/memory"
	"SupplyRadar/internal/ports"
	"SupplyRadar/internal/query"
	"SupplyRadar/internal/rating"
	"SupplyRadar/internal/usecase"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingCoverage struct{}

func (failingCoverage) AtRisk(context.Context, float64) ([]domain.InventoryEntity, error) {
	return nil, errors.New("connection refused")
}

func newPipeline(t *testing.T, coverage ports.CoverageStore, ledger ports.FeedbackLedger) *usecase.Pipeline {
	t.Helper()
	planner, err := query.NewPlanner(query.DefaultRegistry(), nil)
	require.NoError(t, err)
	signals := memory.NewSignalStore([]domain.Evidence{
		{Content: "Typhoon closes ports near Shenzhen; shipments delayed two weeks.", Relevance: 0.9, Source: "weather-wire"},
	})
	log := discard()
	return usecase.NewPipeline(usecase.PipelineDeps{
		Screener:    usecase.NewScreener(coverage, usecase.DefaultThreshold, 0, log),
		Correlator:  usecase.NewCorrelator(signals, planner, usecase.CorrelatorConfig{}, log),
		Synthesizer: usecase.NewSynthesizer(ledger, nil, rating.DefaultPolicy(), 0, log),
		Logger:      log,
	})
}

func newTestServer(t *testing.T, coverage ports.CoverageStore) (*httptest.Server, *memory.Ledger) {
	t.Helper()
	if coverage == nil {
		coverage = memory.NewCoverageStore([]domain.InventoryEntity{
			{ProductID: "P-100", Name: "Microcontroller X", StockLevel: 200, WeeklyUsage: 100, Supplier: "Shenzhen Components", Region: "Shenzhen"},
			{ProductID: "P-200", Name: "Steel Bracket", StockLevel: 2000, WeeklyUsage: 100},
		})
	}
	ledger := memory.NewLedger()
	srv := httptest.NewServer(NewServer(ledger, newPipeline(t, coverage, ledger), discard(), Options{}))
	t.Cleanup(srv.Close)
	return srv, ledger
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
}

func TestAppendAndListFeedback(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)

	resp := post(t, srv.URL+"/feedback", `{"entity":"P-100","rule":"typhoon","status":"ignore_if_missed","note":"already rerouted"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var rule domain.FeedbackRule
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rule))
	assert.Equal(t, "P-100", rule.EntityID)
	assert.Equal(t, domain.StatusIgnoreIfMissed, rule.Status)
	assert.False(t, rule.CreatedAt.IsZero())

	post(t, srv.URL+"/feedback", `{"entity":"P-100","rule":"TYPHOON","status":"confirm"}`)

	listResp, err := http.Get(srv.URL + "/feedback/P-100")
	require.NoError(t, err)
	defer listResp.Body.Close()
	require.Equal(t, http.StatusOK, listResp.StatusCode)

	var list feedbackList
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	assert.Len(t, list.Rules, 2)
	require.Len(t, list.Effective, 1)
	assert.Equal(t, domain.StatusConfirm, list.Effective[0].Status)
}

func TestListFeedbackUnknownEntityIsEmpty(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/feedback/NOPE")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list feedbackList
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	assert.Empty(t, list.Rules)
	assert.NotNil(t, list.Rules)
}

func TestAppendFeedbackRejectsBadInput(t *testing.T) {
	t.Parallel()
	srv, ledger := newTestServer(t, nil)

	cases := map[string]struct {
		body   string
		status int
	}{
		"malformed json": {`{"entity":`, http.StatusBadRequest},
		"unknown field":  {`{"entity":"P-1","rule":"x","status":"confirm","extra":1}`, http.StatusBadRequest},
		"missing entity": {`{"rule":"x","status":"confirm"}`, http.StatusUnprocessableEntity},
		"blank rule":     {`{"entity":"P-1","rule":"  ","status":"confirm"}`, http.StatusUnprocessableEntity},
		"unknown status": {`{"entity":"P-1","rule":"x","status":"erase"}`, http.StatusUnprocessableEntity},
	}
	for name, tc := range cases {
		resp := post(t, srv.URL+"/feedback", tc.body)
		assert.Equal(t, tc.status, resp.StatusCode, name)
		var body jsonError
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body), name)
		assert.NotEmpty(t, body.Error, name)
	}

	rules, err := ledger.ListByEntity(context.Background(), "P-1")
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestRunReturnsDecisionAndHonorsFeedback(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, nil)

	resp := post(t, srv.URL+"/runs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var decision domain.Decision
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decision))
	require.Len(t, decision.Assessments, 1)
	assert.Equal(t, "P-100", decision.Assessments[0].ProductID)
	assert.Equal(t, domain.RatingCritical, decision.Assessments[0].Rating)

	post(t, srv.URL+"/feedback", `{"entity":"P-100","rule":"typhoon","status":"ignore_if_missed"}`)

	resp = post(t, srv.URL+"/runs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decision))
	require.Len(t, decision.Assessments, 1)
	assert.Equal(t, domain.RatingLow, decision.Assessments[0].Rating)
}

func TestRunReportsStageError(t *testing.T) {
	t.Parallel()
	srv, _ := newTestServer(t, failingCoverage{})

	resp := post(t, srv.URL+"/runs", "")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Screening", body["stage"])
	assert.Equal(t, "DataSourceUnavailable", body["kind"])
	assert.Contains(t, body["error"], "connection refused")
}

func TestStatusForKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, http.StatusServiceUnavailable, statusForKind(usecase.KindDataSourceUnavailable))
	assert.Equal(t, http.StatusGatewayTimeout, statusForKind(usecase.KindCancelled))
	assert.Equal(t, http.StatusInternalServerError, statusForKind(usecase.KindInternal))
}
