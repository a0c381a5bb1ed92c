// Package worker provides the decody HTTP service.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/decody/internal/advice"
	"github.com/thebtf/decody/internal/config"
	"github.com/thebtf/decody/internal/engine"
	"github.com/thebtf/decody/internal/kv"
	"github.com/thebtf/decody/internal/session"
	"github.com/thebtf/decody/pkg/models"
)

// fakeRuleSource serves fixed rules per file name.
type fakeRuleSource struct {
	files map[string][]models.Rule
}

func (f *fakeRuleSource) FetchRuleSets(ctx context.Context, fileNames []string) ([]models.Rule, error) {
	var rules []models.Rule
	for _, name := range fileNames {
		rules = append(rules, f.files[name]...)
	}
	return rules, nil
}

// fakeGenerator produces deterministic advice and can fail on demand.
type fakeGenerator struct {
	mu            sync.Mutex
	fail          bool
	categoryCalls int
	summaryCalls  int
}

func (f *fakeGenerator) ForCategory(ctx context.Context, category string, findings []models.MatchedFinding) (string, error) {
	f.mu.Lock()
	f.categoryCalls++
	f.mu.Unlock()
	if f.fail {
		return "", fmt.Errorf("backend down")
	}
	return "advice for " + category, nil
}

func (f *fakeGenerator) ForSummary(ctx context.Context, advices []models.CategoryAdvice) (string, error) {
	f.mu.Lock()
	f.summaryCalls++
	f.mu.Unlock()
	if f.fail {
		return "", fmt.Errorf("backend down")
	}
	return fmt.Sprintf("summary over %d categories", len(advices)), nil
}

// testService creates a Service over in-memory state and fakes.
func testService(t *testing.T) (*Service, *fakeGenerator) {
	t.Helper()

	sessions := session.NewStore(kv.NewMemory())
	source := &fakeRuleSource{files: map[string][]models.Rule{
		"r.yaml": {
			{ID: 1, Category: "xss", Name: "r1", Explanation: "Possible XSS", Condition: "short == 'XSS_FOUND'"},
			{ID: 2, Category: "sqli", Name: "r2", Explanation: "Possible SQL injection", Condition: "short == 'SQLI_FOUND'"},
		},
	}}
	gen := &fakeGenerator{}

	pipeline := engine.NewPipeline(sessions, source, engine.NewMatcher(4))
	coordinator := advice.NewCoordinator(sessions, gen, time.Second)

	return New("test-version", config.Default(), pipeline, coordinator), gen
}

func postLoad(t *testing.T, svc *Service, requestID, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/load/"+requestID, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)
	return rec
}

func getGenerate(t *testing.T, svc *Service, requestID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/generate/"+requestID, nil)
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)
	return rec
}

const validBody = `{"scanner_name":"scanA","rules":["r.yaml"],"results":[{"short":"XSS_FOUND","long":"reflected payload"}]}`

func TestHandleLoad_Created(t *testing.T) {
	svc, _ := testService(t)

	rec := postLoad(t, svc, "s1", validBody)
	assert.Equal(t, http.StatusCreated, rec.Code)

	var response map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, 1, response["matches"])
}

func TestHandleLoad_Validation(t *testing.T) {
	svc, _ := testService(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "not json at all"},
		{name: "missing scanner_name", body: `{"rules":["r.yaml"],"results":[]}`},
		{name: "empty rules", body: `{"scanner_name":"scanA","rules":[],"results":[]}`},
		{name: "empty rule name", body: `{"scanner_name":"scanA","rules":[""],"results":[]}`},
		{name: "finding without short", body: `{"scanner_name":"scanA","rules":["r.yaml"],"results":[{"long":"x"}]}`},
		{name: "unknown field", body: `{"scanner_name":"scanA","rules":["r.yaml"],"results":[],"extra":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postLoad(t, svc, "s1", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleLoad_DuplicateConflict(t *testing.T) {
	svc, _ := testService(t)

	rec := postLoad(t, svc, "s1", validBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postLoad(t, svc, "s1", validBody)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// The same body reordered at the key level is still a duplicate.
	reordered := `{"results":[{"long":"reflected payload","short":"XSS_FOUND"}],"rules":["r.yaml"],"scanner_name":"scanA"}`
	rec = postLoad(t, svc, "s1", reordered)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// A different session accepts it.
	rec = postLoad(t, svc, "s2", validBody)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandleGenerate_NotFound(t *testing.T) {
	svc, _ := testService(t)

	rec := getGenerate(t, svc, "unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGenerate_BackendFailure(t *testing.T) {
	svc, gen := testService(t)

	rec := postLoad(t, svc, "s1", validBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	gen.fail = true
	rec = getGenerate(t, svc, "s1")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	// The aggregate survived the failure; a retry succeeds.
	gen.fail = false
	rec = getGenerate(t, svc, "s1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// TestEndToEnd covers the full flow: submit a finding that matches a
// rule, generate the report, and verify the session is consumed.
func TestEndToEnd(t *testing.T) {
	svc, gen := testService(t)

	rec := postLoad(t, svc, "s1", validBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Second submission with a different finding for the same session.
	rec = postLoad(t, svc, "s1",
		`{"scanner_name":"scanB","rules":["r.yaml"],"results":[{"short":"SQLI_FOUND","long":"error-based"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = getGenerate(t, svc, "s1")
	require.Equal(t, http.StatusOK, rec.Code)

	var report models.FinalReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))

	require.Len(t, report.CategoryAdvices, 2)
	assert.Equal(t, "sqli", report.CategoryAdvices[0].Category)
	assert.Equal(t, "xss", report.CategoryAdvices[1].Category)
	assert.Equal(t, "advice for xss", report.CategoryAdvices[1].Advice)
	assert.Equal(t, "summary over 2 categories", report.OverallAdvice)

	require.Len(t, report.CategoryAdvices[1].Findings, 1)
	xssFinding := report.CategoryAdvices[1].Findings[0]
	assert.Equal(t, "Possible XSS", xssFinding.RuleExplanation)
	assert.Equal(t, "XSS_FOUND", xssFinding.ShortInput)
	assert.Equal(t, "scanA", xssFinding.ScannerName)

	assert.Equal(t, 2, gen.categoryCalls)
	assert.Equal(t, 1, gen.summaryCalls)

	// Session state was deleted with the report.
	rec = getGenerate(t, svc, "s1")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	svc, _ := testService(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	svc.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, "test-version", response["version"])
}
