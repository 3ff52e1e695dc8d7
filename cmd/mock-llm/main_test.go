package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPlan = `{"start":"retrieve","steps":[{"name":"retrieve","tool":"get_time_entries","next":"analyze"},{"name":"analyze","tool":"create_analysis","next":"emit"},{"name":"emit","tool":"emit_metrics"}]}`

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func doCompletion(t *testing.T, s *server, model string) string {
	t.Helper()
	body := strings.NewReader(`{"model":"` + model + `","messages":[{"role":"user","content":"test"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	s.handleChat(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp completionResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.NotEmpty(t, resp.Choices)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content
}

func TestLoadScriptsBaseOnly(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-planner.json", validPlan)
	writeFixture(t, dir, "mock-categorizer.json", `{"1":"Work","2":"Sleep"}`)

	scripts, err := loadScripts(dir)
	require.NoError(t, err)
	require.Len(t, scripts, 2)

	for model, script := range scripts {
		assert.Len(t, script, 1, "model %s", model)
	}
}

func TestLoadScriptsSequential(t *testing.T) {
	dir := t.TempDir()

	// Malformed reply, then valid plan, then a repeating fallback.
	writeFixture(t, dir, "mock-planner.1.json", `{"oops":"not a workflow"}`)
	writeFixture(t, dir, "mock-planner.2.json", validPlan)
	writeFixture(t, dir, "mock-planner.json", `{"start":"retrieve","steps":[]}`)

	writeFixture(t, dir, "mock-categorizer.json", `{"1":"Work"}`)

	scripts, err := loadScripts(dir)
	require.NoError(t, err)

	script := scripts["mock-planner"]
	require.Len(t, script, 3)
	assert.Contains(t, script[0], "oops")
	assert.Contains(t, script[1], "get_time_entries")
	assert.Contains(t, script[2], `"steps":[]`)

	assert.Len(t, scripts["mock-categorizer"], 1)
}

func TestLoadScriptsNumberedOnly(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "mock-planner.1.json", `{"a":1}`)
	writeFixture(t, dir, "mock-planner.2.json", `{"a":2}`)

	scripts, err := loadScripts(dir)
	require.NoError(t, err)
	assert.Len(t, scripts["mock-planner"], 2)
}

func TestLoadScriptsEmptyDir(t *testing.T) {
	_, err := loadScripts(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fixture files found")
}

func TestLoadScriptsInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "broken.json", `{not json`)

	_, err := loadScripts(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestScriptAdvancesAndSticks(t *testing.T) {
	s := newServer(map[string][]string{
		"mock-planner": {`{"oops":"malformed"}`, validPlan},
	})

	// First call gets the malformed reply, second the valid plan, and
	// further calls repeat the last fixture.
	assert.Contains(t, doCompletion(t, s, "mock-planner"), "malformed")
	assert.Contains(t, doCompletion(t, s, "mock-planner"), "get_time_entries")
	assert.Contains(t, doCompletion(t, s, "mock-planner"), "get_time_entries")
}

func TestUnknownModel(t *testing.T) {
	s := newServer(map[string][]string{"mock-planner": {validPlan}})

	body := strings.NewReader(`{"model":"gpt-5","messages":[]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	s.handleChat(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStripMockPrefix(t *testing.T) {
	s := newServer(map[string][]string{"planner": {validPlan}})

	resp := doCompletion(t, s, "mock-planner")
	assert.Contains(t, resp, "retrieve")
}

func TestStatsEndpoint(t *testing.T) {
	s := newServer(map[string][]string{
		"mock-planner":     {validPlan},
		"mock-categorizer": {`{"1":"Work"}`},
	})

	doCompletion(t, s, "mock-planner")
	doCompletion(t, s, "mock-planner")
	doCompletion(t, s, "mock-categorizer")

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	w := httptest.NewRecorder()
	s.handleStats(w, req)

	var stats struct {
		TotalCalls   int64            `json:"total_calls"`
		CallsByModel map[string]int64 `json:"calls_by_model"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&stats))
	assert.Equal(t, int64(3), stats.TotalCalls)
	assert.Equal(t, int64(2), stats.CallsByModel["mock-planner"])
	assert.Equal(t, int64(1), stats.CallsByModel["mock-categorizer"])
}

func TestRequestsEndpoint(t *testing.T) {
	s := newServer(map[string][]string{"mock-planner": {validPlan}})

	body := strings.NewReader(`{"model":"mock-planner","messages":[{"role":"system","content":"plan the workflow"},{"role":"user","content":"analyze yesterday"}]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", body)
	w := httptest.NewRecorder()
	s.handleChat(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	reqReq := httptest.NewRequest(http.MethodGet, "/requests?model=mock-planner", nil)
	reqW := httptest.NewRecorder()
	s.handleRequests(reqW, reqReq)

	var got struct {
		RequestsByModel map[string][]capture `json:"requests_by_model"`
	}
	require.NoError(t, json.NewDecoder(reqW.Body).Decode(&got))

	caps := got.RequestsByModel["mock-planner"]
	require.Len(t, caps, 1)
	assert.Equal(t, 1, caps[0].CallIndex)
	require.Len(t, caps[0].Messages, 2)
	assert.Equal(t, "analyze yesterday", caps[0].Messages[1].Content)
}

func TestMethodNotAllowed(t *testing.T) {
	s := newServer(map[string][]string{"mock-planner": {validPlan}})

	req := httptest.NewRequest(http.MethodGet, "/v1/chat/completions", nil)
	w := httptest.NewRecorder()
	s.handleChat(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestSplitFixtureName(t *testing.T) {
	tests := []struct {
		filename     string
		wantModel    string
		wantN        int
		wantNumbered bool
	}{
		{"mock-planner.1.json", "mock-planner", 1, true},
		{"mock-planner.10.json", "mock-planner", 10, true},
		{"mock-planner.json", "mock-planner", 0, false},
		{"mock-categorizer.json", "mock-categorizer", 0, false},
		{"has.dots.json", "has.dots", 0, false},
	}

	for _, tt := range tests {
		model, n, isNumbered := splitFixtureName(tt.filename)
		assert.Equal(t, tt.wantModel, model, tt.filename)
		assert.Equal(t, tt.wantN, n, tt.filename)
		assert.Equal(t, tt.wantNumbered, isNumbered, tt.filename)
	}
}
