package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AdamTheFirstGitman/scribe/agent"
	"github.com/AdamTheFirstGitman/scribe/core"
	"github.com/AdamTheFirstGitman/scribe/discussion"
	"github.com/AdamTheFirstGitman/scribe/model"
	"github.com/AdamTheFirstGitman/scribe/router"
	"github.com/AdamTheFirstGitman/scribe/tool"
	"github.com/AdamTheFirstGitman/scribe/workflow"
)

func newTestServer(t *testing.T, plumeModel *model.MockModel) *Server {
	t.Helper()
	registry := tool.NewRegistry()
	require.NoError(t, tool.RegisterBuiltins(registry))

	mimirModel := model.NewMockModel("mimir-model")
	plume := agent.NewPlume(plumeModel, registry, tool.Deps{})
	mimir := agent.NewMimir(mimirModel, registry, tool.Deps{})
	disc := discussion.NewEngine(plume, mimir)
	orch := workflow.New(router.New(), plume, mimir, disc, workflow.Collaborators{},
		func(o *workflow.Options) { o.RetryBackoff = time.Millisecond })

	return New(orch, nil, WithKeepaliveInterval(time.Second), WithStreamBudget(5*time.Second))
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOrchestrate_StreamsNDJSON(t *testing.T) {
	plumeModel := model.NewMockModel("plume-model")
	plumeModel.QueueText("bonjour")
	h := newTestServer(t, plumeModel).Routes()

	rec := postJSON(t, h, "/api/v1/orchestrate", core.OrchestrationRequest{
		InputText: "hello",
		Mode:      core.ModePlume,
		SessionID: "sess_http",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var lines []string
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	require.NotEmpty(t, lines)
	assert.Equal(t, `"[DONE]"`, lines[len(lines)-1], "sentinel terminates the stream")

	var first core.StreamEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, core.EventStart, first.Type)

	var last core.StreamEvent
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-2]), &last))
	assert.Equal(t, core.EventComplete, last.Type)
}

func TestOrchestrate_RejectsEmptyInput(t *testing.T) {
	h := newTestServer(t, model.NewMockModel("plume-model")).Routes()

	rec := postJSON(t, h, "/api/v1/orchestrate", core.OrchestrationRequest{})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "input_text")
}

func TestOrchestrate_RejectsMalformedBody(t *testing.T) {
	h := newTestServer(t, model.NewMockModel("plume-model")).Routes()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orchestrate", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOrchestrate_RejectsUnknownMode(t *testing.T) {
	h := newTestServer(t, model.NewMockModel("plume-model")).Routes()

	rec := postJSON(t, h, "/api/v1/orchestrate", map[string]string{
		"input_text": "hello",
		"mode":       "oracle",
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "mode")
}

func TestOrchestrateSync_ReturnsFinalResult(t *testing.T) {
	plumeModel := model.NewMockModel("plume-model")
	plumeModel.QueueText("done deal")
	h := newTestServer(t, plumeModel).Routes()

	rec := postJSON(t, h, "/api/v1/orchestrate/sync", core.OrchestrationRequest{
		InputText: "write this down",
		Mode:      core.ModePlume,
		SessionID: "sess_sync",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var result core.FinalResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "done deal", result.Response)
	assert.Equal(t, "plume", result.AgentUsed)
}

func TestOrchestrateSync_SurfacesWorkflowError(t *testing.T) {
	plumeModel := model.NewMockModel("plume-model")
	for i := 0; i < 3; i++ {
		plumeModel.FailWith(assert.AnError)
	}
	h := newTestServer(t, plumeModel).Routes()

	rec := postJSON(t, h, "/api/v1/orchestrate/sync", core.OrchestrationRequest{
		InputText: "write this down",
		Mode:      core.ModePlume,
	})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, model.NewMockModel("plume-model")).Routes()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, model.NewMockModel("plume-model")).Routes()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
