package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/jkmaina/autogen-blueprint/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoRunner(_ context.Context, ag api.Agent, task string, onChunk func(string)) (string, error) {
	if onChunk != nil {
		onChunk("part one ")
		onChunk("part two")
	}
	return ag.Name() + ": " + task, nil
}

func failingRunner(_ context.Context, _ api.Agent, _ string, _ func(string)) (string, error) {
	return "", errors.New("model unavailable")
}

func newTestServer(t *testing.T, runner Runner) *Server {
	t.Helper()
	s, err := NewServer(Config{ListenAddr: ":0"}, WithRunner(runner))
	require.NoError(t, err)
	return s
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

func createAgent(t *testing.T, s *Server, id string) {
	t.Helper()
	res, err := s.app.Test(jsonRequest(http.MethodPost, "/agents", AgentRequest{
		AgentID:       id,
		SystemMessage: "You answer tersely.",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, res.StatusCode)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, echoRunner)

	res, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	health := decode[HealthResponse](t, res)
	assert.Equal(t, "healthy", health.Status)
	assert.Zero(t, health.AgentsCount)
}

func TestCreateAgent(t *testing.T) {
	s := newTestServer(t, echoRunner)

	res, err := s.app.Test(jsonRequest(http.MethodPost, "/agents", AgentRequest{
		AgentID:       "support",
		SystemMessage: "You handle support tickets.",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, res.StatusCode)

	info := decode[AgentInfo](t, res)
	assert.Equal(t, "support", info.AgentID)
	assert.Equal(t, defaultModelName, info.ModelName)
	assert.InDelta(t, defaultTemperature, info.Temperature, 0.001)
	assert.True(t, info.ParallelToolCalls)
	assert.NotEmpty(t, info.CreatedAt)
}

func TestCreateAgentConflict(t *testing.T) {
	s := newTestServer(t, echoRunner)
	createAgent(t, s, "support")

	res, err := s.app.Test(jsonRequest(http.MethodPost, "/agents", AgentRequest{
		AgentID:       "support",
		SystemMessage: "duplicate",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestCreateAgentValidation(t *testing.T) {
	s := newTestServer(t, echoRunner)

	res, err := s.app.Test(jsonRequest(http.MethodPost, "/agents", AgentRequest{
		SystemMessage: "missing id",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, err = s.app.Test(jsonRequest(http.MethodPost, "/agents", AgentRequest{
		AgentID: "no-system-message",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestListAgents(t *testing.T) {
	s := newTestServer(t, echoRunner)
	createAgent(t, s, "beta")
	createAgent(t, s, "alpha")

	res, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/agents", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	listing := decode[struct {
		Agents []AgentInfo `json:"agents"`
		Total  int         `json:"total"`
	}](t, res)
	require.Equal(t, 2, listing.Total)
	assert.Equal(t, "alpha", listing.Agents[0].AgentID)
	assert.Equal(t, "beta", listing.Agents[1].AgentID)
}

func TestGetAgent(t *testing.T) {
	s := newTestServer(t, echoRunner)
	createAgent(t, s, "support")

	res, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/agents/support", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = s.app.Test(httptest.NewRequest(http.MethodGet, "/agents/ghost", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestDeleteAgent(t *testing.T) {
	s := newTestServer(t, echoRunner)
	createAgent(t, s, "support")

	res, err := s.app.Test(httptest.NewRequest(http.MethodDelete, "/agents/support", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = s.app.Test(httptest.NewRequest(http.MethodDelete, "/agents/support", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestRunTask(t *testing.T) {
	s := newTestServer(t, echoRunner)
	createAgent(t, s, "support")

	res, err := s.app.Test(jsonRequest(http.MethodPost, "/tasks", TaskRequest{
		AgentID: "support",
		Task:    "reset my password",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	task := decode[TaskResponse](t, res)
	assert.Equal(t, "support", task.AgentID)
	assert.Equal(t, "support: reset my password", task.Response)
	assert.Equal(t, "completed", task.Status)
}

func TestRunTaskUnknownAgent(t *testing.T) {
	s := newTestServer(t, echoRunner)

	res, err := s.app.Test(jsonRequest(http.MethodPost, "/tasks", TaskRequest{
		AgentID: "ghost",
		Task:    "anything",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestRunTaskFailure(t *testing.T) {
	s := newTestServer(t, failingRunner)
	createAgent(t, s, "support")

	res, err := s.app.Test(jsonRequest(http.MethodPost, "/tasks", TaskRequest{
		AgentID: "support",
		Task:    "anything",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)

	failure := decode[ErrorResponse](t, res)
	assert.Contains(t, failure.Error, "model unavailable")
}

func TestStreamTask(t *testing.T) {
	s := newTestServer(t, echoRunner)
	createAgent(t, s, "support")

	res, err := s.app.Test(jsonRequest(http.MethodPost, "/tasks/stream", TaskRequest{
		AgentID: "support",
		Task:    "stream it",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	events := strings.Split(strings.TrimSpace(string(body)), "\n\n")
	require.Len(t, events, 3)

	var first, last StreamChunk
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(events[0], "data: ")), &first))
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(events[2], "data: ")), &last))
	assert.Equal(t, "content", first.Type)
	assert.Equal(t, "part one ", first.Content)
	assert.Equal(t, "completion", last.Type)
	assert.Equal(t, "[DONE]", last.Content)
}

func TestStreamTaskUnknownAgent(t *testing.T) {
	s := newTestServer(t, echoRunner)

	res, err := s.app.Test(jsonRequest(http.MethodPost, "/tasks/stream", TaskRequest{
		AgentID: "ghost",
		Task:    "anything",
	}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestRunAdhoc(t *testing.T) {
	s := newTestServer(t, echoRunner)

	res, err := s.app.Test(jsonRequest(http.MethodPost, "/run", RunRequest{
		Task: "summarize this",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	task := decode[TaskResponse](t, res)
	assert.Equal(t, "adhoc", task.AgentID)
	assert.Equal(t, "adhoc: summarize this", task.Response)
}

func TestRunAdhocRequiresTask(t *testing.T) {
	s := newTestServer(t, echoRunner)

	res, err := s.app.Test(jsonRequest(http.MethodPost, "/run", RunRequest{}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}
