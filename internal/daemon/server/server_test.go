package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grovetools/roster/logging"
	"github.com/grovetools/roster/pkg/models"
	"github.com/grovetools/roster/pkg/registry"
	"github.com/grovetools/roster/pkg/terminal"
	"github.com/grovetools/roster/pkg/transcript"
)

type stubParser struct{}

func (stubParser) Parse(string) (*transcript.SessionState, error) { return nil, nil }

type stubTerminal struct {
	id string
}

func (s stubTerminal) ID() string                            { return s.id }
func (s stubTerminal) PID(context.Context) (int, error)      { return 0, nil }
func (s stubTerminal) Title(context.Context) (string, error) { return "", nil }
func (s stubTerminal) Reveal(context.Context) error          { return nil }

type stubProvider struct {
	terms map[string]terminal.Terminal
}

func (p stubProvider) Name() string { return "stub" }

func (p stubProvider) Terminals(context.Context) ([]terminal.Terminal, error) {
	out := make([]terminal.Terminal, 0, len(p.terms))
	for _, t := range p.terms {
		out = append(out, t)
	}
	return out, nil
}

func (p stubProvider) Find(_ context.Context, id string) (terminal.Terminal, error) {
	t, ok := p.terms[id]
	if !ok {
		return nil, assert.AnError
	}
	return t, nil
}

func newTestServer(t *testing.T) (*Server, *registry.Registry) {
	t.Helper()
	reg := registry.New(registry.Options{Parser: stubParser{}})
	t.Cleanup(reg.Close)

	srv := New(logging.NewLogger("test"))
	srv.SetRegistry(reg)
	return srv, reg
}

func startSession(t *testing.T, reg *registry.Registry, id string) {
	t.Helper()
	reg.HandleEvent(context.Background(), models.HookEvent{
		Kind:      models.EventSessionStart,
		SessionID: id,
		Cwd:       "/work",
	})
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestStateEndpoint(t *testing.T) {
	srv, reg := newTestServer(t)
	startSession(t, reg, "sess-1")

	rec := httptest.NewRecorder()
	srv.mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/state", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var snap models.StateSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.Active, 1)
	assert.Equal(t, "sess-1", snap.Active[0].SessionID)
}

func TestSessionByID(t *testing.T) {
	srv, reg := newTestServer(t)
	startSession(t, reg, "sess-1")

	rec := httptest.NewRecorder()
	srv.mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var view models.SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "sess-1", view.SessionID)

	rec = httptest.NewRecorder()
	srv.mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTerminateSession(t *testing.T) {
	srv, reg := newTestServer(t)
	startSession(t, reg, "sess-1")

	rec := httptest.NewRecorder()
	srv.mux().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/sess-1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	srv.mux().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/sess-1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRevealWithoutLinker(t *testing.T) {
	srv, reg := newTestServer(t)
	startSession(t, reg, "sess-1")

	rec := httptest.NewRecorder()
	srv.mux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/sess-1/reveal", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionSubtreeMethodGuard(t *testing.T) {
	srv, reg := newTestServer(t)
	startSession(t, reg, "sess-1")

	rec := httptest.NewRecorder()
	srv.mux().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/sessions/sess-1", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestConfigEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	srv.SetRunningConfig(&RunningConfig{
		NotifyDebounce:   150 * time.Millisecond,
		TerminalProvider: "tmux",
		StartedAt:        time.Now(),
	})

	rec = httptest.NewRecorder()
	srv.mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "tmux", got["terminal_provider"])
}

func TestPendingTerminal(t *testing.T) {
	srv, _ := newTestServer(t)

	body := strings.NewReader(`{"terminalId":"%1"}`)
	rec := httptest.NewRecorder()
	srv.mux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/terminals/pending", body))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	provider := stubProvider{terms: map[string]terminal.Terminal{"%1": stubTerminal{id: "%1"}}}
	linker := terminal.NewLinker(provider, nil)
	srv.SetTerminals(provider, linker)

	rec = httptest.NewRecorder()
	srv.mux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/terminals/pending", strings.NewReader(`{"terminalId":"%1"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, linker.PendingCount())

	rec = httptest.NewRecorder()
	srv.mux().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/terminals/pending", strings.NewReader(`{"terminalId":"%404"}`)))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	srv.mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/terminals/pending", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStreamSendsInitialState(t *testing.T) {
	srv, reg := newTestServer(t)
	startSession(t, reg, "sess-1")

	ts := httptest.NewServer(srv.mux())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	// Skip the blank separator, then read the initial data frame.
	_, err = reader.ReadString('\n')
	require.NoError(t, err)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(line, "data: "))

	var update models.Update
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &update))
	assert.Equal(t, models.UpdateSessions, update.Type)
	assert.Equal(t, "initial", update.Source)
	require.NotNil(t, update.Snapshot)
	require.Len(t, update.Snapshot.Active, 1)
}

func TestWatchPushesUpdates(t *testing.T) {
	srv, reg := newTestServer(t)

	ts := httptest.NewServer(srv.mux())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var initial models.Update
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, "initial", initial.Source)
	require.NotNil(t, initial.Snapshot)
	assert.Empty(t, initial.Snapshot.Active)

	startSession(t, reg, "sess-1")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var pushed models.Update
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.Equal(t, models.UpdateSessions, pushed.Type)
	require.NotNil(t, pushed.Snapshot)
	require.Len(t, pushed.Snapshot.Active, 1)
	assert.Equal(t, "sess-1", pushed.Snapshot.Active[0].SessionID)
}
