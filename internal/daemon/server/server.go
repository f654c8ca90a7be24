// Package server provides the HTTP server for the roster daemon.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/grovetools/roster/errors"
	"github.com/grovetools/roster/pkg/models"
	"github.com/grovetools/roster/pkg/registry"
	"github.com/grovetools/roster/pkg/terminal"
)

// RunningConfig holds the active tuning values the daemon resolved at start.
// Exposed via the /api/config endpoint so clients can verify what is active.
type RunningConfig struct {
	NotifyDebounce   time.Duration `json:"notify_debounce"`
	StaleToolTimeout time.Duration `json:"stale_tool_timeout"`
	SweepInterval    time.Duration `json:"sweep_interval"`
	WatchDebounce    time.Duration `json:"watch_debounce"`
	RecentToolsCap   int           `json:"recent_tools_cap"`
	InactiveCap      int           `json:"inactive_cap"`
	WatchRoots       []string      `json:"watch_roots"`
	WorkspaceRoots   []string      `json:"workspace_roots,omitempty"`
	TerminalProvider string        `json:"terminal_provider"`
	EventSocket      string        `json:"event_socket"`
	StartedAt        time.Time     `json:"started_at"`
}

// Server manages the daemon's HTTP server over a Unix socket.
type Server struct {
	logger        *logrus.Entry
	server        *http.Server
	registry      *registry.Registry
	linker        *terminal.Linker
	provider      terminal.Provider
	runningConfig *RunningConfig
	upgrader      websocket.Upgrader
}

// New creates a new Server instance.
func New(logger *logrus.Entry) *Server {
	return &Server{
		logger: logger,
		upgrader: websocket.Upgrader{
			// The socket is chmod 0600; whoever can connect may upgrade.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// SetRegistry sets the session registry for the server.
func (s *Server) SetRegistry(reg *registry.Registry) {
	s.registry = reg
}

// SetTerminals sets the terminal provider and linker used by the pending
// terminal endpoint.
func (s *Server) SetTerminals(provider terminal.Provider, linker *terminal.Linker) {
	s.provider = provider
	s.linker = linker
}

// SetRunningConfig sets the running configuration for the server.
func (s *Server) SetRunningConfig(cfg *RunningConfig) {
	s.runningConfig = cfg
}

// ListenAndServe starts the daemon on the given unix socket path.
// It blocks until the server stops or fails.
func (s *Server) ListenAndServe(socketPath string) error {
	// Cleanup stale socket
	if _, err := os.Stat(socketPath); err == nil {
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	// Set restrictive permissions on socket
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.server = &http.Server{
		Handler: h2c.NewHandler(s.mux(), &http2.Server{}),
	}

	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	return s.server.Serve(listener)
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// State API endpoints
	mux.HandleFunc("/api/state", s.handleGetState)
	mux.HandleFunc("/api/sessions", s.handleGetSessions)
	mux.HandleFunc("/api/sessions/", s.handleSession)
	mux.HandleFunc("/api/inactive", s.handleGetInactive)
	mux.HandleFunc("/api/stream", s.handleStreamState)
	mux.HandleFunc("/api/watch", s.handleWatchState)
	mux.HandleFunc("/api/config", s.handleGetConfig)
	mux.HandleFunc("/api/terminals/pending", s.handlePendingTerminal)

	return mux
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleGetState returns the complete registry snapshot as JSON.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		http.Error(w, "registry not initialized", http.StatusServiceUnavailable)
		return
	}

	snapshot := s.registry.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}

// handleGetSessions returns all active sessions as JSON.
func (s *Server) handleGetSessions(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		http.Error(w, "registry not initialized", http.StatusServiceUnavailable)
		return
	}

	sessions := s.registry.ActiveSessions()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

// handleGetInactive returns recently ended sessions as JSON.
func (s *Server) handleGetInactive(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		http.Error(w, "registry not initialized", http.StatusServiceUnavailable)
		return
	}

	sessions := s.registry.InactiveSessions()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

// handleSession routes per-session operations: GET and DELETE on
// /api/sessions/{id}, POST on /api/sessions/{id}/reveal.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		http.Error(w, "registry not initialized", http.StatusServiceUnavailable)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.Split(rest, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		view, ok := s.registry.Get(id)
		if !ok {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(view)

	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := s.registry.Terminate(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case len(parts) == 2 && parts[1] == "reveal" && r.Method == http.MethodPost:
		if err := s.registry.Reveal(r.Context(), id); err != nil {
			s.writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"revealed": id})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// writeError maps registry error codes to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeSessionNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeTerminalGone, errors.ErrCodeTerminalProvider:
		status = http.StatusConflict
	case errors.ErrCodeInvalidInput:
		status = http.StatusBadRequest
	}
	http.Error(w, err.Error(), status)
}

// handleStreamState provides Server-Sent Events (SSE) for real-time state
// updates. Clients subscribe to receive a push whenever the debounced
// registry notification fires.
func (s *Server) handleStreamState(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		http.Error(w, "registry not initialized", http.StatusServiceUnavailable)
		return
	}

	// Ensure the connection supports flushing
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Subscribe to registry updates
	ch := s.registry.Subscribe()
	defer s.registry.Unsubscribe(ch)

	// Send initial ping to confirm connection
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	s.logger.Debug("SSE client connected")

	// Send current state immediately so client has data right away
	snapshot := s.registry.Snapshot()
	initial := models.Update{
		Type:     models.UpdateSessions,
		Source:   "initial",
		Snapshot: &snapshot,
	}
	if data, err := json.Marshal(initial); err == nil {
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case update, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				s.logger.WithError(err).Error("Failed to marshal update")
				continue
			}
			// SSE format: "data: {json}\n\n"
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// handleWatchState pushes registry updates over a websocket. Same payloads
// as /api/stream for clients that want a bidirectional transport.
func (s *Server) handleWatchState(w http.ResponseWriter, r *http.Request) {
	if s.registry == nil {
		http.Error(w, "registry not initialized", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := s.registry.Subscribe()
	defer s.registry.Unsubscribe(ch)

	s.logger.Debug("Websocket client connected")

	snapshot := s.registry.Snapshot()
	initial := models.Update{
		Type:     models.UpdateSessions,
		Source:   "initial",
		Snapshot: &snapshot,
	}
	if err := conn.WriteJSON(initial); err != nil {
		return
	}

	// Drain reads so client closes are noticed.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			s.logger.Debug("Websocket client disconnected")
			return
		case <-r.Context().Done():
			return
		case update, open := <-ch:
			if !open {
				return
			}
			if err := conn.WriteJSON(update); err != nil {
				return
			}
		}
	}
}

// handleGetConfig returns the running configuration as JSON.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.runningConfig == nil {
		http.Error(w, "config not initialized", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.runningConfig)
}

// handlePendingTerminal registers a terminal that was just created to host a
// session whose start event has not arrived yet.
func (s *Server) handlePendingTerminal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.linker == nil || s.provider == nil {
		http.Error(w, "terminal provider not configured", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		TerminalID string `json:"terminalId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TerminalID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	term, err := s.provider.Find(r.Context(), req.TerminalID)
	if err != nil {
		http.Error(w, "terminal not found", http.StatusNotFound)
		return
	}

	s.linker.RegisterPending(term)
	s.logger.WithField("terminalId", req.TerminalID).Debug("Registered pending terminal")

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"registered": req.TerminalID,
		"pending":    s.linker.PendingCount(),
	})
}
