package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/grovetools/roster/pkg/models"
)

// baseURL is the dummy host for unix-socket HTTP requests; the connection
// itself goes through the socket, not this URL.
const baseURL = "http://unix"

// RemoteClient implements Client against the daemon's HTTP API over its
// unix socket.
type RemoteClient struct {
	httpClient *http.Client
	socketPath string
}

// NewRemoteClient creates a client for the daemon socket at socketPath.
func NewRemoteClient(socketPath string) (*RemoteClient, error) {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", socketPath)
		},
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}

	return &RemoteClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   10 * time.Second,
		},
		socketPath: socketPath,
	}, nil
}

// IsRunning reports whether the daemon answers its health check.
func (c *RemoteClient) IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// GetState returns the full registry snapshot.
func (c *RemoteClient) GetState(ctx context.Context) (*models.StateSnapshot, error) {
	var snap models.StateSnapshot
	if err := c.getJSON(ctx, "/api/state", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// GetSessions returns the active sessions.
func (c *RemoteClient) GetSessions(ctx context.Context) ([]models.SessionView, error) {
	var sessions []models.SessionView
	if err := c.getJSON(ctx, "/api/sessions", &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetInactive returns recently ended and unclaimed sessions.
func (c *RemoteClient) GetInactive(ctx context.Context) ([]models.SessionView, error) {
	var sessions []models.SessionView
	if err := c.getJSON(ctx, "/api/inactive", &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetSession returns one active session by id.
func (c *RemoteClient) GetSession(ctx context.Context, sessionID string) (*models.SessionView, error) {
	var view models.SessionView
	if err := c.getJSON(ctx, "/api/sessions/"+sessionID, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Terminate removes an active session on request.
func (c *RemoteClient) Terminate(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/api/sessions/"+sessionID, nil)
}

// Reveal focuses the terminal hosting a session.
func (c *RemoteClient) Reveal(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, "/api/sessions/"+sessionID+"/reveal", nil)
}

// RegisterPendingTerminal announces a just-created terminal awaiting its
// session's start event.
func (c *RemoteClient) RegisterPendingTerminal(ctx context.Context, terminalID string) error {
	body, err := json.Marshal(map[string]string{"terminalId": terminalID})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/api/terminals/pending", body)
}

// GetConfig returns the daemon's resolved running configuration.
func (c *RemoteClient) GetConfig(ctx context.Context) (map[string]interface{}, error) {
	var cfg map[string]interface{}
	if err := c.getJSON(ctx, "/api/config", &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StreamState subscribes to registry updates over SSE. The channel closes
// when the context is canceled or the connection drops.
func (c *RemoteClient) StreamState(ctx context.Context) (<-chan models.Update, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/api/stream", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}

	// A dedicated transport with no timeout; the stream lives until the
	// context ends.
	transport := &http.Transport{
		DialContext: func(dialCtx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(dialCtx, "unix", c.socketPath)
		},
	}
	client := &http.Client{Transport: transport}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	ch := make(chan models.Update, 10)
	go func() {
		defer resp.Body.Close()
		defer close(ch)
		defer transport.CloseIdleConnections()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var update models.Update
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &update); err != nil {
				continue
			}
			select {
			case ch <- update:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// WatchState subscribes to registry updates over a websocket. Same payloads
// as StreamState on a bidirectional transport.
func (c *RemoteClient) WatchState(ctx context.Context) (<-chan models.Update, error) {
	dialer := websocket.Dialer{
		NetDialContext: func(dialCtx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(dialCtx, "unix", c.socketPath)
		},
		HandshakeTimeout: 5 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, "ws://unix/api/watch", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to watch endpoint: %w", err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	ch := make(chan models.Update, 10)
	go func() {
		defer close(ch)
		defer conn.Close()

		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		for {
			var update models.Update
			if err := conn.ReadJSON(&update); err != nil {
				return
			}
			select {
			case ch <- update:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Close releases client resources.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *RemoteClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode daemon response: %w", err)
	}
	return nil
}

func (c *RemoteClient) do(ctx context.Context, method, path string, body []byte) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach daemon: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	return nil
}

// statusError turns a non-success response into an error carrying the
// daemon's message body when it has one.
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}
	return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, msg)
}
