// Package daemon provides the client side of the roster daemon API: typed
// calls over the daemon's unix socket, plus streaming subscriptions to the
// registry's coalesced updates.
package daemon

import (
	"context"

	"github.com/grovetools/roster/pkg/models"
)

// Client is the interface for talking to a running roster daemon.
// RemoteClient is the production implementation.
type Client interface {
	// IsRunning reports whether the daemon answers its health check.
	IsRunning() bool

	// GetState returns the full registry snapshot.
	GetState(ctx context.Context) (*models.StateSnapshot, error)

	// GetSessions returns the active sessions.
	GetSessions(ctx context.Context) ([]models.SessionView, error)

	// GetInactive returns recently ended and unclaimed sessions.
	GetInactive(ctx context.Context) ([]models.SessionView, error)

	// GetSession returns one active session by id.
	GetSession(ctx context.Context, sessionID string) (*models.SessionView, error)

	// Terminate removes an active session on request.
	Terminate(ctx context.Context, sessionID string) error

	// Reveal focuses the terminal hosting a session.
	Reveal(ctx context.Context, sessionID string) error

	// RegisterPendingTerminal announces a terminal created to host a
	// session whose start event has not arrived yet.
	RegisterPendingTerminal(ctx context.Context, terminalID string) error

	// GetConfig returns the daemon's resolved running configuration.
	GetConfig(ctx context.Context) (map[string]interface{}, error)

	// StreamState subscribes to registry updates over SSE. The channel
	// closes when the context is canceled or the connection drops.
	StreamState(ctx context.Context) (<-chan models.Update, error)

	// WatchState subscribes to the same updates over a websocket.
	WatchState(ctx context.Context) (<-chan models.Update, error)

	// Close releases client resources.
	Close() error
}
