// Package eventsource ingests agent hook events over a per-instance unix
// socket. Each line on a connection is one JSON HookEvent; malformed lines
// are logged and skipped without dropping the connection. The socket path
// is published to the endpoint discovery file on start and withdrawn on
// stop so relays can find every running instance.
package eventsource

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/grovetools/roster/logging"
	"github.com/grovetools/roster/pkg/models"
)

// maxEventLine bounds a single event line; tool inputs can be large.
const maxEventLine = 1024 * 1024

// EventSink receives validated events. Satisfied by *registry.Registry.
type EventSink interface {
	HandleEvent(ctx context.Context, ev models.HookEvent)
}

// Source listens on a unix socket and feeds decoded events to the sink.
type Source struct {
	sink          EventSink
	log           *logrus.Entry
	socketPath    string
	endpointsPath string
}

// New creates an event source listening on socketPath and advertised in
// the discovery file at endpointsPath.
func New(sink EventSink, socketPath, endpointsPath string) *Source {
	return &Source{
		sink:          sink,
		log:           logging.NewLogger("events"),
		socketPath:    socketPath,
		endpointsPath: endpointsPath,
	}
}

// Name returns the feeder's name for logging.
func (s *Source) Name() string { return "events" }

// SocketPath returns the socket this instance listens on.
func (s *Source) SocketPath() string { return s.socketPath }

// Run listens until the context is canceled. The socket file and the
// discovery entry are removed on the way out.
func (s *Source) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	// A leftover socket from a crashed instance with the same pid.
	if _, err := os.Stat(s.socketPath); err == nil {
		if err := os.Remove(s.socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on event socket: %w", err)
	}

	if err := os.Chmod(s.socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	if err := s.advertise(); err != nil {
		s.log.WithError(err).Warn("Failed to advertise event endpoint, relays will not find this instance")
	}

	defer func() {
		if err := s.withdraw(); err != nil {
			s.log.WithError(err).Warn("Failed to withdraw event endpoint")
		}
		_ = os.Remove(s.socketPath)
	}()

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	s.log.WithField("socket", s.socketPath).Info("Event source listening")

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("event socket accept failed: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// handleConn reads newline-delimited events until the peer closes or the
// source stops. Only connections from the same uid are served.
func (s *Source) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Closing the conn unblocks the scanner when the source stops.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := verifyPeer(conn); err != nil {
		s.log.WithError(err).Warn("Rejecting event connection")
		return
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxEventLine)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var ev models.HookEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			s.log.WithError(err).Warn("Skipping malformed event line")
			continue
		}
		if err := ev.Validate(); err != nil {
			s.log.WithError(err).Warn("Skipping invalid event")
			continue
		}

		s.sink.HandleEvent(ctx, ev)
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		s.log.WithError(err).Debug("Event connection closed with error")
	}
}
