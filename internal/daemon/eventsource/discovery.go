package eventsource

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// dialProbeTimeout bounds the liveness check for an advertised endpoint.
const dialProbeTimeout = 200 * time.Millisecond

// advertise appends this instance's socket path to the discovery file.
// Entries whose sockets no longer accept connections are pruned while
// the file is open anyway.
func (s *Source) advertise() error {
	return s.updateEndpoints(func(entries []string) []string {
		return append(entries, s.socketPath)
	})
}

// withdraw removes only this instance's entry, leaving other live
// instances advertised.
func (s *Source) withdraw() error {
	return s.updateEndpoints(func(entries []string) []string {
		return entries
	})
}

// updateEndpoints rewrites the discovery file under an exclusive lock.
// Entries for this instance and for dead sockets are always dropped;
// mutate decides what to add back.
func (s *Source) updateEndpoints(mutate func([]string) []string) error {
	if err := os.MkdirAll(filepath.Dir(s.endpointsPath), 0755); err != nil {
		return fmt.Errorf("failed to create endpoints directory: %w", err)
	}

	lock, err := acquireLock(s.endpointsPath + ".lock")
	if err != nil {
		return err
	}
	defer lock.release()

	entries, err := readEndpoints(s.endpointsPath)
	if err != nil {
		return err
	}

	kept := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry == s.socketPath {
			continue
		}
		if !endpointAlive(entry) {
			s.log.WithField("endpoint", entry).Debug("Pruning dead event endpoint")
			continue
		}
		kept = append(kept, entry)
	}

	return writeEndpoints(s.endpointsPath, mutate(kept))
}

// ReadEndpoints returns the advertised event socket paths, preserving
// file order. Missing file means no running instances.
func ReadEndpoints(path string) ([]string, error) {
	return readEndpoints(path)
}

// PruneEndpoints drops entries whose sockets no longer accept connections
// and returns the survivors. Protocol consumers call it when they notice
// dead entries; registry instances prune on their own advertise/withdraw.
func PruneEndpoints(path string) ([]string, error) {
	lock, err := acquireLock(path + ".lock")
	if err != nil {
		return nil, err
	}
	defer lock.release()

	entries, err := readEndpoints(path)
	if err != nil {
		return nil, err
	}

	kept := make([]string, 0, len(entries))
	for _, entry := range entries {
		if endpointAlive(entry) {
			kept = append(kept, entry)
		}
	}
	if len(kept) == len(entries) {
		return kept, nil
	}
	if err := writeEndpoints(path, kept); err != nil {
		return nil, err
	}
	return kept, nil
}

func readEndpoints(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read endpoints file: %w", err)
	}

	var entries []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		entries = append(entries, line)
	}
	return entries, nil
}

func writeEndpoints(path string, entries []string) error {
	var b strings.Builder
	for _, entry := range entries {
		b.WriteString(entry)
		b.WriteByte('\n')
	}

	// Rename keeps unlocked readers from seeing a half-written file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write endpoints file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace endpoints file: %w", err)
	}
	return nil
}

// endpointAlive reports whether the socket at path accepts connections.
func endpointAlive(path string) bool {
	conn, err := net.DialTimeout("unix", path, dialProbeTimeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

type fileLock struct {
	f *os.File
}

func acquireLock(path string) (*fileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open endpoints lock: %w", err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to lock endpoints file: %w", err)
	}
	return &fileLock{f: f}, nil
}

func (l *fileLock) release() {
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	_ = l.f.Close()
}
