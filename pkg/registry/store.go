package registry

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/grovetools/roster/errors"
	"github.com/grovetools/roster/logging"
	"github.com/grovetools/roster/pkg/models"
	"github.com/sirupsen/logrus"
)

// StoreVersion is the persisted snapshot schema version. A file carrying any
// other version is discarded and the registry cold-starts.
const StoreVersion = 1

// persistedSession is the durable identity of one active session. Content
// (tasks, usage, status) is never persisted; it is re-derived from the
// transcript on restore.
type persistedSession struct {
	SessionID      string              `json:"sessionId"`
	TranscriptPath string              `json:"transcriptPath"`
	Cwd            string              `json:"cwd,omitempty"`
	PID            int                 `json:"pid,omitempty"`
	PPID           int                 `json:"ppid,omitempty"`
	TTY            string              `json:"tty,omitempty"`
	PidStartTime   string              `json:"pidStartTime,omitempty"`
	RecentTools    []models.RecentTool `json:"recentTools,omitempty"`
}

type storeFile struct {
	Version  int                `json:"version"`
	Sessions []persistedSession `json:"sessions"`
}

// Store reads and writes the registry's crash-recovery snapshot. Writes are
// atomic: a temp file in the same directory is renamed over the target.
type Store struct {
	path string
	log  *logrus.Entry
}

// NewStore creates a store persisting to the given file path.
func NewStore(path string) *Store {
	return &Store{
		path: path,
		log:  logging.NewLogger("store"),
	}
}

// Path returns the file the store persists to.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted snapshot. A missing file is a normal cold start
// and returns an empty slice. A version mismatch or unreadable file returns
// an error; callers treat both as cold starts after logging.
func (s *Store) Load() ([]persistedSession, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeStoreCorrupt, "failed to read registry state").
			WithDetail("path", s.path)
	}

	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreCorrupt, "failed to parse registry state").
			WithDetail("path", s.path)
	}
	if file.Version != StoreVersion {
		return nil, errors.StoreVersionMismatch(file.Version, StoreVersion).
			WithDetail("path", s.path)
	}
	return file.Sessions, nil
}

// Save atomically replaces the persisted snapshot.
func (s *Store) Save(sessions []persistedSession) error {
	if sessions == nil {
		sessions = []persistedSession{}
	}
	data, err := json.MarshalIndent(storeFile{Version: StoreVersion, Sessions: sessions}, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreWrite, "failed to encode registry state")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreWrite, "failed to create state directory").
			WithDetail("dir", dir)
	}

	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreWrite, "failed to create temp state file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrCodeStoreWrite, "failed to write registry state")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrCodeStoreWrite, "failed to close temp state file")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, errors.ErrCodeStoreWrite, "failed to replace registry state").
			WithDetail("path", s.path)
	}
	return nil
}
