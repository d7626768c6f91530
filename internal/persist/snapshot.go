// Package persist keeps a local snapshot and a remote document eventually
// consistent with the session state store, without blocking interaction.
package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/marketforge/marketforge/internal/session"
)

// SnapshotVersion tags the current snapshot schema. A stored snapshot whose
// version differs is discarded in full; no partial migration is attempted.
const SnapshotVersion = "3"

// Snapshot is the versioned envelope written to local storage.
type Snapshot struct {
	Version   string        `json:"version"`
	State     session.State `json:"state"`
	Timestamp string        `json:"timestamp"`
}

// FileStore persists snapshots as a single JSON file under a well-known path.
type FileStore struct {
	path string
}

// NewFileStore creates a snapshot store at path, expanding ~ if present.
func NewFileStore(path string) *FileStore {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return &FileStore{path: path}
}

// Save writes the state inside a versioned envelope. Ephemeral fields are
// stripped before serialization.
func (f *FileStore) Save(state session.State) error {
	state.Ephemeral = session.Ephemeral{}

	snap := Snapshot{
		Version:   SnapshotVersion,
		State:     state,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0644)
}

// Load reads the stored snapshot. A missing file, an unreadable envelope or a
// version mismatch all yield (nil, nil): the caller starts from defaults.
func (f *FileStore) Load() (*session.State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		// Corrupt snapshot: discard rather than fail startup.
		return nil, nil
	}
	if snap.Version != SnapshotVersion {
		return nil, nil
	}

	return &snap.State, nil
}

// Clear removes the stored snapshot.
func (f *FileStore) Clear() error {
	err := os.Remove(f.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
