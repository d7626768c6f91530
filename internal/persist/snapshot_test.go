package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marketforge/marketforge/internal/session"
)

func TestFileStore_SaveLoad(t *testing.T) {
	t.Run("Given a saved snapshot When loaded Then state round-trips", func(t *testing.T) {
		store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
		state := session.NewState()
		state.ID = "sess-1"
		state.Answers[0] = "entrepreneurs"

		if err := store.Save(state); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		loaded, err := store.Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded == nil {
			t.Fatal("expected snapshot, got nil")
		}
		if loaded.ID != "sess-1" || loaded.Answers[0] != "entrepreneurs" {
			t.Errorf("state did not round-trip: %+v", loaded)
		}
	})

	t.Run("Given no snapshot file When loaded Then nil state and no error", func(t *testing.T) {
		store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))

		loaded, err := store.Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded != nil {
			t.Errorf("expected nil state, got %+v", loaded)
		}
	})
}

func TestFileStore_VersionInvalidation(t *testing.T) {
	t.Run("Given a snapshot with a stale version When loaded Then discarded in full", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		stale := Snapshot{
			Version:   "2",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
		stale.State = session.NewState()
		stale.State.ID = "sess-old"
		stale.State.Answers[0] = "should never surface"

		data, _ := json.Marshal(stale)
		os.WriteFile(path, data, 0644)

		loaded, err := NewFileStore(path).Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded != nil {
			t.Errorf("expected stale snapshot discarded, got %+v", loaded)
		}
	})

	t.Run("Given a corrupt snapshot file When loaded Then discarded without error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		os.WriteFile(path, []byte("{not json"), 0644)

		loaded, err := NewFileStore(path).Load()
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded != nil {
			t.Errorf("expected corrupt snapshot discarded, got %+v", loaded)
		}
	})
}

func TestFileStore_EphemeralStripping(t *testing.T) {
	t.Run("Given state with ephemeral handles When saved Then snapshot contains none of them", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		store := NewFileStore(path)

		state := session.NewState()
		state.ID = "sess-1"
		state.Ephemeral = session.Ephemeral{
			OnSaved:    func() {},
			OnGenerate: func() {},
		}

		if err := store.Save(state); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read snapshot: %v", err)
		}
		for _, forbidden := range []string{"Ephemeral", "OnSaved", "OnGenerate"} {
			if strings.Contains(string(raw), forbidden) {
				t.Errorf("snapshot leaked ephemeral field %q", forbidden)
			}
		}
	})
}

func TestFileStore_Envelope(t *testing.T) {
	t.Run("Given a saved snapshot When inspected Then it carries version and RFC3339 timestamp", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "session.json")
		if err := NewFileStore(path).Save(session.NewState()); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		raw, _ := os.ReadFile(path)
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			t.Fatalf("snapshot not valid JSON: %v", err)
		}
		if snap.Version != SnapshotVersion {
			t.Errorf("expected version %q, got %q", SnapshotVersion, snap.Version)
		}
		if _, err := time.Parse(time.RFC3339, snap.Timestamp); err != nil {
			t.Errorf("timestamp not RFC3339: %q", snap.Timestamp)
		}
	})
}

func TestFileStore_Clear(t *testing.T) {
	t.Run("Given a saved snapshot When cleared Then load yields defaults", func(t *testing.T) {
		store := NewFileStore(filepath.Join(t.TempDir(), "session.json"))
		store.Save(session.NewState())

		if err := store.Clear(); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear on missing file failed: %v", err)
		}

		loaded, err := store.Load()
		if err != nil || loaded != nil {
			t.Errorf("expected empty store after clear, got %+v, %v", loaded, err)
		}
	})
}
