package persist

import (
	"context"
	"errors"
	"sync"

	"github.com/marketforge/marketforge/internal/docstore"
	"github.com/marketforge/marketforge/internal/session"
)

var (
	errMockLocal  = errors.New("mock local store error")
	errMockRemote = errors.New("mock remote store error")
)

// mockLocal implements LocalStore for testing.
type mockLocal struct {
	mu         sync.Mutex
	SaveCount  int
	ClearCount int
	LastState  *session.State
	FailOnSave bool
}

func (m *mockLocal) Save(state session.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SaveCount++
	if m.FailOnSave {
		return errMockLocal
	}
	m.LastState = &state
	return nil
}

func (m *mockLocal) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ClearCount++
	return nil
}

func (m *mockLocal) counts() (saves, clears int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.SaveCount, m.ClearCount
}

func (m *mockLocal) lastState() *session.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.LastState
}

// mockRemote implements docstore.Store for testing the remote sync path.
type mockRemote struct {
	mu           sync.Mutex
	UpdateCount  int
	LastID       string
	LastPatch    docstore.SessionPatch
	FailOnUpdate bool
}

func (m *mockRemote) UpdateSession(ctx context.Context, id string, patch docstore.SessionPatch) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateCount++
	m.LastID = id
	m.LastPatch = patch
	if m.FailOnUpdate {
		return nil, errMockRemote
	}
	return &session.Session{ID: id}, nil
}

func (m *mockRemote) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.UpdateCount
}

func (m *mockRemote) CreateSession(ctx context.Context, userID, userName string, answers []string, currentQuestion int) (*session.Session, error) {
	return nil, errMockRemote
}

func (m *mockRemote) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return nil, docstore.ErrNotFound
}

func (m *mockRemote) GetLatestSession(ctx context.Context, userID string) (*session.Session, error) {
	return nil, docstore.ErrNotFound
}

func (m *mockRemote) GetIncompleteSession(ctx context.Context, userID string) (*session.Session, error) {
	return nil, docstore.ErrNotFound
}

func (m *mockRemote) ListSessions(ctx context.Context, userID string) ([]*session.Session, error) {
	return nil, nil
}

func (m *mockRemote) SoftDeleteSession(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (m *mockRemote) SaveArtifact(ctx context.Context, artifact *docstore.ArtifactRecord) (*docstore.ArtifactRecord, error) {
	return artifact, nil
}

func (m *mockRemote) ListArtifacts(ctx context.Context, sessionID string) ([]*docstore.ArtifactRecord, error) {
	return nil, nil
}

func (m *mockRemote) Close() error { return nil }
