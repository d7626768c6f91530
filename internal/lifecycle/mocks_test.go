package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marketforge/marketforge/internal/docstore"
	"github.com/marketforge/marketforge/internal/session"
)

var (
	errMockCreate = errors.New("mock create error")
	errMockUpdate = errors.New("mock update error")
)

// mockDocs implements docstore.Store for controller tests.
type mockDocs struct {
	mu          sync.Mutex
	CreateCount int
	UpdateCount int
	LastID      string
	LastPatch   docstore.SessionPatch
	Latest      *session.Session

	FailOnCreate bool
	FailUpdates  int // fail the first N update calls

	// createGate, when set, blocks CreateSession until the gate is closed.
	createGate chan struct{}
}

func (m *mockDocs) CreateSession(ctx context.Context, userID, userName string, answers []string, currentQuestion int) (*session.Session, error) {
	if m.createGate != nil {
		<-m.createGate
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCount++
	if m.FailOnCreate {
		return nil, errMockCreate
	}
	return &session.Session{
		ID:              fmt.Sprintf("created-%d", m.CreateCount),
		UserID:          userID,
		UserName:        userName,
		Answers:         answers,
		CurrentQuestion: currentQuestion,
	}, nil
}

func (m *mockDocs) UpdateSession(ctx context.Context, id string, patch docstore.SessionPatch) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateCount++
	m.LastID = id
	m.LastPatch = patch
	if m.FailUpdates > 0 {
		m.FailUpdates--
		return nil, errMockUpdate
	}
	return &session.Session{ID: id}, nil
}

func (m *mockDocs) GetLatestSession(ctx context.Context, userID string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Latest == nil {
		return nil, docstore.ErrNotFound
	}
	return m.Latest, nil
}

func (m *mockDocs) createCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CreateCount
}

func (m *mockDocs) updateCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.UpdateCount
}

func (m *mockDocs) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return nil, docstore.ErrNotFound
}

func (m *mockDocs) GetIncompleteSession(ctx context.Context, userID string) (*session.Session, error) {
	return nil, docstore.ErrNotFound
}

func (m *mockDocs) ListSessions(ctx context.Context, userID string) ([]*session.Session, error) {
	return nil, nil
}

func (m *mockDocs) SoftDeleteSession(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (m *mockDocs) SaveArtifact(ctx context.Context, artifact *docstore.ArtifactRecord) (*docstore.ArtifactRecord, error) {
	return artifact, nil
}

func (m *mockDocs) ListArtifacts(ctx context.Context, sessionID string) ([]*docstore.ArtifactRecord, error) {
	return nil, nil
}

func (m *mockDocs) Close() error { return nil }
