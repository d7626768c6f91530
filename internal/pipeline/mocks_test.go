package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marketforge/marketforge/internal/docstore"
	"github.com/marketforge/marketforge/internal/gateway"
	"github.com/marketforge/marketforge/internal/session"
)

var (
	errMockBackend = errors.New("mock backend error")
	errMockWriter  = errors.New("mock writer error")
)

// mockBackend implements gateway.AvatarBackend.
type mockBackend struct {
	mu        sync.Mutex
	name      string
	CallCount int
	Genders   []string
	Err       error // returned on every call when set
	FailCalls int   // fail the first N calls with Err
}

func (m *mockBackend) Name() string { return m.name }

func (m *mockBackend) Generate(ctx context.Context, req gateway.AvatarRequest) (*session.Avatar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	m.Genders = append(m.Genders, req.Gender)
	if m.Err != nil && (m.FailCalls == 0 || m.CallCount <= m.FailCalls) {
		return nil, m.Err
	}
	return &session.Avatar{
		ID:        fmt.Sprintf("%s-av-%d", m.name, m.CallCount),
		SessionID: req.SessionID,
		Gender:    req.Gender,
		Model:     m.name,
	}, nil
}

func (m *mockBackend) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

func (m *mockBackend) genders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.Genders))
	copy(out, m.Genders)
	return out
}

// mockWriter implements gateway.StatementWriter.
type mockWriter struct {
	mu        sync.Mutex
	CallCount int
	Err       error
	FailCalls int
}

func (m *mockWriter) Write(ctx context.Context, req gateway.StatementRequest) (*session.Statements, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CallCount++
	if m.Err != nil && (m.FailCalls == 0 || m.CallCount <= m.FailCalls) {
		return nil, m.Err
	}
	return &session.Statements{
		ID:       fmt.Sprintf("stmt-%d", m.CallCount),
		AvatarID: req.Avatar.ID,
		Items:    []string{"statement one", "statement two"},
	}, nil
}

func (m *mockWriter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// mockArtifacts implements docstore.Store, recording saved artifacts.
type mockArtifacts struct {
	mu         sync.Mutex
	Saved      []*docstore.ArtifactRecord
	FailOnSave bool
}

func (m *mockArtifacts) SaveArtifact(ctx context.Context, artifact *docstore.ArtifactRecord) (*docstore.ArtifactRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailOnSave {
		return nil, errors.New("mock artifact store error")
	}
	m.Saved = append(m.Saved, artifact)
	return artifact, nil
}

func (m *mockArtifacts) savedKinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	kinds := make([]string, len(m.Saved))
	for i, a := range m.Saved {
		kinds[i] = a.Kind
	}
	return kinds
}

func (m *mockArtifacts) CreateSession(ctx context.Context, userID, userName string, answers []string, currentQuestion int) (*session.Session, error) {
	return nil, errors.New("not implemented")
}

func (m *mockArtifacts) UpdateSession(ctx context.Context, id string, patch docstore.SessionPatch) (*session.Session, error) {
	return nil, errors.New("not implemented")
}

func (m *mockArtifacts) GetSession(ctx context.Context, id string) (*session.Session, error) {
	return nil, docstore.ErrNotFound
}

func (m *mockArtifacts) GetLatestSession(ctx context.Context, userID string) (*session.Session, error) {
	return nil, docstore.ErrNotFound
}

func (m *mockArtifacts) GetIncompleteSession(ctx context.Context, userID string) (*session.Session, error) {
	return nil, docstore.ErrNotFound
}

func (m *mockArtifacts) ListSessions(ctx context.Context, userID string) ([]*session.Session, error) {
	return nil, nil
}

func (m *mockArtifacts) SoftDeleteSession(ctx context.Context, id string) (bool, error) {
	return false, nil
}

func (m *mockArtifacts) ListArtifacts(ctx context.Context, sessionID string) ([]*docstore.ArtifactRecord, error) {
	return nil, nil
}

func (m *mockArtifacts) Close() error { return nil }
