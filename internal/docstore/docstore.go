// Package docstore defines the document-store port for sessions and generated
// artifacts, with interchangeable SQLite, Postgres and Supabase-style REST
// backends.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/marketforge/marketforge/internal/session"
)

// ErrNotFound is returned when a requested document does not exist or has
// been soft-deleted.
var ErrNotFound = errors.New("document not found")

// SessionPatch describes a partial session update. Nil fields are left
// untouched server-side. For the nullable selections a non-nil pointer to an
// empty string clears the value.
type SessionPatch struct {
	UserName        *string
	Answers         []string
	CurrentQuestion *int
	Completed       *bool
	CoreDesire      *string
	SixS            *string
}

// IsZero reports whether the patch carries no changes.
func (p SessionPatch) IsZero() bool {
	return p.UserName == nil && p.Answers == nil && p.CurrentQuestion == nil &&
		p.Completed == nil && p.CoreDesire == nil && p.SixS == nil
}

// ArtifactRecord is a stored generated artifact. Data holds the kind-specific
// payload as JSON.
type ArtifactRecord struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Kind      string          `json:"kind"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// Artifact kinds.
const (
	KindAvatar     = "avatar"
	KindStatements = "statements"
)

// Store is the async document-store port the session core depends on.
// Sessions are never hard-deleted; list and lookup operations exclude
// soft-deleted documents.
type Store interface {
	CreateSession(ctx context.Context, userID, userName string, answers []string, currentQuestion int) (*session.Session, error)
	UpdateSession(ctx context.Context, id string, patch SessionPatch) (*session.Session, error)
	GetSession(ctx context.Context, id string) (*session.Session, error)
	GetLatestSession(ctx context.Context, userID string) (*session.Session, error)
	GetIncompleteSession(ctx context.Context, userID string) (*session.Session, error)
	ListSessions(ctx context.Context, userID string) ([]*session.Session, error)
	SoftDeleteSession(ctx context.Context, id string) (bool, error)

	SaveArtifact(ctx context.Context, artifact *ArtifactRecord) (*ArtifactRecord, error)
	ListArtifacts(ctx context.Context, sessionID string) ([]*ArtifactRecord, error)

	Close() error
}

// GenerateID returns a unique document identifier.
func GenerateID() string {
	return uuid.NewString()
}

// EncodeAvatar wraps an avatar in an artifact record.
func EncodeAvatar(a *session.Avatar) (*ArtifactRecord, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return &ArtifactRecord{
		ID:        a.ID,
		SessionID: a.SessionID,
		Kind:      KindAvatar,
		Data:      data,
		CreatedAt: a.CreatedAt,
	}, nil
}

// EncodeStatements wraps a statements artifact in an artifact record.
func EncodeStatements(s *session.Statements) (*ArtifactRecord, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return &ArtifactRecord{
		ID:        s.ID,
		SessionID: s.SessionID,
		Kind:      KindStatements,
		Data:      data,
		CreatedAt: s.CreatedAt,
	}, nil
}

// DecodeAvatar unwraps an avatar artifact record.
func DecodeAvatar(r *ArtifactRecord) (*session.Avatar, error) {
	var a session.Avatar
	if err := json.Unmarshal(r.Data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// DecodeStatements unwraps a statements artifact record.
func DecodeStatements(r *ArtifactRecord) (*session.Statements, error) {
	var s session.Statements
	if err := json.Unmarshal(r.Data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}
