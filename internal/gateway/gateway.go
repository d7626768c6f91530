// Package gateway holds the clients for the external generative endpoints:
// avatar images, marketing statements and answer suggestions. Each call is
// request/response; no streaming. These boundaries are the only places
// transient infrastructure errors are expected to originate.
package gateway

import (
	"context"
	"errors"

	"github.com/marketforge/marketforge/internal/session"
)

// ErrRateLimited marks a rate-limit-class failure from a backend. The
// pipeline uses it to decide whether a fallback backend should be tried.
var ErrRateLimited = errors.New("rate limited")

// AvatarRequest carries the finalized interview state into avatar generation.
type AvatarRequest struct {
	Answers    []string
	CoreDesire *string
	SixS       *string
	Gender     string
	SessionID  string
}

// AvatarBackend generates one customer avatar per call. It returns an error
// on failure; there is no silent fallback at this level, the caller decides.
type AvatarBackend interface {
	Name() string
	Generate(ctx context.Context, req AvatarRequest) (*session.Avatar, error)
}

// StatementRequest carries the answers and a generated avatar into marketing
// statement generation.
type StatementRequest struct {
	Answers    []string
	CoreDesire *string
	SixS       *string
	Avatar     *session.Avatar
}

// StatementWriter generates marketing statements for an avatar.
type StatementWriter interface {
	Write(ctx context.Context, req StatementRequest) (*session.Statements, error)
}

// Suggester produces answer suggestions for an interview question. It never
// fails: on any backend error a hardcoded local list is returned so the UI
// is never empty-handed.
type Suggester interface {
	Suggest(ctx context.Context, questionIndex int, priorAnswers []string) []string
}
