// Package lifecycle guarantees that a remote session document exists before
// dependent operations need one, and guards remote creation against
// duplicate-create races.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/marketforge/marketforge/internal/docstore"
	"github.com/marketforge/marketforge/internal/session"
)

// Phase is the controller's lifecycle state.
type Phase string

const (
	NoSession  Phase = "no_session"
	Creating   Phase = "creating"
	HasSession Phase = "has_session"
)

// ErrCompletionFailed is returned when the remote completion phase and the
// fallback-create path are both exhausted. Local state is left in its
// last-known-good form; Completed stays false.
var ErrCompletionFailed = errors.New("session completion could not be saved")

// DefaultTimeout bounds each remote call so an in-progress flag can never
// stay set indefinitely.
const DefaultTimeout = 10 * time.Second

// Controller owns remote session creation, recovery and the two-phase
// completion commit.
type Controller struct {
	store   *session.Store
	docs    docstore.Store
	timeout time.Duration

	// initializing is the sole mutual-exclusion mechanism guarding remote
	// session creation. It is exchanged atomically through a channel of
	// capacity one acting as a try-lock.
	initializing chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithTimeout overrides the remote-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

// NewController creates a lifecycle controller for the given store and
// document store.
func NewController(store *session.Store, docs docstore.Store, opts ...Option) *Controller {
	c := &Controller{
		store:        store,
		docs:         docs,
		timeout:      DefaultTimeout,
		initializing: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Phase reports the current lifecycle state.
func (c *Controller) Phase() Phase {
	if c.store.State().ID != "" {
		return HasSession
	}
	select {
	case c.initializing <- struct{}{}:
		<-c.initializing
		return NoSession
	default:
		return Creating
	}
}

// Initialize ensures a remote session document exists. It is a no-op when a
// session ID is already set or the identity fields are missing. Concurrent
// callers observe the in-progress guard and return immediately without
// creating a duplicate document.
func (c *Controller) Initialize(ctx context.Context) error {
	state := c.store.State()
	if state.ID != "" {
		return nil
	}
	if state.UserID == "" || state.UserName == "" {
		return nil
	}

	select {
	case c.initializing <- struct{}{}:
		// guard acquired
	default:
		// Another trigger is already creating the session.
		return nil
	}
	defer func() { <-c.initializing }()

	// Re-check under the guard: the earlier trigger may have finished.
	state = c.store.State()
	if state.ID != "" {
		return nil
	}

	return c.createLocked(ctx, state)
}

// createLocked creates the remote document while the guard is held.
func (c *Controller) createLocked(ctx context.Context, state session.State) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	created, err := c.docs.CreateSession(ctx, state.UserID, state.UserName, state.Answers, state.CurrentQuestion)
	if err != nil {
		log.Printf("Warning: session creation failed: %v\n", err)
		return fmt.Errorf("failed to create session: %w", err)
	}

	c.store.AdoptSessionID(created.ID)
	return nil
}

// Recover performs the one-shot recovery used when a dependent operation
// needs a session ID that is absent: adopt the user's most recent session if
// it exists and is not completed, otherwise create a brand-new session
// inline through the same guard.
func (c *Controller) Recover(ctx context.Context) error {
	state := c.store.State()
	if state.ID != "" {
		return nil
	}
	if state.UserID == "" || state.UserName == "" {
		return fmt.Errorf("cannot recover session: user identity missing")
	}

	lookupCtx, cancel := context.WithTimeout(ctx, c.timeout)
	latest, err := c.docs.GetLatestSession(lookupCtx, state.UserID)
	cancel()
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		log.Printf("Warning: session lookup failed during recovery: %v\n", err)
	}
	if latest != nil && !latest.Completed {
		c.store.AdoptSessionID(latest.ID)
		return nil
	}

	// Nothing to adopt: create inline. Idempotent against the guard; if a
	// concurrent create is in flight we wait for the ID it produces.
	select {
	case c.initializing <- struct{}{}:
	default:
		return fmt.Errorf("session creation already in progress")
	}
	defer func() { <-c.initializing }()

	if state = c.store.State(); state.ID != "" {
		return nil
	}
	return c.createLocked(ctx, state)
}

// Complete marks the session completed. Completion is a two-phase commit in
// spirit: the remote update must succeed within the deadline before local
// Completed becomes true. A remote timeout counts as a remote-phase failure
// and triggers the fallback-create path; only if that also fails is the
// error surfaced, with local state untouched.
//
// Known window: when the timed-out update actually lands server-side, the
// fallback create produces a second document for the same logical session.
// This mirrors the product's observed behavior and is deliberately not
// deduplicated here.
func (c *Controller) Complete(ctx context.Context) error {
	state := c.store.State()

	if state.ID == "" {
		if err := c.Recover(ctx); err != nil {
			return fmt.Errorf("%w: %v", ErrCompletionFailed, err)
		}
		state = c.store.State()
	}

	completed := true
	lastIndex := session.QuestionCount
	patch := docstore.SessionPatch{
		Answers:         state.Answers,
		CurrentQuestion: &lastIndex,
		Completed:       &completed,
	}

	updateCtx, cancel := context.WithTimeout(ctx, c.timeout)
	_, err := c.docs.UpdateSession(updateCtx, state.ID, patch)
	cancel()
	if err != nil {
		log.Printf("Warning: completion update failed for session %s: %v\n", state.ID, err)
		if fallbackErr := c.fallbackCreateCompleted(ctx, state); fallbackErr != nil {
			return fmt.Errorf("%w: update failed (%v) and fallback create failed (%v)",
				ErrCompletionFailed, err, fallbackErr)
		}
	}

	c.store.SetCompleted(true)
	c.store.SetCurrentQuestion(lastIndex)
	return nil
}

// fallbackCreateCompleted creates a fresh session carrying the current
// answers and immediately marks it completed, so the completion proceeds
// without data loss after a failed update.
func (c *Controller) fallbackCreateCompleted(ctx context.Context, state session.State) error {
	select {
	case c.initializing <- struct{}{}:
	default:
		return fmt.Errorf("session creation already in progress")
	}
	defer func() { <-c.initializing }()

	createCtx, cancel := context.WithTimeout(ctx, c.timeout)
	created, err := c.docs.CreateSession(createCtx, state.UserID, state.UserName, state.Answers, session.QuestionCount)
	cancel()
	if err != nil {
		return err
	}

	completed := true
	updateCtx, cancel := context.WithTimeout(ctx, c.timeout)
	_, err = c.docs.UpdateSession(updateCtx, created.ID, docstore.SessionPatch{Completed: &completed})
	cancel()
	if err != nil {
		return err
	}

	c.store.AdoptSessionID(created.ID)
	return nil
}
