package persist

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/marketforge/marketforge/internal/docstore"
	"github.com/marketforge/marketforge/internal/session"
)

// DefaultDebounce is the quiet period before a local snapshot write. Rapid
// successive edits within it coalesce into a single write.
const DefaultDebounce = 3 * time.Second

// DefaultRemoteTimeout bounds each best-effort remote update.
const DefaultRemoteTimeout = 10 * time.Second

// LocalStore is the local snapshot sink.
type LocalStore interface {
	Save(state session.State) error
	Clear() error
}

// Status describes the synchronizer's cosmetic save indicators.
type Status struct {
	LastSavedAt time.Time
	Saving      bool
}

// Synchronizer observes a session store and keeps a local snapshot plus a
// remote document eventually consistent with it. The two write paths are
// independent: remote failures never block or roll back local persistence,
// so local edits are never lost to a sync failure.
type Synchronizer struct {
	local         LocalStore
	remote        docstore.Store // nil disables the remote path
	debounce      time.Duration
	remoteTimeout time.Duration

	mu          sync.Mutex
	timer       *time.Timer
	pending     *session.State
	lastSavedAt time.Time
	saving      bool
	closed      bool

	remoteWG sync.WaitGroup
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithDebounce overrides the local snapshot debounce interval.
func WithDebounce(d time.Duration) Option {
	return func(s *Synchronizer) { s.debounce = d }
}

// WithRemoteTimeout overrides the remote update deadline.
func WithRemoteTimeout(d time.Duration) Option {
	return func(s *Synchronizer) { s.remoteTimeout = d }
}

// NewSynchronizer creates a synchronizer. Pass a nil remote store to run with
// local snapshots only.
func NewSynchronizer(local LocalStore, remote docstore.Store, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		local:         local,
		remote:        remote,
		debounce:      DefaultDebounce,
		remoteTimeout: DefaultRemoteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StateChanged implements session.Observer.
func (s *Synchronizer) StateChanged(change session.Change, state session.State) {
	if change == session.ChangeReset {
		s.mu.Lock()
		if s.timer != nil {
			s.timer.Stop()
		}
		s.pending = nil
		s.mu.Unlock()
		if err := s.local.Clear(); err != nil {
			log.Printf("Warning: failed to clear snapshot: %v\n", err)
		}
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = &state
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, s.flushLocal)
	s.mu.Unlock()

	if change.Identifying() && state.ID != "" && s.remote != nil {
		s.remoteWG.Add(1)
		go func() {
			defer s.remoteWG.Done()
			s.pushRemote(state)
		}()
	}
}

// flushLocal writes the pending state as a local snapshot. Intermediate
// states inside a quiet period are never observed externally; only the state
// at the end of the period is snapshotted.
func (s *Synchronizer) flushLocal() {
	s.mu.Lock()
	state := s.pending
	s.pending = nil
	if state == nil {
		s.mu.Unlock()
		return
	}
	s.saving = true
	s.mu.Unlock()

	err := s.local.Save(*state)

	s.mu.Lock()
	s.saving = false
	if err != nil {
		log.Printf("Warning: autosave failed: %v\n", err)
	} else {
		s.lastSavedAt = time.Now()
	}
	s.mu.Unlock()
}

// pushRemote issues a best-effort remote update. Failures are logged, never
// retried, and never roll back local state; local state stays authoritative
// until the next successful sync.
func (s *Synchronizer) pushRemote(state session.State) {
	ctx, cancel := context.WithTimeout(context.Background(), s.remoteTimeout)
	defer cancel()

	coreDesire := ""
	if state.CoreDesire != nil {
		coreDesire = *state.CoreDesire
	}
	sixS := ""
	if state.SixS != nil {
		sixS = *state.SixS
	}

	patch := docstore.SessionPatch{
		Answers:         state.Answers,
		CurrentQuestion: &state.CurrentQuestion,
		Completed:       &state.Completed,
		CoreDesire:      &coreDesire,
		SixS:            &sixS,
	}

	if _, err := s.remote.UpdateSession(ctx, state.ID, patch); err != nil {
		log.Printf("Warning: remote sync failed for session %s: %v\n", state.ID, err)
	}
}

// Flush forces any pending local snapshot write and waits for in-flight
// remote updates. Intended for clean shutdown and tests.
func (s *Synchronizer) Flush() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.flushLocal()
	s.remoteWG.Wait()
}

// Status returns the save indicators for UI feedback.
func (s *Synchronizer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{LastSavedAt: s.lastSavedAt, Saving: s.saving}
}

// Close stops the debounce timer and waits for in-flight remote updates. Any
// pending local snapshot is flushed first.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.flushLocal()
	s.remoteWG.Wait()
}
