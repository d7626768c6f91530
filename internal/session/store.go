package session

import (
	"fmt"
	"sync"
)

// ErrAnswerIndex is returned when an answer index falls outside the fixed
// question set. Callers that validate the index beforehand may ignore it.
var ErrAnswerIndex = fmt.Errorf("answer index out of range (0..%d)", QuestionCount-1)

// Change classifies a store mutation so observers can decide how to react.
type Change int

const (
	ChangeAnswer Change = iota
	ChangeNavigation
	ChangeSelection
	ChangeCompletion
	ChangeArtifact
	ChangeIdentity
	ChangeHydrate
	ChangeReset
)

// Identifying reports whether the change touches session-identifying fields
// that warrant a best-effort remote update.
func (c Change) Identifying() bool {
	switch c {
	case ChangeAnswer, ChangeSelection, ChangeCompletion, ChangeNavigation:
		return true
	}
	return false
}

// Observer receives a notification after every store mutation. The state
// argument is a copy; observers must not assume it stays current.
type Observer interface {
	StateChanged(change Change, state State)
}

// Store is the single source of truth for the current session's answers,
// selections and generated artifacts. All effects (persistence, remote sync)
// are driven by registered observers; the store itself performs none.
type Store struct {
	mu        sync.Mutex
	state     State
	observers []Observer
}

// NewStore creates a store holding the empty default session.
func NewStore() *Store {
	return &Store{state: NewState()}
}

// Subscribe registers an observer. Observers are notified synchronously in
// registration order after each mutation.
func (s *Store) Subscribe(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *Store) notify(change Change, state State) {
	for _, o := range s.observers {
		o.StateChanged(change, state)
	}
}

// mutate applies fn under the lock and notifies observers with a state copy.
func (s *Store) mutate(change Change, fn func(*State)) {
	s.mu.Lock()
	fn(&s.state)
	state := s.state.clone()
	observers := s.observers
	s.mu.Unlock()
	for _, o := range observers {
		o.StateChanged(change, state)
	}
}

// SetAnswer replaces the answer at index. Content is not validated.
func (s *Store) SetAnswer(index int, text string) error {
	if index < 0 || index >= QuestionCount {
		return ErrAnswerIndex
	}
	s.mutate(ChangeAnswer, func(st *State) {
		st.Answers[index] = text
	})
	return nil
}

// SetCurrentQuestion moves the interview cursor. One-past-the-end is allowed
// transiently during the completion transition.
func (s *Store) SetCurrentQuestion(index int) {
	s.mutate(ChangeNavigation, func(st *State) {
		st.CurrentQuestion = index
	})
}

// SetCompleted sets the local completion flag. Durable completion goes
// through the lifecycle controller, which calls this only after the remote
// phase has succeeded.
func (s *Store) SetCompleted(completed bool) {
	s.mutate(ChangeCompletion, func(st *State) {
		st.Completed = completed
	})
}

// SetCoreDesire sets or clears the core-desire selection.
func (s *Store) SetCoreDesire(choice *string) {
	s.mutate(ChangeSelection, func(st *State) {
		st.CoreDesire = choice
	})
}

// SetSixS sets or clears the six-S selection.
func (s *Store) SetSixS(choice *string) {
	s.mutate(ChangeSelection, func(st *State) {
		st.SixS = choice
	})
}

// SetIdentity sets the user identity fields.
func (s *Store) SetIdentity(userID, userName string) {
	s.mutate(ChangeIdentity, func(st *State) {
		st.UserID = userID
		st.UserName = userName
	})
}

// AdoptSessionID stores a session identifier assigned by the document store.
func (s *Store) AdoptSessionID(id string) {
	s.mutate(ChangeIdentity, func(st *State) {
		st.ID = id
	})
}

// SetAvatar replaces the primary avatar.
func (s *Store) SetAvatar(a *Avatar) {
	s.mutate(ChangeArtifact, func(st *State) {
		st.Avatar = a
	})
}

// SetAvatars replaces the avatar list. By convention the first element also
// becomes the primary avatar for single-artifact consumers.
func (s *Store) SetAvatars(list []*Avatar) {
	s.mutate(ChangeArtifact, func(st *State) {
		st.Avatars = list
		if len(list) > 0 {
			st.Avatar = list[0]
		} else {
			st.Avatar = nil
		}
	})
}

// SetStatements replaces the marketing statements artifact.
func (s *Store) SetStatements(st *Statements) {
	s.mutate(ChangeArtifact, func(state *State) {
		state.Statements = st
	})
}

// SetEphemeral replaces the ephemeral UI handles. They are never persisted.
func (s *Store) SetEphemeral(e Ephemeral) {
	s.mu.Lock()
	s.state.Ephemeral = e
	s.mu.Unlock()
	// No observer notification: ephemeral fields carry no persistable change.
}

// Hydrate merges a remote session document into local state. Remote values
// win for session identity, answers, progress and selections; local-only
// ephemeral fields and artifacts are preserved.
func (s *Store) Hydrate(remote *Session) {
	if remote == nil {
		return
	}
	s.mutate(ChangeHydrate, func(st *State) {
		st.ID = remote.ID
		if remote.UserID != "" {
			st.UserID = remote.UserID
		}
		if remote.UserName != "" {
			st.UserName = remote.UserName
		}
		answers := make([]string, QuestionCount)
		copy(answers, remote.Answers)
		st.Answers = answers
		st.CurrentQuestion = remote.CurrentQuestion
		st.Completed = remote.Completed
		st.CoreDesire = remote.CoreDesire
		st.SixS = remote.SixS
		st.CreatedAt = remote.CreatedAt
		st.UpdatedAt = remote.UpdatedAt
	})
}

// Reset restores the empty default session. Observers see a ChangeReset and
// are expected to clear any local snapshot.
func (s *Store) Reset() {
	s.mutate(ChangeReset, func(st *State) {
		ephemeral := st.Ephemeral
		*st = NewState()
		st.Ephemeral = ephemeral
	})
}
