package session

import "time"

// QuestionCount is the size of the interview question set. The answers slice
// of every session holds exactly this many slots for its whole lifetime; an
// empty string marks an unanswered slot.
const QuestionCount = 14

// AudienceQuestion is the index of the target-audience question, whose answer
// drives avatar variant fan-out.
const AudienceQuestion = 2

// Session represents one interview attempt.
type Session struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	UserName        string     `json:"user_name"`
	Answers         []string   `json:"answers"`
	CurrentQuestion int        `json:"current_question"`
	Completed       bool       `json:"completed"`
	CoreDesire      *string    `json:"core_desire,omitempty"`
	SixS            *string    `json:"six_s,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// Avatar is a generated customer avatar. Immutable once created; regeneration
// produces a new record rather than mutating this one.
type Avatar struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	Gender      string         `json:"gender"`
	Name        string         `json:"name"`
	ImageURL    string         `json:"image_url"`
	Description string         `json:"description"`
	Profile     map[string]any `json:"profile,omitempty"`
	Model       string         `json:"model,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Statements is a generated set of marketing statements for an avatar.
type Statements struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	AvatarID  string    `json:"avatar_id"`
	Items     []string  `json:"items"`
	Summary   string    `json:"summary"`
	CreatedAt time.Time `json:"created_at"`
}

// Ephemeral holds UI-only fields that must never be persisted: transient
// action handles owned by the running client. The struct is stripped before
// every snapshot and remote write.
type Ephemeral struct {
	OnSaved    func() `json:"-"`
	OnGenerate func() `json:"-"`
}

// State is the full local application state: the session plus generated
// artifacts plus ephemeral fields.
type State struct {
	Session
	Avatar     *Avatar     `json:"avatar,omitempty"`
	Avatars    []*Avatar   `json:"avatars,omitempty"`
	Statements *Statements `json:"statements,omitempty"`
	Ephemeral  Ephemeral   `json:"-"`
}

// NewState returns the empty default state with a fixed-size answers slice.
func NewState() State {
	return State{
		Session: Session{
			Answers: make([]string, QuestionCount),
		},
	}
}

// clone returns a copy of the state safe to hand to observers. Artifact
// pointers are shared since artifacts are immutable once created.
func (s State) clone() State {
	out := s
	out.Answers = make([]string, len(s.Answers))
	copy(out.Answers, s.Answers)
	if s.Avatars != nil {
		out.Avatars = make([]*Avatar, len(s.Avatars))
		copy(out.Avatars, s.Avatars)
	}
	return out
}
