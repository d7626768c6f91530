package pipeline

// StageStatus is the lifecycle of a single pipeline stage.
type StageStatus string

const (
	StagePending   StageStatus = "pending"
	StageActive    StageStatus = "active"
	StageCompleted StageStatus = "completed"
	StageError     StageStatus = "error"
)

// Stage names, in declaration (execution) order. Statements have a hard data
// dependency on the avatar stage's output.
const (
	StageAvatar     = "avatar"
	StageStatements = "statements"
)

// Stage is the externally visible progress record for one pipeline stage.
type Stage struct {
	Name    string      `json:"name"`
	Status  StageStatus `json:"status"`
	Summary string      `json:"summary,omitempty"`
	Err     error       `json:"-"`
}
