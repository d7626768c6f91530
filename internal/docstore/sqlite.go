package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/marketforge/marketforge/internal/session"
)

// SQLiteStore is the embedded document-store backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) a SQLite-backed document store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Expand ~ in path
	if strings.HasPrefix(dbPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dbPath = filepath.Join(home, dbPath[1:])
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			user_name TEXT NOT NULL,
			answers TEXT NOT NULL,
			current_question INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			core_desire TEXT,
			six_s TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			deleted_at DATETIME
		);

		CREATE TABLE IF NOT EXISTS artifacts (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		);

		CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id);
		CREATE INDEX IF NOT EXISTS idx_artifacts_session ON artifacts(session_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession inserts a session document seeded with the given answers.
func (s *SQLiteStore) CreateSession(ctx context.Context, userID, userName string, answers []string, currentQuestion int) (*session.Session, error) {
	now := time.Now().UTC()
	doc := &session.Session{
		ID:              GenerateID(),
		UserID:          userID,
		UserName:        userName,
		Answers:         append([]string(nil), answers...),
		CurrentQuestion: currentQuestion,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	answersJSON, _ := json.Marshal(doc.Answers)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, user_name, answers, current_question, completed, core_desire, six_s, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, 0, NULL, NULL, ?, ?)
	`, doc.ID, doc.UserID, doc.UserName, string(answersJSON), doc.CurrentQuestion, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return doc, nil
}

// UpdateSession applies a partial update; nil patch fields are left untouched.
func (s *SQLiteStore) UpdateSession(ctx context.Context, id string, patch SessionPatch) (*session.Session, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if patch.UserName != nil {
		sets = append(sets, "user_name = ?")
		args = append(args, *patch.UserName)
	}
	if patch.Answers != nil {
		answersJSON, _ := json.Marshal(patch.Answers)
		sets = append(sets, "answers = ?")
		args = append(args, string(answersJSON))
	}
	if patch.CurrentQuestion != nil {
		sets = append(sets, "current_question = ?")
		args = append(args, *patch.CurrentQuestion)
	}
	if patch.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolToInt(*patch.Completed))
	}
	if patch.CoreDesire != nil {
		sets = append(sets, "core_desire = ?")
		args = append(args, nullable(*patch.CoreDesire))
	}
	if patch.SixS != nil {
		sets = append(sets, "six_s = ?")
		args = append(args, nullable(*patch.SixS))
	}

	args = append(args, id)
	query := fmt.Sprintf("UPDATE sessions SET %s WHERE id = ? AND deleted_at IS NULL", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	return s.GetSession(ctx, id)
}

const sessionColumns = "id, user_id, user_name, answers, current_question, completed, core_desire, six_s, created_at, updated_at"

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions WHERE id = ? AND deleted_at IS NULL
	`, id)
	return scanSession(row)
}

// GetLatestSession retrieves the user's most recently created session.
func (s *SQLiteStore) GetLatestSession(ctx context.Context, userID string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT 1
	`, userID)
	return scanSession(row)
}

// GetIncompleteSession retrieves the user's most recent incomplete session.
func (s *SQLiteStore) GetIncompleteSession(ctx context.Context, userID string) (*session.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND completed = 0 AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT 1
	`, userID)
	return scanSession(row)
}

// ListSessions lists the user's sessions, newest first, excluding soft-deleted.
func (s *SQLiteStore) ListSessions(ctx context.Context, userID string) ([]*session.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*session.Session
	for rows.Next() {
		doc, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, doc)
	}
	return sessions, rows.Err()
}

// SoftDeleteSession tombstones a session by setting its deletion timestamp.
func (s *SQLiteStore) SoftDeleteSession(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL
	`, time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// SaveArtifact stores a generated artifact record.
func (s *SQLiteStore) SaveArtifact(ctx context.Context, artifact *ArtifactRecord) (*ArtifactRecord, error) {
	if artifact.ID == "" {
		artifact.ID = GenerateID()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO artifacts (id, session_id, kind, data, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, artifact.ID, artifact.SessionID, artifact.Kind, string(artifact.Data), artifact.CreatedAt)
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// ListArtifacts lists artifacts for a session, oldest first.
func (s *SQLiteStore) ListArtifacts(ctx context.Context, sessionID string) ([]*ArtifactRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, kind, data, created_at FROM artifacts
		WHERE session_id = ? ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []*ArtifactRecord
	for rows.Next() {
		var a ArtifactRecord
		var data string
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Kind, &data, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Data = json.RawMessage(data)
		artifacts = append(artifacts, &a)
	}
	return artifacts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*session.Session, error) {
	var doc session.Session
	var answersJSON string
	var completed int
	var coreDesire, sixS sql.NullString

	err := row.Scan(&doc.ID, &doc.UserID, &doc.UserName, &answersJSON, &doc.CurrentQuestion,
		&completed, &coreDesire, &sixS, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}

	json.Unmarshal([]byte(answersJSON), &doc.Answers)
	doc.Completed = completed != 0
	if coreDesire.Valid {
		doc.CoreDesire = &coreDesire.String
	}
	if sixS.Valid {
		doc.SixS = &sixS.String
	}

	return &doc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullable maps the empty string to SQL NULL, clearing the column.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
