package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/marketforge/marketforge/internal/session"
)

// sessionRow is the gorm model backing session documents.
type sessionRow struct {
	ID              string     `gorm:"column:id;primaryKey;type:varchar(50)"`
	UserID          string     `gorm:"column:user_id;type:varchar(100);not null;index"`
	UserName        string     `gorm:"column:user_name;type:varchar(255);not null"`
	Answers         string     `gorm:"column:answers;type:text;not null"`
	CurrentQuestion int        `gorm:"column:current_question;not null;default:0"`
	Completed       bool       `gorm:"column:completed;not null;default:false"`
	CoreDesire      *string    `gorm:"column:core_desire;type:varchar(100)"`
	SixS            *string    `gorm:"column:six_s;type:varchar(100)"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt       *time.Time `gorm:"column:deleted_at;index"`
}

func (sessionRow) TableName() string { return "sessions" }

// artifactRow is the gorm model backing artifact documents.
type artifactRow struct {
	ID        string    `gorm:"column:id;primaryKey;type:varchar(50)"`
	SessionID string    `gorm:"column:session_id;type:varchar(50);not null;index"`
	Kind      string    `gorm:"column:kind;type:varchar(50);not null"`
	Data      string    `gorm:"column:data;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (artifactRow) TableName() string { return "artifacts" }

// PostgresStore is the Postgres document-store backend.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore connects to Postgres and migrates the schema.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn))
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&sessionRow{}, &artifactRow{}); err != nil {
		return nil, err
	}

	return &PostgresStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateSession inserts a session document seeded with the given answers.
func (s *PostgresStore) CreateSession(ctx context.Context, userID, userName string, answers []string, currentQuestion int) (*session.Session, error) {
	answersJSON, _ := json.Marshal(answers)
	row := sessionRow{
		ID:              GenerateID(),
		UserID:          userID,
		UserName:        userName,
		Answers:         string(answersJSON),
		CurrentQuestion: currentQuestion,
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}

	return rowToSession(&row), nil
}

// UpdateSession applies a partial update; nil patch fields are left untouched.
func (s *PostgresStore) UpdateSession(ctx context.Context, id string, patch SessionPatch) (*session.Session, error) {
	updates := map[string]any{}
	if patch.UserName != nil {
		updates["user_name"] = *patch.UserName
	}
	if patch.Answers != nil {
		answersJSON, _ := json.Marshal(patch.Answers)
		updates["answers"] = string(answersJSON)
	}
	if patch.CurrentQuestion != nil {
		updates["current_question"] = *patch.CurrentQuestion
	}
	if patch.Completed != nil {
		updates["completed"] = *patch.Completed
	}
	if patch.CoreDesire != nil {
		updates["core_desire"] = nullable(*patch.CoreDesire)
	}
	if patch.SixS != nil {
		updates["six_s"] = nullable(*patch.SixS)
	}

	res := s.db.WithContext(ctx).Model(&sessionRow{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	return s.GetSession(ctx, id)
}

// GetSession retrieves a session by ID.
func (s *PostgresStore) GetSession(ctx context.Context, id string) (*session.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rowToSession(&row), nil
}

// GetLatestSession retrieves the user's most recently created session.
func (s *PostgresStore) GetLatestSession(ctx context.Context, userID string) (*session.Session, error) {
	return s.findSession(ctx, "user_id = ? AND deleted_at IS NULL", userID)
}

// GetIncompleteSession retrieves the user's most recent incomplete session.
func (s *PostgresStore) GetIncompleteSession(ctx context.Context, userID string) (*session.Session, error) {
	return s.findSession(ctx, "user_id = ? AND completed = false AND deleted_at IS NULL", userID)
}

func (s *PostgresStore) findSession(ctx context.Context, query string, args ...any) (*session.Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).
		Where(query, args...).
		Order("created_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rowToSession(&row), nil
}

// ListSessions lists the user's sessions, newest first, excluding soft-deleted.
func (s *PostgresStore) ListSessions(ctx context.Context, userID string) ([]*session.Session, error) {
	var rows []sessionRow
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND deleted_at IS NULL", userID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	sessions := make([]*session.Session, len(rows))
	for i := range rows {
		sessions[i] = rowToSession(&rows[i])
	}
	return sessions, nil
}

// SoftDeleteSession tombstones a session by setting its deletion timestamp.
func (s *PostgresStore) SoftDeleteSession(ctx context.Context, id string) (bool, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&sessionRow{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// SaveArtifact stores a generated artifact record.
func (s *PostgresStore) SaveArtifact(ctx context.Context, artifact *ArtifactRecord) (*ArtifactRecord, error) {
	if artifact.ID == "" {
		artifact.ID = GenerateID()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	row := artifactRow{
		ID:        artifact.ID,
		SessionID: artifact.SessionID,
		Kind:      artifact.Kind,
		Data:      string(artifact.Data),
		CreatedAt: artifact.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return nil, err
	}
	return artifact, nil
}

// ListArtifacts lists artifacts for a session, oldest first.
func (s *PostgresStore) ListArtifacts(ctx context.Context, sessionID string) ([]*ArtifactRecord, error) {
	var rows []artifactRow
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	artifacts := make([]*ArtifactRecord, len(rows))
	for i, row := range rows {
		artifacts[i] = &ArtifactRecord{
			ID:        row.ID,
			SessionID: row.SessionID,
			Kind:      row.Kind,
			Data:      json.RawMessage(row.Data),
			CreatedAt: row.CreatedAt,
		}
	}
	return artifacts, nil
}

func rowToSession(row *sessionRow) *session.Session {
	var answers []string
	json.Unmarshal([]byte(row.Answers), &answers)
	return &session.Session{
		ID:              row.ID,
		UserID:          row.UserID,
		UserName:        row.UserName,
		Answers:         answers,
		CurrentQuestion: row.CurrentQuestion,
		Completed:       row.Completed,
		CoreDesire:      row.CoreDesire,
		SixS:            row.SixS,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
		DeletedAt:       row.DeletedAt,
	}
}
