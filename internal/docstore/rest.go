package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/marketforge/marketforge/internal/session"
)

// RESTStore is the hosted document-store backend, speaking a Supabase-style
// REST dialect: table endpoints under /rest/v1, column filters as query
// parameters (user_id=eq.X, deleted_at=is.null) and representation returns.
type RESTStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type restError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// restSession is the wire shape of a session row.
type restSession struct {
	ID              string     `json:"id,omitempty"`
	UserID          string     `json:"user_id"`
	UserName        string     `json:"user_name"`
	Answers         []string   `json:"answers"`
	CurrentQuestion int        `json:"current_question"`
	Completed       bool       `json:"completed"`
	CoreDesire      *string    `json:"core_desire"`
	SixS            *string    `json:"six_s"`
	CreatedAt       time.Time  `json:"created_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at,omitempty"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
}

// NewRESTStore creates a REST document store client.
func NewRESTStore(baseURL, apiKey string) *RESTStore {
	return &RESTStore{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Close is a no-op for the REST backend.
func (s *RESTStore) Close() error { return nil }

// CreateSession inserts a session document seeded with the given answers.
func (s *RESTStore) CreateSession(ctx context.Context, userID, userName string, answers []string, currentQuestion int) (*session.Session, error) {
	body := restSession{
		ID:              GenerateID(),
		UserID:          userID,
		UserName:        userName,
		Answers:         answers,
		CurrentQuestion: currentQuestion,
	}

	var rows []restSession
	if err := s.do(ctx, http.MethodPost, "sessions", nil, body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create returned no representation")
	}
	return restToSession(&rows[0]), nil
}

// UpdateSession applies a partial update; absent fields are left untouched
// server-side.
func (s *RESTStore) UpdateSession(ctx context.Context, id string, patch SessionPatch) (*session.Session, error) {
	fields := map[string]any{}
	if patch.UserName != nil {
		fields["user_name"] = *patch.UserName
	}
	if patch.Answers != nil {
		fields["answers"] = patch.Answers
	}
	if patch.CurrentQuestion != nil {
		fields["current_question"] = *patch.CurrentQuestion
	}
	if patch.Completed != nil {
		fields["completed"] = *patch.Completed
	}
	if patch.CoreDesire != nil {
		fields["core_desire"] = nullable(*patch.CoreDesire)
	}
	if patch.SixS != nil {
		fields["six_s"] = nullable(*patch.SixS)
	}

	query := url.Values{
		"id":         {"eq." + id},
		"deleted_at": {"is.null"},
	}
	var rows []restSession
	if err := s.do(ctx, http.MethodPatch, "sessions", query, fields, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return restToSession(&rows[0]), nil
}

// GetSession retrieves a session by ID.
func (s *RESTStore) GetSession(ctx context.Context, id string) (*session.Session, error) {
	query := url.Values{
		"id":         {"eq." + id},
		"deleted_at": {"is.null"},
		"limit":      {"1"},
	}
	return s.selectOne(ctx, query)
}

// GetLatestSession retrieves the user's most recently created session.
func (s *RESTStore) GetLatestSession(ctx context.Context, userID string) (*session.Session, error) {
	query := url.Values{
		"user_id":    {"eq." + userID},
		"deleted_at": {"is.null"},
		"order":      {"created_at.desc"},
		"limit":      {"1"},
	}
	return s.selectOne(ctx, query)
}

// GetIncompleteSession retrieves the user's most recent incomplete session.
func (s *RESTStore) GetIncompleteSession(ctx context.Context, userID string) (*session.Session, error) {
	query := url.Values{
		"user_id":    {"eq." + userID},
		"completed":  {"eq.false"},
		"deleted_at": {"is.null"},
		"order":      {"created_at.desc"},
		"limit":      {"1"},
	}
	return s.selectOne(ctx, query)
}

// ListSessions lists the user's sessions, newest first, excluding soft-deleted.
func (s *RESTStore) ListSessions(ctx context.Context, userID string) ([]*session.Session, error) {
	query := url.Values{
		"user_id":    {"eq." + userID},
		"deleted_at": {"is.null"},
		"order":      {"created_at.desc"},
	}
	var rows []restSession
	if err := s.do(ctx, http.MethodGet, "sessions", query, nil, &rows); err != nil {
		return nil, err
	}
	sessions := make([]*session.Session, len(rows))
	for i := range rows {
		sessions[i] = restToSession(&rows[i])
	}
	return sessions, nil
}

// SoftDeleteSession tombstones a session by setting its deletion timestamp.
func (s *RESTStore) SoftDeleteSession(ctx context.Context, id string) (bool, error) {
	query := url.Values{
		"id":         {"eq." + id},
		"deleted_at": {"is.null"},
	}
	fields := map[string]any{"deleted_at": time.Now().UTC().Format(time.RFC3339)}
	var rows []restSession
	if err := s.do(ctx, http.MethodPatch, "sessions", query, fields, &rows); err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

// SaveArtifact stores a generated artifact record.
func (s *RESTStore) SaveArtifact(ctx context.Context, artifact *ArtifactRecord) (*ArtifactRecord, error) {
	if artifact.ID == "" {
		artifact.ID = GenerateID()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	var rows []ArtifactRecord
	if err := s.do(ctx, http.MethodPost, "artifacts", nil, artifact, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create returned no representation")
	}
	return &rows[0], nil
}

// ListArtifacts lists artifacts for a session, oldest first.
func (s *RESTStore) ListArtifacts(ctx context.Context, sessionID string) ([]*ArtifactRecord, error) {
	query := url.Values{
		"session_id": {"eq." + sessionID},
		"order":      {"created_at.asc"},
	}
	var rows []ArtifactRecord
	if err := s.do(ctx, http.MethodGet, "artifacts", query, nil, &rows); err != nil {
		return nil, err
	}
	artifacts := make([]*ArtifactRecord, len(rows))
	for i := range rows {
		artifacts[i] = &rows[i]
	}
	return artifacts, nil
}

func (s *RESTStore) selectOne(ctx context.Context, query url.Values) (*session.Session, error) {
	var rows []restSession
	if err := s.do(ctx, http.MethodGet, "sessions", query, nil, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return restToSession(&rows[0]), nil
}

func (s *RESTStore) do(ctx context.Context, method, table string, query url.Values, body, out any) error {
	if s.apiKey == "" {
		return fmt.Errorf("document store API key not set")
	}

	endpoint := s.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if method == http.MethodPost || method == http.MethodPatch {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr restError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("document store error (%d): %s", resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("document store error (%d): %s", resp.StatusCode, string(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func restToSession(r *restSession) *session.Session {
	return &session.Session{
		ID:              r.ID,
		UserID:          r.UserID,
		UserName:        r.UserName,
		Answers:         r.Answers,
		CurrentQuestion: r.CurrentQuestion,
		Completed:       r.Completed,
		CoreDesire:      r.CoreDesire,
		SixS:            r.SixS,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		DeletedAt:       r.DeletedAt,
	}
}
