package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/marketforge/marketforge/internal/docstore"
	"github.com/marketforge/marketforge/internal/gateway"
	"github.com/marketforge/marketforge/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeBackend implements gateway.AvatarBackend.
type fakeBackend struct {
	mu        sync.Mutex
	CallCount int
}

func (f *fakeBackend) Name() string { return "portrait-xl" }

func (f *fakeBackend) Generate(ctx context.Context, req gateway.AvatarRequest) (*session.Avatar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CallCount++
	return &session.Avatar{
		ID:        fmt.Sprintf("av-%d", f.CallCount),
		SessionID: req.SessionID,
		Gender:    req.Gender,
	}, nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.CallCount
}

// fakeWriter implements gateway.StatementWriter.
type fakeWriter struct{}

func (f *fakeWriter) Write(ctx context.Context, req gateway.StatementRequest) (*session.Statements, error) {
	return &session.Statements{
		ID:       "stmt-1",
		AvatarID: req.Avatar.ID,
		Items:    []string{"statement one"},
	}, nil
}

func newTestServer(t *testing.T) (*Server, *fakeBackend, docstore.Store) {
	t.Helper()
	docs, err := docstore.NewSQLiteStore(filepath.Join(t.TempDir(), "forge.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { docs.Close() })

	backend := &fakeBackend{}
	server := NewServer(Deps{
		Docs:    docs,
		Primary: backend,
		Writer:  &fakeWriter{},
	})
	return server, backend, docs
}

func doRequest(server *Server, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	server.router.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, server *Server) string {
	t.Helper()
	w := doRequest(server, "POST", "/api/sessions", gin.H{
		"user_id":   "user-1",
		"user_name": "Dana",
		"answers":   []string{"coaching business", "results", "women in tech"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create failed: %d %s", w.Code, w.Body.String())
	}
	var resp struct {
		Session session.Session `json:"session"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp.Session.ID
}

func TestCreateSession(t *testing.T) {
	t.Run("Given a valid request When a session is created Then answers are normalized to the fixed size", func(t *testing.T) {
		server, _, _ := newTestServer(t)
		id := createSession(t, server)

		w := doRequest(server, "GET", "/api/sessions/"+id, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("get failed: %d", w.Code)
		}
		var resp struct {
			Session session.Session `json:"session"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		if len(resp.Session.Answers) != session.QuestionCount {
			t.Errorf("expected %d answer slots, got %d", session.QuestionCount, len(resp.Session.Answers))
		}
		if resp.Session.Answers[0] != "coaching business" {
			t.Errorf("answers lost: %v", resp.Session.Answers)
		}
	})

	t.Run("Given missing identity When a session is created Then 400", func(t *testing.T) {
		server, _, _ := newTestServer(t)
		w := doRequest(server, "POST", "/api/sessions", gin.H{"user_id": "user-1"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("Given too many answers When a session is created Then 400", func(t *testing.T) {
		server, _, _ := newTestServer(t)
		w := doRequest(server, "POST", "/api/sessions", gin.H{
			"user_id":   "user-1",
			"user_name": "Dana",
			"answers":   make([]string, session.QuestionCount+1),
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("Given an oversized answer When a session is created Then 400", func(t *testing.T) {
		server, _, _ := newTestServer(t)
		w := doRequest(server, "POST", "/api/sessions", gin.H{
			"user_id":   "user-1",
			"user_name": "Dana",
			"answers":   []string{string(make([]byte, 11<<10))},
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})
}

func TestUpdateSession(t *testing.T) {
	t.Run("Given a progress patch When applied Then the session advances", func(t *testing.T) {
		server, _, _ := newTestServer(t)
		id := createSession(t, server)

		w := doRequest(server, "PATCH", "/api/sessions/"+id, gin.H{"current_question": 5})
		if w.Code != http.StatusOK {
			t.Fatalf("patch failed: %d %s", w.Code, w.Body.String())
		}
		var resp struct {
			Session session.Session `json:"session"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Session.CurrentQuestion != 5 {
			t.Errorf("expected progress 5, got %d", resp.Session.CurrentQuestion)
		}
	})

	t.Run("Given a completed flag When patched directly Then 400", func(t *testing.T) {
		server, _, _ := newTestServer(t)
		id := createSession(t, server)

		w := doRequest(server, "PATCH", "/api/sessions/"+id, gin.H{"completed": true})
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d %s", w.Code, w.Body.String())
		}
	})

	t.Run("Given a short answers slice When patched Then 400", func(t *testing.T) {
		server, _, _ := newTestServer(t)
		id := createSession(t, server)

		w := doRequest(server, "PATCH", "/api/sessions/"+id, gin.H{"answers": []string{"only one"}})
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})

	t.Run("Given an unknown session When patched Then 404", func(t *testing.T) {
		server, _, _ := newTestServer(t)
		w := doRequest(server, "PATCH", "/api/sessions/nope", gin.H{"current_question": 1})
		if w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})
}

func TestDeleteSession(t *testing.T) {
	t.Run("Given a session When deleted Then it disappears from lookups", func(t *testing.T) {
		server, _, _ := newTestServer(t)
		id := createSession(t, server)

		if w := doRequest(server, "DELETE", "/api/sessions/"+id, nil); w.Code != http.StatusOK {
			t.Fatalf("delete failed: %d", w.Code)
		}
		if w := doRequest(server, "GET", "/api/sessions/"+id, nil); w.Code != http.StatusNotFound {
			t.Errorf("expected 404 after delete, got %d", w.Code)
		}
		if w := doRequest(server, "DELETE", "/api/sessions/"+id, nil); w.Code != http.StatusNotFound {
			t.Errorf("expected 404 on second delete, got %d", w.Code)
		}
	})
}

func TestCompleteSession(t *testing.T) {
	t.Run("Given a session When completed Then the stored document flips", func(t *testing.T) {
		server, _, docs := newTestServer(t)
		id := createSession(t, server)

		w := doRequest(server, "POST", "/api/sessions/"+id+"/complete", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("complete failed: %d %s", w.Code, w.Body.String())
		}

		doc, err := docs.GetSession(context.Background(), id)
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if !doc.Completed {
			t.Error("expected stored session completed")
		}
		if doc.CurrentQuestion != session.QuestionCount {
			t.Errorf("expected progress pinned past the last question, got %d", doc.CurrentQuestion)
		}
	})

	t.Run("Given an unknown session When completed Then 404", func(t *testing.T) {
		server, _, _ := newTestServer(t)
		if w := doRequest(server, "POST", "/api/sessions/nope/complete", nil); w.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", w.Code)
		}
	})
}

func TestGenerate(t *testing.T) {
	t.Run("Given a session When generation runs Then avatars and statements are returned and persisted", func(t *testing.T) {
		server, _, docs := newTestServer(t)
		id := createSession(t, server)

		w := doRequest(server, "POST", "/api/sessions/"+id+"/generate", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("generate failed: %d %s", w.Code, w.Body.String())
		}

		var resp struct {
			Avatars    []*session.Avatar   `json:"avatars"`
			Statements *session.Statements `json:"statements"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		if len(resp.Avatars) == 0 || resp.Statements == nil {
			t.Fatalf("expected generated artifacts, got %s", w.Body.String())
		}

		artifacts, err := docs.ListArtifacts(context.Background(), id)
		if err != nil {
			t.Fatalf("ListArtifacts failed: %v", err)
		}
		if len(artifacts) == 0 {
			t.Error("expected artifacts persisted")
		}
	})

	t.Run("Given persisted artifacts When generation runs again Then no backend call is made", func(t *testing.T) {
		server, backend, _ := newTestServer(t)
		id := createSession(t, server)

		doRequest(server, "POST", "/api/sessions/"+id+"/generate", nil)
		calls := backend.callCount()

		w := doRequest(server, "POST", "/api/sessions/"+id+"/generate", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("second generate failed: %d", w.Code)
		}
		if backend.callCount() != calls {
			t.Errorf("expected idempotent re-run, calls went %d -> %d", calls, backend.callCount())
		}
	})
}

func TestSuggestions(t *testing.T) {
	t.Run("Given no suggestion backend When suggestions are requested Then the local fallback serves", func(t *testing.T) {
		server, _, _ := newTestServer(t)
		id := createSession(t, server)

		w := doRequest(server, "GET", "/api/sessions/"+id+"/suggestions?question=2", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("suggestions failed: %d", w.Code)
		}
		var resp struct {
			Suggestions []string `json:"suggestions"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		if len(resp.Suggestions) == 0 {
			t.Error("suggestions must never be empty")
		}
	})

	t.Run("Given an out-of-range question When suggestions are requested Then 400", func(t *testing.T) {
		server, _, _ := newTestServer(t)
		id := createSession(t, server)

		w := doRequest(server, "GET", "/api/sessions/"+id+"/suggestions?question=99", nil)
		if w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})
}

func TestListSessions(t *testing.T) {
	t.Run("Given sessions When listed by user Then only that user's appear", func(t *testing.T) {
		server, _, _ := newTestServer(t)
		createSession(t, server)

		w := doRequest(server, "GET", "/api/sessions?user_id=user-1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("list failed: %d", w.Code)
		}
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(w.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Errorf("expected 1 session, got %d", resp.Count)
		}
	})

	t.Run("Given no user filter When listing Then 400", func(t *testing.T) {
		server, _, _ := newTestServer(t)
		if w := doRequest(server, "GET", "/api/sessions", nil); w.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", w.Code)
		}
	})
}
