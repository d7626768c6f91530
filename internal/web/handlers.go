package web

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/marketforge/marketforge/internal/docstore"
	"github.com/marketforge/marketforge/internal/gateway"
	"github.com/marketforge/marketforge/internal/lifecycle"
	"github.com/marketforge/marketforge/internal/pipeline"
	"github.com/marketforge/marketforge/internal/session"
)

const maxAnswerSize = 10 << 10 // 10KB per answer

type createSessionRequest struct {
	UserID          string   `json:"user_id"`
	UserName        string   `json:"user_name"`
	Answers         []string `json:"answers"`
	CurrentQuestion int      `json:"current_question"`
}

type updateSessionRequest struct {
	UserName        *string  `json:"user_name"`
	Answers         []string `json:"answers"`
	CurrentQuestion *int     `json:"current_question"`
	Completed       *bool    `json:"completed"`
	CoreDesire      *string  `json:"core_desire"`
	SixS            *string  `json:"six_s"`
}

func (s *Server) handleListSessions(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "user_id parameter required",
		})
		return
	}

	sessions, err := s.deps.Docs.ListSessions(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	if req.UserID == "" || req.UserName == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "user_id and user_name required",
		})
		return
	}
	if len(req.Answers) > session.QuestionCount {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "too many answers",
		})
		return
	}
	for _, answer := range req.Answers {
		if len(answer) > maxAnswerSize {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "answer exceeds maximum size of 10KB",
			})
			return
		}
	}

	// The answers slice is fixed-length for the session's lifetime.
	answers := make([]string, session.QuestionCount)
	copy(answers, req.Answers)

	doc, err := s.deps.Docs.CreateSession(c.Request.Context(), req.UserID, req.UserName, answers, req.CurrentQuestion)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"session": doc,
	})
}

func (s *Server) handleGetSession(c *gin.Context) {
	doc, err := s.deps.Docs.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, docstore.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   "session not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": doc,
	})
}

func (s *Server) handleUpdateSession(c *gin.Context) {
	var req updateSessionRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	// Completion is a two-phase commit owned by the complete endpoint.
	if req.Completed != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "completed cannot be patched directly; use the complete endpoint",
		})
		return
	}
	if req.Answers != nil && len(req.Answers) != session.QuestionCount {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "answers must have exactly " + strconv.Itoa(session.QuestionCount) + " slots",
		})
		return
	}

	patch := docstore.SessionPatch{
		UserName:        req.UserName,
		Answers:         req.Answers,
		CurrentQuestion: req.CurrentQuestion,
		CoreDesire:      req.CoreDesire,
		SixS:            req.SixS,
	}

	doc, err := s.deps.Docs.UpdateSession(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, docstore.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": doc,
	})
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	deleted, err := s.deps.Docs.SoftDeleteSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "session not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Session deleted",
	})
}

func (s *Server) handleCompleteSession(c *gin.Context) {
	doc, err := s.deps.Docs.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "session not found",
		})
		return
	}

	store := session.NewStore()
	store.Hydrate(doc)

	controller := lifecycle.NewController(store, s.deps.Docs)
	if err := controller.Complete(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	state := store.State()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"session": state.Session,
	})
}

func (s *Server) handleGenerate(c *gin.Context) {
	doc, err := s.deps.Docs.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "session not found",
		})
		return
	}

	store := session.NewStore()
	store.Hydrate(doc)
	s.loadArtifacts(c, store, doc.ID)

	orch := pipeline.New(pipeline.Deps{
		Store:        store,
		Docs:         s.deps.Docs,
		Primary:      s.deps.Primary,
		Fallback:     s.deps.Fallback,
		Writer:       s.deps.Writer,
		StageTimeout: s.deps.StageTimeout,
	})

	runErr := orch.Run(c.Request.Context())
	state := store.State()

	if runErr != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   runErr.Error(),
			"stages":  orch.Stages(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"stages":     orch.Stages(),
		"avatars":    state.Avatars,
		"statements": state.Statements,
	})
}

// loadArtifacts prefills the store with previously generated artifacts so a
// repeated generate call skips completed stages.
func (s *Server) loadArtifacts(c *gin.Context, store *session.Store, sessionID string) {
	records, err := s.deps.Docs.ListArtifacts(c.Request.Context(), sessionID)
	if err != nil {
		return
	}

	var avatars []*session.Avatar
	for _, record := range records {
		switch record.Kind {
		case docstore.KindAvatar:
			if avatar, err := docstore.DecodeAvatar(record); err == nil {
				avatars = append(avatars, avatar)
			}
		case docstore.KindStatements:
			if statements, err := docstore.DecodeStatements(record); err == nil {
				store.SetStatements(statements)
			}
		}
	}
	if len(avatars) > 0 {
		store.SetAvatars(avatars)
	}
}

func (s *Server) handleListArtifacts(c *gin.Context) {
	artifacts, err := s.deps.Docs.ListArtifacts(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"artifacts": artifacts,
		"count":     len(artifacts),
	})
}

func (s *Server) handleSuggestions(c *gin.Context) {
	questionStr := c.DefaultQuery("question", "0")
	question, err := strconv.Atoi(questionStr)
	if err != nil || question < 0 || question >= session.QuestionCount {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "invalid question index",
		})
		return
	}

	doc, err := s.deps.Docs.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "session not found",
		})
		return
	}

	var suggestions []string
	if s.deps.Suggest != nil {
		suggestions = s.deps.Suggest.Suggest(c.Request.Context(), question, doc.Answers)
	} else {
		suggestions = gateway.Fallback(question)
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"suggestions": suggestions,
	})
}
