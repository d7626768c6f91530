// Package web exposes the session and generation API consumed by the
// product front-end.
package web

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/marketforge/marketforge/internal/docstore"
	"github.com/marketforge/marketforge/internal/gateway"
)

// Deps holds the server's collaborators.
type Deps struct {
	Docs     docstore.Store
	Suggest  gateway.Suggester
	Primary  gateway.AvatarBackend
	Fallback gateway.AvatarBackend
	Writer   gateway.StatementWriter

	StageTimeout time.Duration
}

// Server is the forge API server.
type Server struct {
	deps   Deps
	router *gin.Engine
}

// NewServer creates the API server and registers routes.
func NewServer(deps Deps) *Server {
	router := gin.Default()

	s := &Server{
		deps:   deps,
		router: router,
	}

	api := router.Group("/api")
	{
		api.GET("/sessions", s.handleListSessions)
		api.POST("/sessions", s.handleCreateSession)
		api.GET("/sessions/:id", s.handleGetSession)
		api.PATCH("/sessions/:id", s.handleUpdateSession)
		api.DELETE("/sessions/:id", s.handleDeleteSession)
		api.POST("/sessions/:id/complete", s.handleCompleteSession)
		api.POST("/sessions/:id/generate", s.handleGenerate)
		api.GET("/sessions/:id/artifacts", s.handleListArtifacts)
		api.GET("/sessions/:id/suggestions", s.handleSuggestions)
	}

	return s
}

// Run starts the API server.
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
