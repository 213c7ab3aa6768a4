// Package web serves the REST API, live event streams and the optional
// single-page frontend.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/thenoetrevino/tablero/internal/app"
	"github.com/thenoetrevino/tablero/internal/services/attachment"
)

// Config controls the HTTP listener
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	StaticDir       string
	CORSOrigins     []string
	MaxUploadBytes  int64
}

// Server is the tablero web server
type Server struct {
	cfg    Config
	app    *app.App
	router *gin.Engine
	logger *slog.Logger
}

// NewServer creates a new web server
func NewServer(cfg Config, a *app.App) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = attachment.DefaultMaxBytes
	}

	router := gin.New()
	s := &Server{
		cfg:    cfg,
		app:    a,
		router: router,
		logger: slog.Default().With("component", "web"),
	}

	router.Use(recovery(), requestLogger(s.logger))
	if len(cfg.CORSOrigins) > 0 {
		router.Use(cors(cfg.CORSOrigins))
	}
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	router.GET("/healthz", s.handleHealth)
	s.routes(router.Group("/api"))
	router.NoRoute(s.handleNoRoute)

	return s
}

func (s *Server) routes(api *gin.RouterGroup) {
	// Public
	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)
	api.GET("/invitations/:token", s.handleLookupInvitation)

	authed := api.Group("", requireAuth(s.app.Users))

	authed.GET("/me", s.handleMe)
	authed.PATCH("/me", s.handleUpdateMe)
	authed.GET("/users", s.handleListUsers)
	authed.GET("/events", s.handleUserEvents)
	authed.GET("/metrics", s.handleMetrics)
	authed.POST("/invitations/:token/accept", s.handleAcceptInvitation)

	// Projects and membership
	authed.GET("/projects", s.handleListProjects)
	authed.POST("/projects", s.handleCreateProject)
	authed.GET("/projects/:id", s.handleGetProject)
	authed.PATCH("/projects/:id", s.handleUpdateProject)
	authed.DELETE("/projects/:id", s.handleDeleteProject)
	authed.GET("/projects/:id/events", s.handleProjectEvents)
	authed.GET("/projects/:id/members", s.handleListMembers)
	authed.PATCH("/projects/:id/members/:userId", s.handleUpdateMember)
	authed.DELETE("/projects/:id/members/:userId", s.handleRemoveMember)
	authed.GET("/projects/:id/invitations", s.handleListInvitations)
	authed.POST("/projects/:id/invitations", s.handleCreateInvitation)
	authed.DELETE("/projects/:id/invitations/:invitationId", s.handleRevokeInvitation)

	// Board
	authed.GET("/projects/:id/board", s.handleGetBoard)
	authed.GET("/projects/:id/columns", s.handleListColumns)
	authed.POST("/projects/:id/columns", s.handleCreateColumn)
	authed.PATCH("/columns/:id", s.handleRenameColumn)
	authed.POST("/columns/:id/move", s.handleMoveColumn)
	authed.POST("/columns/:id/complete", s.handleSetCompletedColumn)
	authed.DELETE("/columns/:id", s.handleDeleteColumn)

	// Cards
	authed.GET("/projects/:id/cards", s.handleListCards)
	authed.POST("/projects/:id/cards", s.handleCreateCard)
	authed.GET("/cards/:id", s.handleGetCard)
	authed.PATCH("/cards/:id", s.handleUpdateCard)
	authed.DELETE("/cards/:id", s.handleDeleteCard)
	authed.POST("/cards/:id/move", s.handleMoveCard)
	authed.POST("/cards/:id/archive", s.handleArchiveCard)
	authed.POST("/cards/:id/restore", s.handleRestoreCard)
	authed.PUT("/cards/:id/labels/:labelId", s.handleAttachLabel)
	authed.DELETE("/cards/:id/labels/:labelId", s.handleDetachLabel)

	// Comments
	authed.GET("/cards/:id/comments", s.handleListComments)
	authed.POST("/cards/:id/comments", s.handleAddComment)
	authed.PATCH("/comments/:id", s.handleEditComment)
	authed.DELETE("/comments/:id", s.handleDeleteComment)

	// Attachments
	authed.GET("/cards/:id/attachments", s.handleListAttachments)
	authed.POST("/cards/:id/attachments", s.handleUploadAttachment)
	authed.GET("/attachments/:id", s.handleDownloadAttachment)
	authed.DELETE("/attachments/:id", s.handleDeleteAttachment)

	// Time tracking
	authed.GET("/timer", s.handleGetTimer)
	authed.POST("/timer/start", s.handleStartTimer)
	authed.POST("/timer/stop", s.handleStopTimer)
	authed.GET("/cards/:id/time", s.handleCardTime)
	authed.GET("/cards/:id/time/entries", s.handleListEntries)
	authed.POST("/cards/:id/time/entries", s.handleAddEntry)
	authed.DELETE("/time-entries/:id", s.handleDeleteEntry)
	authed.GET("/projects/:id/time-report", s.handleTimeReport)

	// Stories
	authed.GET("/projects/:id/stories", s.handleListStories)
	authed.POST("/projects/:id/stories", s.handleCreateStory)
	authed.GET("/projects/:id/stories/tree", s.handleStoryTree)
	authed.GET("/stories/:id", s.handleGetStory)
	authed.PATCH("/stories/:id", s.handleUpdateStory)
	authed.DELETE("/stories/:id", s.handleDeleteStory)

	// Labels
	authed.GET("/projects/:id/labels", s.handleListLabels)
	authed.POST("/projects/:id/labels", s.handleCreateLabel)
	authed.PATCH("/labels/:id", s.handleUpdateLabel)
	authed.DELETE("/labels/:id", s.handleDeleteLabel)

	// Notifications
	authed.GET("/notifications", s.handleListNotifications)
	authed.GET("/notifications/unread-count", s.handleUnreadCount)
	authed.POST("/notifications/read-all", s.handleMarkAllRead)
	authed.POST("/notifications/:id/read", s.handleMarkRead)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.app.Store().Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
