package web

import (
	"context"
	"io"
	"runtime"

	"github.com/gin-gonic/gin"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
)

func (s *Server) handleUserEvents(c *gin.Context) {
	s.stream(c, events.Subscription{UserID: actor(c)})
}

func (s *Server) handleProjectEvents(c *gin.Context) {
	projectID, valid := pathID(c, "id")
	if !valid {
		return
	}
	if _, err := s.app.Projects.RequireRole(c.Request.Context(), projectID, actor(c), models.RoleMember); err != nil {
		fail(c, err)
		return
	}
	s.stream(c, events.Subscription{ProjectID: projectID})
}

// stream relays hub events as Server-Sent Events until the client leaves,
// the hub shuts down or the viewer loses access to the streamed project
func (s *Server) stream(c *gin.Context, sub events.Subscription) {
	subscriber, err := s.app.Hub.Subscribe(sub)
	if err != nil {
		fail(c, err)
		return
	}
	defer subscriber.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	viewer := actor(c)
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, open := <-subscriber.Events():
			if !open {
				return false
			}
			if s.revoked(ctx, sub, viewer) {
				s.logger.Info("closing project stream, access revoked",
					"project_id", sub.ProjectID, "user_id", viewer)
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return true
		}
	})
}

// revoked reports whether userID is no longer a member of the streamed
// project. It runs before every delivery, so a removed member sees nothing
// published after the removal.
func (s *Server) revoked(ctx context.Context, sub events.Subscription, userID int) bool {
	if sub.ProjectID == 0 {
		return false
	}
	_, err := s.app.Projects.RequireRole(ctx, sub.ProjectID, userID, models.RoleMember)
	return err != nil
}

func (s *Server) handleMetrics(c *gin.Context) {
	ok(c, gin.H{
		"events":     s.app.Hub.Metrics(),
		"goroutines": runtime.NumGoroutine(),
	})
}
