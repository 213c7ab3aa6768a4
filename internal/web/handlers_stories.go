package web

import (
	"github.com/gin-gonic/gin"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/services/label"
	"github.com/thenoetrevino/tablero/internal/services/notification"
	"github.com/thenoetrevino/tablero/internal/services/story"
)

type createStoryBody struct {
	ParentID    *int             `json:"parent_id"`
	Type        models.StoryType `json:"type"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Points      *int             `json:"points"`
}

type updateStoryBody struct {
	Title       *string             `json:"title"`
	Description *string             `json:"description"`
	Type        *models.StoryType   `json:"type"`
	Status      *models.StoryStatus `json:"status"`
	Points      *int                `json:"points"`
	ClearPoints bool                `json:"clear_points"`
	ParentID    *int                `json:"parent_id"`
	ClearParent bool                `json:"clear_parent"`
}

type labelBody struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

// ============================================================================
// Stories
// ============================================================================

func (s *Server) handleListStories(c *gin.Context) {
	projectID, valid := pathID(c, "id")
	if !valid {
		return
	}
	stories, err := s.app.Stories.ListStories(c.Request.Context(), actor(c), projectID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, stories)
}

func (s *Server) handleStoryTree(c *gin.Context) {
	projectID, valid := pathID(c, "id")
	if !valid {
		return
	}
	tree, err := s.app.Stories.GetStoryTree(c.Request.Context(), actor(c), projectID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, tree)
}

func (s *Server) handleCreateStory(c *gin.Context) {
	projectID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var body createStoryBody
	if !bindJSON(c, &body) {
		return
	}
	st, err := s.app.Stories.CreateStory(c.Request.Context(), story.CreateStoryRequest{
		ActorID:     actor(c),
		ProjectID:   projectID,
		ParentID:    body.ParentID,
		Type:        body.Type,
		Title:       body.Title,
		Description: body.Description,
		Points:      body.Points,
	})
	if err != nil {
		fail(c, err)
		return
	}
	created(c, st)
}

func (s *Server) handleGetStory(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	st, err := s.app.Stories.GetStory(c.Request.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, st)
}

func (s *Server) handleUpdateStory(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var body updateStoryBody
	if !bindJSON(c, &body) {
		return
	}
	st, err := s.app.Stories.UpdateStory(c.Request.Context(), story.UpdateStoryRequest{
		ActorID:     actor(c),
		ID:          id,
		Title:       body.Title,
		Description: body.Description,
		Type:        body.Type,
		Status:      body.Status,
		Points:      body.Points,
		ClearPoints: body.ClearPoints,
		ParentID:    body.ParentID,
		ClearParent: body.ClearParent,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, st)
}

func (s *Server) handleDeleteStory(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := s.app.Stories.DeleteStory(c.Request.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

// ============================================================================
// Labels
// ============================================================================

func (s *Server) handleListLabels(c *gin.Context) {
	projectID, valid := pathID(c, "id")
	if !valid {
		return
	}
	labels, err := s.app.Labels.ListLabels(c.Request.Context(), actor(c), projectID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, labels)
}

func (s *Server) handleCreateLabel(c *gin.Context) {
	projectID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var body labelBody
	if !bindJSON(c, &body) {
		return
	}
	req := label.CreateLabelRequest{ActorID: actor(c), ProjectID: projectID}
	if body.Name != nil {
		req.Name = *body.Name
	}
	if body.Color != nil {
		req.Color = *body.Color
	}
	l, err := s.app.Labels.CreateLabel(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, l)
}

func (s *Server) handleUpdateLabel(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var body labelBody
	if !bindJSON(c, &body) {
		return
	}
	l, err := s.app.Labels.UpdateLabel(c.Request.Context(), label.UpdateLabelRequest{
		ActorID: actor(c),
		ID:      id,
		Name:    body.Name,
		Color:   body.Color,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, l)
}

func (s *Server) handleDeleteLabel(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := s.app.Labels.DeleteLabel(c.Request.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

// ============================================================================
// Notifications
// ============================================================================

func (s *Server) handleListNotifications(c *gin.Context) {
	limit, valid := queryInt(c, "limit", 0)
	if !valid {
		return
	}
	offset, valid := queryInt(c, "offset", 0)
	if !valid {
		return
	}
	notes, err := s.app.Notifications.List(c.Request.Context(), actor(c), notification.ListOptions{
		UnreadOnly: queryBool(c, "unread"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, notes)
}

func (s *Server) handleUnreadCount(c *gin.Context) {
	n, err := s.app.Notifications.UnreadCount(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"unread": n})
}

func (s *Server) handleMarkRead(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := s.app.Notifications.MarkRead(c.Request.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

func (s *Server) handleMarkAllRead(c *gin.Context) {
	n, err := s.app.Notifications.MarkAllRead(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"marked": n})
}
