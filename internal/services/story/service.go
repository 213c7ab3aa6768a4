package story

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/services/access"
)

const (
	maxTitleLength = 255
	maxPoints      = 100
)

// Service defines story hierarchy operations
type Service interface {
	// Read operations
	GetStory(ctx context.Context, actorID, id int) (*models.Story, error)
	ListStories(ctx context.Context, actorID, projectID int) ([]*models.Story, error)
	GetStoryTree(ctx context.Context, actorID, projectID int) ([]*models.StoryNode, error)

	// Write operations
	CreateStory(ctx context.Context, req CreateStoryRequest) (*models.Story, error)
	UpdateStory(ctx context.Context, req UpdateStoryRequest) (*models.Story, error)
	DeleteStory(ctx context.Context, actorID, id int) error
}

// CreateStoryRequest encapsulates data for creating a story
type CreateStoryRequest struct {
	ActorID     int
	ProjectID   int
	ParentID    *int
	Type        models.StoryType
	Title       string
	Description string
	Points      *int
}

// UpdateStoryRequest is a partial update. ClearParent moves the story to
// the top level and ClearPoints unsets its estimate.
type UpdateStoryRequest struct {
	ActorID     int
	ID          int
	Title       *string
	Description *string
	Type        *models.StoryType
	Status      *models.StoryStatus
	Points      *int
	ClearPoints bool
	ParentID    *int
	ClearParent bool
}

type service struct {
	store       *database.Store
	eventClient events.EventPublisher
	now         func() time.Time
	logger      *slog.Logger
}

// NewService creates a new story service
func NewService(store *database.Store, eventClient events.EventPublisher) Service {
	return &service{
		store:       store,
		eventClient: eventClient,
		now:         time.Now,
		logger:      slog.Default().With("component", "story"),
	}
}

// GetStory returns a story to a member of its project
func (s *service) GetStory(ctx context.Context, actorID, id int) (*models.Story, error) {
	st, err := s.getStory(ctx, s.store.Queries, id)
	if err != nil {
		return nil, err
	}
	if _, err := access.RequireMember(ctx, s.store, st.ProjectID, actorID); err != nil {
		return nil, err
	}
	return st, nil
}

// ListStories returns every story of a project as a flat list, for members
// only. Use GetStoryTree for the nested view.
func (s *service) ListStories(ctx context.Context, actorID, projectID int) ([]*models.Story, error) {
	if projectID <= 0 {
		return nil, ErrInvalidProjectID
	}
	if _, err := access.RequireMember(ctx, s.store, projectID, actorID); err != nil {
		return nil, err
	}
	return s.store.ListStories(ctx, projectID)
}

// GetStoryTree returns the project's stories as a forest, for members only.
// Card counts and progress of a node cover its whole subtree.
func (s *service) GetStoryTree(ctx context.Context, actorID, projectID int) ([]*models.StoryNode, error) {
	stories, err := s.ListStories(ctx, actorID, projectID)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.ListStoryCardStats(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return buildTree(stories, stats), nil
}

// buildTree links stories to their parents and rolls card counts up.
// Stories whose parent is missing are treated as roots.
func buildTree(stories []*models.Story, stats map[int]database.StoryCardStats) []*models.StoryNode {
	nodes := make(map[int]*models.StoryNode, len(stories))
	for _, st := range stories {
		nodes[st.ID] = &models.StoryNode{Story: st, Children: []*models.StoryNode{}}
	}

	roots := make([]*models.StoryNode, 0)
	for _, st := range stories {
		node := nodes[st.ID]
		if st.ParentID != nil {
			if parent, ok := nodes[*st.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	var rollUp func(n *models.StoryNode)
	rollUp = func(n *models.StoryNode) {
		own := stats[n.ID]
		n.CardCount, n.CompletedCards = own.Total, own.Completed
		for _, child := range n.Children {
			rollUp(child)
			n.CardCount += child.CardCount
			n.CompletedCards += child.CompletedCards
		}
		if n.CardCount > 0 {
			n.Progress = float64(n.CompletedCards) / float64(n.CardCount)
		}
	}
	for _, root := range roots {
		rollUp(root)
	}
	return roots
}

// CreateStory creates a story, optionally under a parent
func (s *service) CreateStory(ctx context.Context, req CreateStoryRequest) (*models.Story, error) {
	title := strings.TrimSpace(req.Title)
	if err := validateTitle(title); err != nil {
		return nil, err
	}
	if req.Type == "" {
		req.Type = models.StoryTypeStory
	}
	if !req.Type.Valid() {
		return nil, ErrInvalidType
	}
	if err := validatePoints(req.Points); err != nil {
		return nil, err
	}
	if req.ProjectID <= 0 {
		return nil, ErrInvalidProjectID
	}
	if _, err := access.RequireMember(ctx, s.store, req.ProjectID, req.ActorID); err != nil {
		return nil, err
	}

	var created *models.Story
	err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		if req.ParentID != nil {
			parent, err := s.parentIn(ctx, q, req.ProjectID, *req.ParentID)
			if err != nil {
				return err
			}
			if req.Type.Rank() > parent.Type.Rank() {
				return ErrRankTooHigh
			}
		}
		var err error
		created, err = q.CreateStory(ctx, &models.Story{
			ProjectID:   req.ProjectID,
			ParentID:    req.ParentID,
			Type:        req.Type,
			Title:       title,
			Description: req.Description,
			Status:      models.StoryStatusOpen,
			Points:      req.Points,
			CreatedBy:   req.ActorID,
		}, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(created.ProjectID, created.ID)
	return created, nil
}

// UpdateStory applies a partial update. Re-parenting keeps the story in
// its project, respects type ranks and refuses cycles.
func (s *service) UpdateStory(ctx context.Context, req UpdateStoryRequest) (*models.Story, error) {
	if (req.ClearPoints && req.Points != nil) || (req.ClearParent && req.ParentID != nil) {
		return nil, ErrConflictingUpdate
	}
	if req.Title != nil {
		trimmed := strings.TrimSpace(*req.Title)
		if err := validateTitle(trimmed); err != nil {
			return nil, err
		}
		req.Title = &trimmed
	}
	if req.Type != nil && !req.Type.Valid() {
		return nil, ErrInvalidType
	}
	if req.Status != nil && !req.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	if err := validatePoints(req.Points); err != nil {
		return nil, err
	}

	var updated *models.Story
	err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		st, err := s.getStory(ctx, q, req.ID)
		if err != nil {
			return err
		}
		if _, err := access.RequireMember(ctx, q, st.ProjectID, req.ActorID); err != nil {
			return err
		}

		if req.Title != nil {
			st.Title = *req.Title
		}
		if req.Description != nil {
			st.Description = *req.Description
		}
		if req.Status != nil {
			st.Status = *req.Status
		}
		switch {
		case req.ClearPoints:
			st.Points = nil
		case req.Points != nil:
			st.Points = req.Points
		}
		if req.Type != nil {
			st.Type = *req.Type
		}
		switch {
		case req.ClearParent:
			st.ParentID = nil
		case req.ParentID != nil:
			if err := s.checkNoCycle(ctx, q, st.ID, *req.ParentID); err != nil {
				return err
			}
			st.ParentID = req.ParentID
		}

		if err := s.checkRanks(ctx, q, st); err != nil {
			return err
		}
		if err := q.UpdateStory(ctx, st, s.now()); err != nil {
			return fmt.Errorf("failed to update story: %w", err)
		}
		updated, err = q.GetStoryByID(ctx, st.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(updated.ProjectID, updated.ID)
	return updated, nil
}

// DeleteStory removes a story (creator or admin). Children move up to the
// story's parent and linked cards are unlinked.
func (s *service) DeleteStory(ctx context.Context, actorID, id int) error {
	st, err := s.getStory(ctx, s.store.Queries, id)
	if err != nil {
		return err
	}
	need := models.RoleAdmin
	if st.CreatedBy == actorID {
		need = models.RoleMember
	}
	if _, err := access.RequireRole(ctx, s.store, st.ProjectID, actorID, need); err != nil {
		return err
	}

	if err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		return q.DeleteStory(ctx, id)
	}); err != nil {
		return fmt.Errorf("failed to delete story: %w", err)
	}

	s.publish(st.ProjectID, id)
	return nil
}

// checkRanks verifies st against its parent and its children
func (s *service) checkRanks(ctx context.Context, q *database.Queries, st *models.Story) error {
	if st.ParentID != nil {
		parent, err := s.parentIn(ctx, q, st.ProjectID, *st.ParentID)
		if err != nil {
			return err
		}
		if st.Type.Rank() > parent.Type.Rank() {
			return ErrRankTooHigh
		}
	}
	children, err := q.ListChildStories(ctx, st.ID)
	if err != nil {
		return err
	}
	for _, child := range children {
		if child.Type.Rank() > st.Type.Rank() {
			return ErrChildRankTooHigh
		}
	}
	return nil
}

// checkNoCycle walks up from newParentID and fails if it reaches storyID
func (s *service) checkNoCycle(ctx context.Context, q *database.Queries, storyID, newParentID int) error {
	seen := make(map[int]bool)
	for current := &newParentID; current != nil; {
		if *current == storyID || seen[*current] {
			return ErrStoryCycle
		}
		seen[*current] = true
		ancestor, err := q.GetStoryByID(ctx, *current)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return ErrParentNotFound
			}
			return err
		}
		current = ancestor.ParentID
	}
	return nil
}

func (s *service) parentIn(ctx context.Context, q *database.Queries, projectID, parentID int) (*models.Story, error) {
	parent, err := q.GetStoryByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrParentNotFound
		}
		return nil, err
	}
	if parent.ProjectID != projectID {
		return nil, ErrParentNotFound
	}
	return parent, nil
}

func (s *service) getStory(ctx context.Context, q *database.Queries, id int) (*models.Story, error) {
	if id <= 0 {
		return nil, ErrInvalidStoryID
	}
	st, err := q.GetStoryByID(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrStoryNotFound
	}
	return st, err
}

func validateTitle(title string) error {
	if title == "" {
		return ErrEmptyTitle
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return ErrTitleTooLong
	}
	return nil
}

func validatePoints(points *int) error {
	if points != nil && (*points < 0 || *points > maxPoints) {
		return ErrInvalidPoints
	}
	return nil
}

func (s *service) publish(projectID, storyID int) {
	if s.eventClient == nil {
		return
	}
	if err := s.eventClient.SendEvent(events.Event{
		Type:      events.EventStoriesChanged,
		ProjectID: projectID,
		EntityID:  storyID,
	}); err != nil {
		s.logger.Warn("failed to send event", "story_id", storyID, "project_id", projectID, "error", err)
	}
}
