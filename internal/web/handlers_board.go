package web

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/services/card"
	"github.com/thenoetrevino/tablero/internal/services/column"
)

type columnBody struct {
	Name    string `json:"name"`
	AfterID *int   `json:"after_id"`
}

type moveColumnBody struct {
	AfterID *int `json:"after_id"`
}

type createCardBody struct {
	ColumnID    *int            `json:"column_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    models.Priority `json:"priority"`
	AssigneeID  *int            `json:"assignee_id"`
	StoryID     *int            `json:"story_id"`
	DueDate     *time.Time      `json:"due_date"`
	LabelIDs    []int           `json:"label_ids"`
}

// updateCardBody uses explicit clear flags because a JSON null cannot be
// told apart from an absent field
type updateCardBody struct {
	Title         *string          `json:"title"`
	Description   *string          `json:"description"`
	Priority      *models.Priority `json:"priority"`
	AssigneeID    *int             `json:"assignee_id"`
	ClearAssignee bool             `json:"clear_assignee"`
	StoryID       *int             `json:"story_id"`
	ClearStory    bool             `json:"clear_story"`
	DueDate       *time.Time       `json:"due_date"`
	ClearDueDate  bool             `json:"clear_due_date"`
}

type moveCardBody struct {
	ColumnID int `json:"column_id"`
	Position int `json:"position"`
}

// ============================================================================
// Columns
// ============================================================================

func (s *Server) handleGetBoard(c *gin.Context) {
	projectID, valid := pathID(c, "id")
	if !valid {
		return
	}
	board, err := s.app.Columns.GetBoard(c.Request.Context(), actor(c), projectID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, board)
}

func (s *Server) handleListColumns(c *gin.Context) {
	projectID, valid := pathID(c, "id")
	if !valid {
		return
	}
	columns, err := s.app.Columns.ListColumns(c.Request.Context(), actor(c), projectID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, columns)
}

func (s *Server) handleCreateColumn(c *gin.Context) {
	projectID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var body columnBody
	if !bindJSON(c, &body) {
		return
	}
	col, err := s.app.Columns.CreateColumn(c.Request.Context(), column.CreateColumnRequest{
		ActorID:   actor(c),
		ProjectID: projectID,
		Name:      body.Name,
		AfterID:   body.AfterID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	created(c, col)
}

func (s *Server) handleRenameColumn(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var body columnBody
	if !bindJSON(c, &body) {
		return
	}
	col, err := s.app.Columns.RenameColumn(c.Request.Context(), column.RenameColumnRequest{
		ActorID:  actor(c),
		ColumnID: id,
		Name:     body.Name,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, col)
}

func (s *Server) handleMoveColumn(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var body moveColumnBody
	if !bindJSON(c, &body) {
		return
	}
	err := s.app.Columns.MoveColumn(c.Request.Context(), column.MoveColumnRequest{
		ActorID:  actor(c),
		ColumnID: id,
		AfterID:  body.AfterID,
	})
	if err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

func (s *Server) handleSetCompletedColumn(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := s.app.Columns.SetCompletedColumn(c.Request.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

func (s *Server) handleDeleteColumn(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := s.app.Columns.DeleteColumn(c.Request.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

// ============================================================================
// Cards
// ============================================================================

func (s *Server) handleListCards(c *gin.Context) {
	projectID, valid := pathID(c, "id")
	if !valid {
		return
	}
	cards, err := s.app.Cards.ListCards(c.Request.Context(), actor(c), projectID, queryBool(c, "archived"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, cards)
}

func (s *Server) handleCreateCard(c *gin.Context) {
	projectID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var body createCardBody
	if !bindJSON(c, &body) {
		return
	}
	cd, err := s.app.Cards.CreateCard(c.Request.Context(), card.CreateCardRequest{
		ActorID:     actor(c),
		ProjectID:   projectID,
		ColumnID:    body.ColumnID,
		Title:       body.Title,
		Description: body.Description,
		Priority:    body.Priority,
		AssigneeID:  body.AssigneeID,
		StoryID:     body.StoryID,
		DueDate:     body.DueDate,
		LabelIDs:    body.LabelIDs,
	})
	if err != nil {
		fail(c, err)
		return
	}
	created(c, cd)
}

func (s *Server) handleGetCard(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	detail, err := s.app.Cards.GetCard(c.Request.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, detail)
}

func (s *Server) handleUpdateCard(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var body updateCardBody
	if !bindJSON(c, &body) {
		return
	}
	cd, err := s.app.Cards.UpdateCard(c.Request.Context(), card.UpdateCardRequest{
		ActorID:       actor(c),
		ID:            id,
		Title:         body.Title,
		Description:   body.Description,
		Priority:      body.Priority,
		AssigneeID:    body.AssigneeID,
		ClearAssignee: body.ClearAssignee,
		StoryID:       body.StoryID,
		ClearStory:    body.ClearStory,
		DueDate:       body.DueDate,
		ClearDueDate:  body.ClearDueDate,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, cd)
}

func (s *Server) handleDeleteCard(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := s.app.Cards.DeleteCard(c.Request.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

func (s *Server) handleMoveCard(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var body moveCardBody
	if !bindJSON(c, &body) {
		return
	}
	cd, err := s.app.Cards.MoveCard(c.Request.Context(), card.MoveCardRequest{
		ActorID:  actor(c),
		CardID:   id,
		ColumnID: body.ColumnID,
		Position: body.Position,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, cd)
}

func (s *Server) handleArchiveCard(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	cd, err := s.app.Cards.ArchiveCard(c.Request.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, cd)
}

func (s *Server) handleRestoreCard(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	cd, err := s.app.Cards.RestoreCard(c.Request.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, cd)
}

func (s *Server) handleAttachLabel(c *gin.Context) {
	cardID, valid := pathID(c, "id")
	if !valid {
		return
	}
	labelID, valid := pathID(c, "labelId")
	if !valid {
		return
	}
	if err := s.app.Cards.AttachLabel(c.Request.Context(), actor(c), cardID, labelID); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

func (s *Server) handleDetachLabel(c *gin.Context) {
	cardID, valid := pathID(c, "id")
	if !valid {
		return
	}
	labelID, valid := pathID(c, "labelId")
	if !valid {
		return
	}
	if err := s.app.Cards.DetachLabel(c.Request.Context(), actor(c), cardID, labelID); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}
