package web

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/thenoetrevino/tablero/internal/services/attachment"
	"github.com/thenoetrevino/tablero/internal/services/timetracking"
)

// multipartOverhead is the allowance for boundaries and part headers on top
// of the file size limit.
const multipartOverhead = 64 << 10

type commentBody struct {
	Body string `json:"body"`
}

type startTimerBody struct {
	CardID int    `json:"card_id"`
	Note   string `json:"note"`
}

type entryBody struct {
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	Note      string    `json:"note"`
}

// ============================================================================
// Comments
// ============================================================================

func (s *Server) handleListComments(c *gin.Context) {
	cardID, valid := pathID(c, "id")
	if !valid {
		return
	}
	comments, err := s.app.Comments.ListComments(c.Request.Context(), actor(c), cardID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, comments)
}

func (s *Server) handleAddComment(c *gin.Context) {
	cardID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var body commentBody
	if !bindJSON(c, &body) {
		return
	}
	comment, err := s.app.Comments.AddComment(c.Request.Context(), actor(c), cardID, body.Body)
	if err != nil {
		fail(c, err)
		return
	}
	created(c, comment)
}

func (s *Server) handleEditComment(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	var body commentBody
	if !bindJSON(c, &body) {
		return
	}
	comment, err := s.app.Comments.EditComment(c.Request.Context(), actor(c), id, body.Body)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, comment)
}

func (s *Server) handleDeleteComment(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := s.app.Comments.DeleteComment(c.Request.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

// ============================================================================
// Attachments
// ============================================================================

func (s *Server) handleListAttachments(c *gin.Context) {
	cardID, valid := pathID(c, "id")
	if !valid {
		return
	}
	attachments, err := s.app.Attachments.List(c.Request.Context(), actor(c), cardID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, attachments)
}

func (s *Server) handleUploadAttachment(c *gin.Context) {
	cardID, valid := pathID(c, "id")
	if !valid {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes+multipartOverhead)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, fmt.Errorf("%w: request body exceeds %s",
				attachment.ErrFileTooLarge, humanize.IBytes(uint64(tooLarge.Limit))))
			return
		}
		fail(c, fmt.Errorf("%w: multipart field \"file\" is required", errBadRequest))
		return
	}
	file, err := header.Open()
	if err != nil {
		fail(c, err)
		return
	}
	defer func() { _ = file.Close() }()

	att, err := s.app.Attachments.Upload(c.Request.Context(), attachment.UploadRequest{
		ActorID:  actor(c),
		CardID:   cardID,
		Filename: header.Filename,
		Body:     file,
	})
	if err != nil {
		fail(c, err)
		return
	}
	created(c, att)
}

func (s *Server) handleDownloadAttachment(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	att, body, err := s.app.Attachments.Open(c.Request.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	defer func() { _ = body.Close() }()

	c.DataFromReader(http.StatusOK, att.SizeBytes, att.ContentType, body, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": att.Filename}),
		"ETag":                strconv.Quote(att.ContentHash),
	})
}

func (s *Server) handleDeleteAttachment(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := s.app.Attachments.Delete(c.Request.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

// ============================================================================
// Time tracking
// ============================================================================

func (s *Server) handleGetTimer(c *gin.Context) {
	timer, err := s.app.Time.GetActiveTimer(c.Request.Context(), actor(c))
	if errors.Is(err, timetracking.ErrNoActiveTimer) {
		ok(c, nil)
		return
	}
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, timer)
}

func (s *Server) handleStartTimer(c *gin.Context) {
	var body startTimerBody
	if !bindJSON(c, &body) {
		return
	}
	result, err := s.app.Time.StartTimer(c.Request.Context(), actor(c), body.CardID, body.Note)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, result)
}

func (s *Server) handleStopTimer(c *gin.Context) {
	entry, err := s.app.Time.StopTimer(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, entry)
}

func (s *Server) handleCardTime(c *gin.Context) {
	cardID, valid := pathID(c, "id")
	if !valid {
		return
	}
	summary, err := s.app.Time.CardSummary(c.Request.Context(), actor(c), cardID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, summary)
}

func (s *Server) handleListEntries(c *gin.Context) {
	cardID, valid := pathID(c, "id")
	if !valid {
		return
	}
	entries, err := s.app.Time.ListEntries(c.Request.Context(), actor(c), cardID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, entries)
}

func (s *Server) handleAddEntry(c *gin.Context) {
	cardID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var body entryBody
	if !bindJSON(c, &body) {
		return
	}
	entry, err := s.app.Time.AddEntry(c.Request.Context(), timetracking.AddEntryRequest{
		ActorID:   actor(c),
		CardID:    cardID,
		StartedAt: body.StartedAt,
		EndedAt:   body.EndedAt,
		Note:      body.Note,
	})
	if err != nil {
		fail(c, err)
		return
	}
	created(c, entry)
}

func (s *Server) handleDeleteEntry(c *gin.Context) {
	id, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := s.app.Time.DeleteEntry(c.Request.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	noContent(c)
}

// handleTimeReport defaults to the last seven days
func (s *Server) handleTimeReport(c *gin.Context) {
	projectID, valid := pathID(c, "id")
	if !valid {
		return
	}
	now := time.Now().UTC()
	to, valid := queryTime(c, "to", now)
	if !valid {
		return
	}
	from, valid := queryTime(c, "from", to.Add(-7*24*time.Hour))
	if !valid {
		return
	}
	report, err := s.app.Time.ProjectReport(c.Request.Context(), actor(c), projectID, from, to)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, report)
}
