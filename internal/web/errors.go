package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/thenoetrevino/tablero/internal/auth"
	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/services/attachment"
	"github.com/thenoetrevino/tablero/internal/services/card"
	"github.com/thenoetrevino/tablero/internal/services/column"
	"github.com/thenoetrevino/tablero/internal/services/comment"
	"github.com/thenoetrevino/tablero/internal/services/invitation"
	"github.com/thenoetrevino/tablero/internal/services/label"
	"github.com/thenoetrevino/tablero/internal/services/notification"
	"github.com/thenoetrevino/tablero/internal/services/project"
	"github.com/thenoetrevino/tablero/internal/services/story"
	"github.com/thenoetrevino/tablero/internal/services/timetracking"
	"github.com/thenoetrevino/tablero/internal/services/user"
)

// Error codes returned in the envelope
const (
	CodeValidation   = "validation_error"
	CodeUnauthorized = "unauthorized"
	CodeForbidden    = "forbidden"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeGone         = "gone"
	CodeTooLarge     = "too_large"
	CodeUnavailable  = "unavailable"
	CodeInternal     = "internal_error"
)

var (
	errUnauthenticated = errors.New("authentication required")
	errBadRequest      = errors.New("malformed request")
)

type errorClass struct {
	status int
	code   string
}

var (
	classValidation   = errorClass{http.StatusBadRequest, CodeValidation}
	classUnauthorized = errorClass{http.StatusUnauthorized, CodeUnauthorized}
	classForbidden    = errorClass{http.StatusForbidden, CodeForbidden}
	classNotFound     = errorClass{http.StatusNotFound, CodeNotFound}
	classConflict     = errorClass{http.StatusConflict, CodeConflict}
	classGone         = errorClass{http.StatusGone, CodeGone}
	classTooLarge     = errorClass{http.StatusRequestEntityTooLarge, CodeTooLarge}
	classUnavailable  = errorClass{http.StatusServiceUnavailable, CodeUnavailable}
)

// errorClasses maps service sentinels to responses. Lookup uses errors.Is,
// so wrapped errors resolve too.
var errorClasses = []struct {
	class errorClass
	errs  []error
}{
	{classValidation, []error{
		errBadRequest,
		user.ErrInvalidEmail, user.ErrEmptyName, user.ErrNameTooLong, user.ErrPasswordTooShort, user.ErrInvalidUserID,
		project.ErrEmptyName, project.ErrNameTooLong, project.ErrInvalidProjectID, project.ErrInvalidUserID, project.ErrInvalidRole,
		column.ErrEmptyName, column.ErrNameTooLong, column.ErrInvalidColumnID, column.ErrInvalidProjectID, column.ErrInvalidPosition,
		card.ErrEmptyTitle, card.ErrTitleTooLong, card.ErrDescriptionTooLong, card.ErrInvalidCardID, card.ErrInvalidProjectID,
		card.ErrInvalidPriority, card.ErrInvalidPosition, card.ErrConflictingUpdate, card.ErrInvalidLabelID,
		card.ErrInvalidColumnTarget, card.ErrAssigneeNotMember, card.ErrStoryNotInProject, card.ErrLabelNotInProject,
		card.ErrColumnNotInProject,
		story.ErrEmptyTitle, story.ErrTitleTooLong, story.ErrInvalidType, story.ErrInvalidStatus, story.ErrInvalidPoints,
		story.ErrInvalidStoryID, story.ErrInvalidProjectID, story.ErrParentNotFound, story.ErrRankTooHigh,
		story.ErrChildRankTooHigh, story.ErrStoryCycle, story.ErrConflictingUpdate,
		label.ErrEmptyName, label.ErrNameTooLong, label.ErrInvalidColor, label.ErrInvalidLabelID, label.ErrInvalidProjectID,
		comment.ErrEmptyBody, comment.ErrBodyTooLong, comment.ErrInvalidCommentID, comment.ErrInvalidCardID,
		invitation.ErrInvalidEmail, invitation.ErrInvalidRole, invitation.ErrInvalidProjectID, invitation.ErrInvalidToken,
		timetracking.ErrInvalidCardID, timetracking.ErrInvalidEntryID, timetracking.ErrInvalidProjectID,
		timetracking.ErrNoteTooLong, timetracking.ErrInvalidInterval, timetracking.ErrEntryTooLong,
		timetracking.ErrEntryInFuture, timetracking.ErrInvalidWindow,
		notification.ErrInvalidUserID,
		attachment.ErrInvalidFilename, attachment.ErrFilenameTooLong, attachment.ErrEmptyFile,
		attachment.ErrInvalidAttachmentID, attachment.ErrInvalidCardID,
	}},
	{classUnauthorized, []error{
		errUnauthenticated, auth.ErrInvalidToken, auth.ErrTokenExpired, user.ErrInvalidCredentials,
	}},
	{classForbidden, []error{
		models.ErrNotMember, models.ErrForbidden, comment.ErrNotAuthor, invitation.ErrEmailMismatch,
	}},
	{classNotFound, []error{
		database.ErrNotFound,
		user.ErrUserNotFound, project.ErrProjectNotFound, project.ErrMemberNotFound,
		column.ErrColumnNotFound, card.ErrCardNotFound, story.ErrStoryNotFound, label.ErrLabelNotFound,
		comment.ErrCommentNotFound, comment.ErrCardNotFound, invitation.ErrInvitationNotFound,
		timetracking.ErrCardNotFound, timetracking.ErrEntryNotFound,
		notification.ErrNotificationNotFound,
		attachment.ErrAttachmentNotFound, attachment.ErrCardNotFound,
	}},
	{classConflict, []error{
		user.ErrEmailTaken, project.ErrLastOwner,
		column.ErrColumnHasCards, column.ErrLastColumn, column.ErrArchiveColumnImmutable,
		column.ErrArchiveColumnContention,
		card.ErrCardArchived, card.ErrCardNotArchived, card.ErrNoColumns,
		label.ErrDuplicateLabel,
		invitation.ErrAlreadyMember, invitation.ErrInvitationUsed,
		timetracking.ErrCardArchived, timetracking.ErrTimerContention, timetracking.ErrNoActiveTimer,
		attachment.ErrCardArchived,
	}},
	{classGone, []error{
		invitation.ErrInvitationExpired, invitation.ErrInvitationRevoked,
	}},
	{classTooLarge, []error{
		attachment.ErrFileTooLarge,
	}},
	{classUnavailable, []error{
		events.ErrHubClosed,
	}},
}

// classify returns the response class for err. ok is false for errors that
// are not part of the API contract.
func classify(err error) (errorClass, bool) {
	for _, group := range errorClasses {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.class, true
			}
		}
	}
	return errorClass{http.StatusInternalServerError, CodeInternal}, false
}

// apiError is the error half of the envelope
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respond(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func ok(c *gin.Context, data any) {
	respond(c, http.StatusOK, data)
}

func created(c *gin.Context, data any) {
	respond(c, http.StatusCreated, data)
}

func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// fail writes err in the envelope. Unknown errors are logged and hidden.
func fail(c *gin.Context, err error) {
	class, known := classify(err)
	message := err.Error()
	if !known {
		slog.ErrorContext(c.Request.Context(), "request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err)
		message = "internal server error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(class.status, gin.H{
		"success": false,
		"error":   apiError{Code: class.code, Message: message},
	})
}
