package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"github.com/thenoetrevino/tablero/internal/blobstore"
	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/services/access"
)

const (
	maxFilenameLength = 255
	// DefaultMaxBytes applies when Config.MaxBytes is unset
	DefaultMaxBytes = 25 << 20
	// sweepGrace protects blobs whose row may not be committed yet
	sweepGrace = time.Hour
)

// Service defines all attachment-related business operations
type Service interface {
	Upload(ctx context.Context, req UploadRequest) (*models.Attachment, error)
	List(ctx context.Context, actorID, cardID int) ([]*models.Attachment, error)
	Open(ctx context.Context, actorID, attachmentID int) (*models.Attachment, io.ReadCloser, error)
	Delete(ctx context.Context, actorID, attachmentID int) error
	CollectGarbage(ctx context.Context) (int, error)
}

// UploadRequest carries one uploaded file
type UploadRequest struct {
	ActorID  int
	CardID   int
	Filename string
	Body     io.Reader
}

// Config limits uploads
type Config struct {
	MaxBytes int64
}

type service struct {
	store       *database.Store
	blobs       *blobstore.Store
	eventClient events.EventPublisher
	maxBytes    int64
	now         func() time.Time
	logger      *slog.Logger
}

// NewService creates a new attachment service. eventClient may be nil.
func NewService(store *database.Store, blobs *blobstore.Store, eventClient events.EventPublisher, cfg Config) Service {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &service{
		store:       store,
		blobs:       blobs,
		eventClient: eventClient,
		maxBytes:    cfg.MaxBytes,
		now:         time.Now,
		logger:      slog.Default().With("component", "attachment"),
	}
}

// Upload stores a file on an active card
func (s *service) Upload(ctx context.Context, req UploadRequest) (*models.Attachment, error) {
	filename, err := SanitizeFilename(req.Filename)
	if err != nil {
		return nil, err
	}
	card, err := s.memberCard(ctx, req.ActorID, req.CardID)
	if err != nil {
		return nil, err
	}
	if card.IsArchived() {
		return nil, ErrCardArchived
	}

	content, err := io.ReadAll(io.LimitReader(req.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(content)) > s.maxBytes {
		return nil, fmt.Errorf("%w (limit %s)", ErrFileTooLarge, humanize.IBytes(uint64(s.maxBytes)))
	}
	if len(content) == 0 {
		return nil, ErrEmptyFile
	}

	contentType := DetectContentType(filename, content)
	hash, err := s.blobs.Put(content, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	a, err := s.store.CreateAttachment(ctx, &models.Attachment{
		CardID:      card.ID,
		ProjectID:   card.ProjectID,
		UploadedBy:  req.ActorID,
		Filename:    filename,
		ContentType: contentType,
		SizeBytes:   int64(len(content)),
		ContentHash: hash,
		CreatedAt:   s.now(),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("attachment uploaded",
		"card_id", card.ID,
		"filename", filename,
		"size", humanize.IBytes(uint64(len(content))),
		"content_type", contentType)
	s.publish(card.ProjectID, card.ID)
	return a, nil
}

// List returns a card's attachments
func (s *service) List(ctx context.Context, actorID, cardID int) ([]*models.Attachment, error) {
	if _, err := s.memberCard(ctx, actorID, cardID); err != nil {
		return nil, err
	}
	return s.store.ListAttachments(ctx, cardID)
}

// Open returns an attachment with a reader over its content. The caller
// must close the reader.
func (s *service) Open(ctx context.Context, actorID, attachmentID int) (*models.Attachment, io.ReadCloser, error) {
	a, err := s.load(ctx, actorID, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.blobs.Open(a.ContentHash)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			s.logger.Error("attachment blob missing", "attachment_id", a.ID, "hash", a.ContentHash)
			return nil, nil, ErrAttachmentNotFound
		}
		return nil, nil, err
	}
	return a, rc, nil
}

// Delete removes an attachment (uploader or admin). Its blob is left for
// CollectGarbage, whose grace period protects uploads of the same content
// that have stored the blob but not yet inserted their row.
func (s *service) Delete(ctx context.Context, actorID, attachmentID int) error {
	a, err := s.load(ctx, actorID, attachmentID)
	if err != nil {
		return err
	}
	if a.UploadedBy != actorID {
		if _, err := access.RequireRole(ctx, s.store, a.ProjectID, actorID, models.RoleAdmin); err != nil {
			return err
		}
	}

	if err := s.store.DeleteAttachment(ctx, a.ID); err != nil {
		return fmt.Errorf("failed to delete attachment: %w", err)
	}

	s.publish(a.ProjectID, a.CardID)
	return nil
}

// CollectGarbage removes blobs no attachment references, such as those left
// behind by cascaded card or project deletes
func (s *service) CollectGarbage(ctx context.Context) (int, error) {
	keep, err := s.store.ListAttachmentHashes(ctx)
	if err != nil {
		return 0, err
	}
	n, err := s.blobs.Sweep(keep, sweepGrace, s.now())
	if n > 0 {
		s.logger.Info("removed unreferenced blobs", "count", n)
	}
	return n, err
}

// ============================================================================
// Helpers
// ============================================================================

// SanitizeFilename keeps the base name of an uploaded path and strips
// control characters
func SanitizeFilename(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	switch name {
	case "", ".", "..", "/":
		return "", ErrInvalidFilename
	}
	if utf8.RuneCountInString(name) > maxFilenameLength {
		return "", ErrFilenameTooLong
	}
	return name, nil
}

// DetectContentType sniffs content, falling back to the file extension when
// sniffing only finds generic text or binary
func DetectContentType(filename string, content []byte) string {
	sniffed := http.DetectContentType(content)
	generic := sniffed == "application/octet-stream" || strings.HasPrefix(sniffed, "text/plain")
	if !generic {
		return sniffed
	}
	if byExt := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); byExt != "" {
		return byExt
	}
	return sniffed
}

func (s *service) memberCard(ctx context.Context, actorID, cardID int) (*models.Card, error) {
	if cardID <= 0 {
		return nil, ErrInvalidCardID
	}
	card, err := s.store.GetCardByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	if _, err := access.RequireMember(ctx, s.store, card.ProjectID, actorID); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *service) load(ctx context.Context, actorID, attachmentID int) (*models.Attachment, error) {
	if attachmentID <= 0 {
		return nil, ErrInvalidAttachmentID
	}
	a, err := s.store.GetAttachmentByID(ctx, attachmentID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrAttachmentNotFound
		}
		return nil, err
	}
	if _, err := access.RequireMember(ctx, s.store, a.ProjectID, actorID); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *service) publish(projectID, cardID int) {
	if s.eventClient == nil {
		return
	}
	if err := s.eventClient.SendEvent(events.Event{
		Type:      events.EventAttachmentsChanged,
		ProjectID: projectID,
		EntityID:  cardID,
	}); err != nil {
		s.logger.Warn("failed to send event", "card_id", cardID, "error", err)
	}
}
