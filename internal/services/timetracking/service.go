// Package timetracking runs per-user timers and records time entries.
//
// A user has at most one running timer, enforced by the unique user_id key
// on active_timers. Starting a timer on another card closes the running one
// into a time entry in the same transaction.
package timetracking

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/services/access"
)

const (
	maxNoteLength  = 500
	maxEntryLength = 24 * time.Hour
	startAttempts  = 3
)

// Service defines all time tracking operations
type Service interface {
	// Timer
	StartTimer(ctx context.Context, actorID, cardID int, note string) (*StartResult, error)
	StopTimer(ctx context.Context, actorID int) (*models.TimeEntry, error)
	GetActiveTimer(ctx context.Context, actorID int) (*models.ActiveTimer, error)

	// Entries
	AddEntry(ctx context.Context, req AddEntryRequest) (*models.TimeEntry, error)
	DeleteEntry(ctx context.Context, actorID, entryID int) error
	ListEntries(ctx context.Context, actorID, cardID int) ([]*models.TimeEntry, error)

	// Reports
	CardSummary(ctx context.Context, actorID, cardID int) (*models.CardTimeSummary, error)
	ProjectReport(ctx context.Context, actorID, projectID int, from, to time.Time) (*models.ProjectTimeReport, error)
}

// StartResult is the running timer plus the entry recorded for the timer it
// replaced, if any
type StartResult struct {
	Timer   *models.ActiveTimer `json:"timer"`
	Stopped *models.TimeEntry   `json:"stopped,omitempty"`

	started bool
}

// AddEntryRequest records work done without a timer
type AddEntryRequest struct {
	ActorID   int
	CardID    int
	StartedAt time.Time
	EndedAt   time.Time
	Note      string
}

// Option configures the service
type Option func(*service)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

type service struct {
	store       *database.Store
	eventClient events.EventPublisher
	now         func() time.Time
	logger      *slog.Logger
}

// NewService creates a new time tracking service. eventClient may be nil.
func NewService(store *database.Store, eventClient events.EventPublisher, opts ...Option) Service {
	s := &service{
		store:       store,
		eventClient: eventClient,
		now:         time.Now,
		logger:      slog.Default().With("component", "timetracking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ============================================================================
// Timer
// ============================================================================

// StartTimer starts the actor's timer on a card. A timer already running on
// the same card is returned unchanged; one running on another card is
// stopped into a time entry first.
func (s *service) StartTimer(ctx context.Context, actorID, cardID int, note string) (*StartResult, error) {
	note, err := validateNote(note)
	if err != nil {
		return nil, err
	}

	var result *StartResult
	for attempt := 1; attempt <= startAttempts; attempt++ {
		result, err = s.startOnce(ctx, actorID, cardID, note)
		if !database.IsUniqueViolation(err) {
			break
		}
		s.logger.Debug("concurrent timer start, retrying", "user_id", actorID, "attempt", attempt)
	}
	if database.IsUniqueViolation(err) {
		return nil, ErrTimerContention
	}
	if err != nil {
		return nil, err
	}

	if result.Stopped != nil {
		s.publish(result.Stopped.ProjectID, result.Stopped.CardID)
	}
	if result.started {
		s.publish(result.Timer.ProjectID, result.Timer.CardID)
	}
	return result, nil
}

func (s *service) startOnce(ctx context.Context, actorID, cardID int, note string) (*StartResult, error) {
	result := &StartResult{}
	err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		card, err := memberCard(ctx, q, actorID, cardID)
		if err != nil {
			return err
		}
		if card.IsArchived() {
			return ErrCardArchived
		}

		now := s.now()
		running, err := q.GetActiveTimer(ctx, actorID)
		switch {
		case err == nil && running.CardID == cardID:
			result.Timer = running
			return nil
		case err == nil:
			if result.Stopped, err = closeTimer(ctx, q, running, now); err != nil {
				return err
			}
		case !errors.Is(err, database.ErrNotFound):
			return err
		}

		timer := &models.ActiveTimer{
			UserID:    actorID,
			CardID:    card.ID,
			ProjectID: card.ProjectID,
			Note:      note,
			StartedAt: now,
		}
		if err := q.InsertActiveTimer(ctx, timer); err != nil {
			return err
		}
		result.Timer = timer
		result.started = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// StopTimer stops the actor's timer and records it as a time entry
func (s *service) StopTimer(ctx context.Context, actorID int) (*models.TimeEntry, error) {
	var entry *models.TimeEntry
	err := s.store.ExecTx(ctx, func(q *database.Queries) error {
		running, err := q.GetActiveTimer(ctx, actorID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return ErrNoActiveTimer
			}
			return err
		}
		entry, err = closeTimer(ctx, q, running, s.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(entry.ProjectID, entry.CardID)
	return entry, nil
}

// closeTimer converts a running timer into a time entry. Must run inside a
// transaction.
func closeTimer(ctx context.Context, q *database.Queries, timer *models.ActiveTimer, now time.Time) (*models.TimeEntry, error) {
	ended := now
	if ended.Before(timer.StartedAt) {
		ended = timer.StartedAt
	}
	entry, err := q.CreateTimeEntry(ctx, &models.TimeEntry{
		UserID:          timer.UserID,
		CardID:          timer.CardID,
		ProjectID:       timer.ProjectID,
		StartedAt:       timer.StartedAt,
		EndedAt:         ended,
		DurationSeconds: int64(timer.Elapsed(now) / time.Second),
		Note:            timer.Note,
		Source:          models.EntrySourceTimer,
		CreatedAt:       now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record stopped timer: %w", err)
	}
	if err := q.DeleteActiveTimer(ctx, timer.UserID); err != nil {
		return nil, err
	}
	return entry, nil
}

// GetActiveTimer returns the actor's running timer
func (s *service) GetActiveTimer(ctx context.Context, actorID int) (*models.ActiveTimer, error) {
	timer, err := s.store.GetActiveTimer(ctx, actorID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNoActiveTimer
	}
	return timer, err
}

// ============================================================================
// Entries
// ============================================================================

// AddEntry records a manual time entry
func (s *service) AddEntry(ctx context.Context, req AddEntryRequest) (*models.TimeEntry, error) {
	note, err := validateNote(req.Note)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !req.EndedAt.After(req.StartedAt) {
		return nil, ErrInvalidInterval
	}
	if req.EndedAt.Sub(req.StartedAt) > maxEntryLength {
		return nil, ErrEntryTooLong
	}
	if req.EndedAt.After(now) {
		return nil, ErrEntryInFuture
	}

	card, err := memberCard(ctx, s.store.Queries, req.ActorID, req.CardID)
	if err != nil {
		return nil, err
	}

	entry, err := s.store.CreateTimeEntry(ctx, &models.TimeEntry{
		UserID:          req.ActorID,
		CardID:          card.ID,
		ProjectID:       card.ProjectID,
		StartedAt:       req.StartedAt,
		EndedAt:         req.EndedAt,
		DurationSeconds: int64(req.EndedAt.Sub(req.StartedAt) / time.Second),
		Note:            note,
		Source:          models.EntrySourceManual,
		CreatedAt:       now,
	})
	if err != nil {
		return nil, err
	}

	s.publish(card.ProjectID, card.ID)
	return entry, nil
}

// DeleteEntry removes a time entry (its owner or a project admin)
func (s *service) DeleteEntry(ctx context.Context, actorID, entryID int) error {
	if entryID <= 0 {
		return ErrInvalidEntryID
	}
	entry, err := s.store.GetTimeEntryByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrEntryNotFound
		}
		return err
	}
	need := models.RoleAdmin
	if entry.UserID == actorID {
		need = models.RoleMember
	}
	if _, err := access.RequireRole(ctx, s.store, entry.ProjectID, actorID, need); err != nil {
		return err
	}

	if err := s.store.DeleteTimeEntry(ctx, entryID); err != nil {
		return fmt.Errorf("failed to delete time entry: %w", err)
	}
	s.publish(entry.ProjectID, entry.CardID)
	return nil
}

// ListEntries returns a card's entries newest first
func (s *service) ListEntries(ctx context.Context, actorID, cardID int) ([]*models.TimeEntry, error) {
	if _, err := memberCard(ctx, s.store.Queries, actorID, cardID); err != nil {
		return nil, err
	}
	return s.store.ListTimeEntriesForCard(ctx, cardID)
}

// ============================================================================
// Reports
// ============================================================================

// CardSummary totals recorded time on a card and the time of timers still
// running on it
func (s *service) CardSummary(ctx context.Context, actorID, cardID int) (*models.CardTimeSummary, error) {
	if _, err := memberCard(ctx, s.store.Queries, actorID, cardID); err != nil {
		return nil, err
	}

	byUser, err := s.store.CardUserTotals(ctx, cardID)
	if err != nil {
		return nil, err
	}
	entries, err := s.store.ListTimeEntriesForCard(ctx, cardID)
	if err != nil {
		return nil, err
	}
	timers, err := s.store.ListActiveTimersForCard(ctx, cardID)
	if err != nil {
		return nil, err
	}

	summary := &models.CardTimeSummary{
		CardID:     cardID,
		EntryCount: len(entries),
		ByUser:     byUser,
	}
	for _, t := range byUser {
		summary.TotalSeconds += t.TotalSeconds
	}
	now := s.now()
	for _, t := range timers {
		summary.RunningSeconds += int64(t.Elapsed(now) / time.Second)
	}
	return summary, nil
}

// ProjectReport aggregates the entries overlapping [from, to) per card and
// per user. Entries crossing the window edges only count the part inside.
func (s *service) ProjectReport(ctx context.Context, actorID, projectID int, from, to time.Time) (*models.ProjectTimeReport, error) {
	if projectID <= 0 {
		return nil, ErrInvalidProjectID
	}
	if !to.After(from) {
		return nil, ErrInvalidWindow
	}
	if _, err := access.RequireMember(ctx, s.store, projectID, actorID); err != nil {
		return nil, err
	}

	entries, err := s.store.ListTimeEntriesInWindow(ctx, projectID, from, to)
	if err != nil {
		return nil, err
	}

	report := &models.ProjectTimeReport{
		ProjectID: projectID,
		From:      from,
		To:        to,
		ByCard:    make([]*models.CardTotal, 0),
		ByUser:    make([]*models.UserTotal, 0),
	}
	cards := make(map[int]*models.CardTotal)
	users := make(map[int]*models.UserTotal)
	for _, e := range entries {
		seconds := clippedSeconds(e, from, to)
		report.TotalSeconds += seconds

		ct, ok := cards[e.CardID]
		if !ok {
			ct = &models.CardTotal{CardID: e.CardID}
			cards[e.CardID] = ct
			report.ByCard = append(report.ByCard, ct)
		}
		ct.TotalSeconds += seconds

		ut, ok := users[e.UserID]
		if !ok {
			ut = &models.UserTotal{UserID: e.UserID}
			users[e.UserID] = ut
			report.ByUser = append(report.ByUser, ut)
		}
		ut.TotalSeconds += seconds
	}

	for _, ct := range report.ByCard {
		card, err := s.store.GetCardByID(ctx, ct.CardID)
		if err != nil {
			return nil, fmt.Errorf("failed to load card %d for report: %w", ct.CardID, err)
		}
		ct.CardNumber, ct.CardTitle = card.Number, card.Title
	}
	for _, ut := range report.ByUser {
		u, err := s.store.GetUserByID(ctx, ut.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load user %d for report: %w", ut.UserID, err)
		}
		ut.UserName = u.Name
	}

	slices.SortFunc(report.ByCard, func(a, b *models.CardTotal) int {
		return cmp.Or(cmp.Compare(b.TotalSeconds, a.TotalSeconds), cmp.Compare(a.CardNumber, b.CardNumber))
	})
	slices.SortFunc(report.ByUser, func(a, b *models.UserTotal) int {
		return cmp.Or(cmp.Compare(b.TotalSeconds, a.TotalSeconds), cmp.Compare(a.UserID, b.UserID))
	})
	return report, nil
}

func clippedSeconds(e *models.TimeEntry, from, to time.Time) int64 {
	start, end := e.StartedAt, e.EndedAt
	if start.Before(from) {
		start = from
	}
	if end.After(to) {
		end = to
	}
	if !end.After(start) {
		return 0
	}
	return int64(end.Sub(start) / time.Second)
}

// ============================================================================
// Helpers
// ============================================================================

func validateNote(note string) (string, error) {
	note = strings.TrimSpace(note)
	if utf8.RuneCountInString(note) > maxNoteLength {
		return "", ErrNoteTooLong
	}
	return note, nil
}

func memberCard(ctx context.Context, q *database.Queries, actorID, cardID int) (*models.Card, error) {
	if cardID <= 0 {
		return nil, ErrInvalidCardID
	}
	card, err := q.GetCardByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	if _, err := access.RequireMember(ctx, q, card.ProjectID, actorID); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *service) publish(projectID, cardID int) {
	if s.eventClient == nil {
		return
	}
	if err := s.eventClient.SendEvent(events.Event{
		Type:      events.EventTimerChanged,
		ProjectID: projectID,
		EntityID:  cardID,
	}); err != nil {
		s.logger.Warn("failed to send event", "card_id", cardID, "error", err)
	}
}
