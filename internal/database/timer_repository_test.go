package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/thenoetrevino/tablero/internal/models"
)

func TestActiveTimer_OnePerUser(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s.Queries, "owner@example.com")
	project, cols := createTestProject(t, s, owner.ID)
	a := createTestCard(t, s, project.ID, cols[0].ID, owner.ID, "a")
	b := createTestCard(t, s, project.ID, cols[0].ID, owner.ID, "b")

	if err := s.InsertActiveTimer(ctx, &models.ActiveTimer{UserID: owner.ID, CardID: a.ID, ProjectID: project.ID, StartedAt: testNow}); err != nil {
		t.Fatalf("InsertActiveTimer failed: %v", err)
	}
	err := s.InsertActiveTimer(ctx, &models.ActiveTimer{UserID: owner.ID, CardID: b.ID, ProjectID: project.ID, StartedAt: testNow})
	if !IsUniqueViolation(err) {
		t.Fatalf("Expected unique violation for second timer, got %v", err)
	}

	timer, err := s.GetActiveTimer(ctx, owner.ID)
	if err != nil {
		t.Fatalf("GetActiveTimer failed: %v", err)
	}
	if timer.CardID != a.ID || !timer.StartedAt.Equal(testNow) {
		t.Errorf("Unexpected timer %+v", timer)
	}

	if err := s.DeleteActiveTimer(ctx, owner.ID); err != nil {
		t.Fatalf("DeleteActiveTimer failed: %v", err)
	}
	if _, err := s.GetActiveTimer(ctx, owner.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestTimeEntries_WindowAndTotals(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	owner := createTestUser(t, s.Queries, "owner@example.com")
	project, cols := createTestProject(t, s, owner.ID)
	card := createTestCard(t, s, project.ID, cols[0].ID, owner.ID, "tracked")

	add := func(start time.Time, d time.Duration) {
		t.Helper()
		_, err := s.CreateTimeEntry(ctx, &models.TimeEntry{
			UserID: owner.ID, CardID: card.ID, ProjectID: project.ID,
			StartedAt: start, EndedAt: start.Add(d), DurationSeconds: int64(d.Seconds()),
			Source: models.EntrySourceManual, CreatedAt: testNow,
		})
		if err != nil {
			t.Fatalf("CreateTimeEntry failed: %v", err)
		}
	}
	add(testNow.Add(-48*time.Hour), time.Hour)
	add(testNow.Add(-time.Hour), 30*time.Minute)
	add(testNow.Add(-10*time.Minute), 20*time.Minute)

	inWindow, err := s.ListTimeEntriesInWindow(ctx, project.ID, testNow.Add(-2*time.Hour), testNow)
	if err != nil {
		t.Fatalf("ListTimeEntriesInWindow failed: %v", err)
	}
	if len(inWindow) != 2 {
		t.Errorf("Expected 2 overlapping entries, got %d", len(inWindow))
	}

	totals, err := s.CardUserTotals(ctx, card.ID)
	if err != nil {
		t.Fatalf("CardUserTotals failed: %v", err)
	}
	if len(totals) != 1 || totals[0].TotalSeconds != int64((110 * time.Minute).Seconds()) {
		t.Errorf("Expected 6600s for one user, got %+v", totals)
	}
}
