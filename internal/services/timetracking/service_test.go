package timetracking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/testutil"
)

type fixture struct {
	store   *database.Store
	svc     Service
	events  *testutil.RecordingPublisher
	clock   *time.Time
	owner   *models.User
	member  *models.User
	project *testutil.TestProject
	a, b    *models.Card
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := testutil.SetupTestStore(t)
	owner := testutil.CreateTestUser(t, store, "owner@example.com")
	member := testutil.CreateTestUser(t, store, "member@example.com")
	project := testutil.CreateTestProject(t, store, owner.ID, "Apollo")
	testutil.AddTestMember(t, store, project.ID, member.ID, models.RoleMember)

	now := testutil.Now
	f := &fixture{
		store:   store,
		events:  &testutil.RecordingPublisher{},
		clock:   &now,
		owner:   owner,
		member:  member,
		project: project,
		a:       testutil.CreateTestCard(t, store, project.ID, project.Columns[0].ID, owner.ID, "a"),
		b:       testutil.CreateTestCard(t, store, project.ID, project.Columns[0].ID, owner.ID, "b"),
	}
	f.svc = NewService(store, f.events, WithClock(func() time.Time { return *f.clock }))
	return f
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

// ============================================================================
// TIMER RECONCILIATION
// ============================================================================

func TestStartTimer_SameCardIsIdempotent(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	first, err := f.svc.StartTimer(ctx, f.member.ID, f.a.ID, "  focus ")
	if err != nil {
		t.Fatalf("StartTimer failed: %v", err)
	}
	if first.Timer.Note != "focus" || first.Stopped != nil {
		t.Errorf("Unexpected start result %+v", first)
	}

	f.advance(10 * time.Minute)
	again, err := f.svc.StartTimer(ctx, f.member.ID, f.a.ID, "other note")
	if err != nil {
		t.Fatalf("Second StartTimer failed: %v", err)
	}
	if !again.Timer.StartedAt.Equal(testutil.Now) || again.Timer.Note != "focus" {
		t.Errorf("Expected the original timer back, got %+v", again.Timer)
	}
	if got := f.events.Types(); len(got) != 1 {
		t.Errorf("Expected a single timer event, got %v", got)
	}
}

func TestStartTimer_SwitchingCardsRecordsEntry(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	if _, err := f.svc.StartTimer(ctx, f.member.ID, f.a.ID, ""); err != nil {
		t.Fatalf("StartTimer(a) failed: %v", err)
	}
	f.advance(25 * time.Minute)

	res, err := f.svc.StartTimer(ctx, f.member.ID, f.b.ID, "")
	if err != nil {
		t.Fatalf("StartTimer(b) failed: %v", err)
	}
	if res.Stopped == nil {
		t.Fatal("Expected the timer on a to be stopped")
	}
	if res.Stopped.CardID != f.a.ID || res.Stopped.DurationSeconds != 1500 || res.Stopped.Source != models.EntrySourceTimer {
		t.Errorf("Unexpected stopped entry %+v", res.Stopped)
	}
	if res.Timer.CardID != f.b.ID || !res.Timer.StartedAt.Equal(*f.clock) {
		t.Errorf("Unexpected new timer %+v", res.Timer)
	}

	active, err := f.svc.GetActiveTimer(ctx, f.member.ID)
	if err != nil {
		t.Fatalf("GetActiveTimer failed: %v", err)
	}
	if active.CardID != f.b.ID {
		t.Errorf("Expected active timer on b, got card %d", active.CardID)
	}
}

func TestStopTimer(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	if _, err := f.svc.StopTimer(ctx, f.member.ID); !errors.Is(err, ErrNoActiveTimer) {
		t.Errorf("Expected ErrNoActiveTimer, got %v", err)
	}

	if _, err := f.svc.StartTimer(ctx, f.member.ID, f.a.ID, "deep work"); err != nil {
		t.Fatalf("StartTimer failed: %v", err)
	}
	// Zero-length timers still produce an entry
	entry, err := f.svc.StopTimer(ctx, f.member.ID)
	if err != nil {
		t.Fatalf("StopTimer failed: %v", err)
	}
	if entry.DurationSeconds != 0 || entry.Note != "deep work" {
		t.Errorf("Unexpected entry %+v", entry)
	}
	if _, err := f.svc.GetActiveTimer(ctx, f.member.ID); !errors.Is(err, ErrNoActiveTimer) {
		t.Errorf("Expected no active timer after stop, got %v", err)
	}
}

func TestStartTimer_Rejections(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	outsider := testutil.CreateTestUser(t, f.store, "outsider@example.com")

	if _, err := f.svc.StartTimer(ctx, outsider.ID, f.a.ID, ""); !errors.Is(err, models.ErrNotMember) {
		t.Errorf("Expected ErrNotMember, got %v", err)
	}
	if _, err := f.svc.StartTimer(ctx, f.member.ID, 4242, ""); !errors.Is(err, ErrCardNotFound) {
		t.Errorf("Expected ErrCardNotFound, got %v", err)
	}

	archive, err := f.store.CreateArchiveColumn(ctx, f.project.ID, testutil.Now)
	if err != nil {
		t.Fatalf("CreateArchiveColumn failed: %v", err)
	}
	err = f.store.ExecTx(ctx, func(q *database.Queries) error {
		return q.ArchiveCard(ctx, f.a.ID, archive.ID, testutil.Now)
	})
	if err != nil {
		t.Fatalf("ArchiveCard failed: %v", err)
	}
	if _, err := f.svc.StartTimer(ctx, f.member.ID, f.a.ID, ""); !errors.Is(err, ErrCardArchived) {
		t.Errorf("Expected ErrCardArchived, got %v", err)
	}
}

// ============================================================================
// ENTRIES
// ============================================================================

func TestAddEntry_Validation(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	now := testutil.Now

	tests := []struct {
		name       string
		start, end time.Time
		want       error
	}{
		{"ends before start", now.Add(-time.Hour), now.Add(-2 * time.Hour), ErrInvalidInterval},
		{"zero length", now.Add(-time.Hour), now.Add(-time.Hour), ErrInvalidInterval},
		{"longer than a day", now.Add(-25 * time.Hour), now, ErrEntryTooLong},
		{"in the future", now.Add(-time.Hour), now.Add(time.Minute), ErrEntryInFuture},
		{"valid", now.Add(-2 * time.Hour), now.Add(-time.Hour), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.AddEntry(ctx, AddEntryRequest{ActorID: f.member.ID, CardID: f.a.ID, StartedAt: tt.start, EndedAt: tt.end})
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDeleteEntry_OwnerOrAdmin(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	mine, err := f.svc.AddEntry(ctx, AddEntryRequest{ActorID: f.owner.ID, CardID: f.a.ID, StartedAt: testutil.Now.Add(-time.Hour), EndedAt: testutil.Now})
	if err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}
	theirs, err := f.svc.AddEntry(ctx, AddEntryRequest{ActorID: f.member.ID, CardID: f.a.ID, StartedAt: testutil.Now.Add(-time.Hour), EndedAt: testutil.Now})
	if err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}

	if err := f.svc.DeleteEntry(ctx, f.member.ID, mine.ID); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("Expected ErrForbidden, got %v", err)
	}
	if err := f.svc.DeleteEntry(ctx, f.owner.ID, theirs.ID); err != nil {
		t.Errorf("Expected owner to delete member's entry, got %v", err)
	}
	if err := f.svc.DeleteEntry(ctx, f.owner.ID, theirs.ID); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Expected ErrEntryNotFound, got %v", err)
	}

	entries, err := f.svc.ListEntries(ctx, f.member.ID, f.a.ID)
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != mine.ID {
		t.Errorf("Expected only the owner's entry, got %+v", entries)
	}
}

// ============================================================================
// REPORTS
// ============================================================================

func TestCardSummary_IncludesRunningTimers(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	if _, err := f.svc.AddEntry(ctx, AddEntryRequest{ActorID: f.owner.ID, CardID: f.a.ID, StartedAt: testutil.Now.Add(-time.Hour), EndedAt: testutil.Now}); err != nil {
		t.Fatalf("AddEntry failed: %v", err)
	}
	if _, err := f.svc.StartTimer(ctx, f.member.ID, f.a.ID, ""); err != nil {
		t.Fatalf("StartTimer failed: %v", err)
	}
	f.advance(90 * time.Second)

	summary, err := f.svc.CardSummary(ctx, f.owner.ID, f.a.ID)
	if err != nil {
		t.Fatalf("CardSummary failed: %v", err)
	}
	want := &models.CardTimeSummary{
		CardID:         f.a.ID,
		TotalSeconds:   3600,
		RunningSeconds: 90,
		EntryCount:     1,
		ByUser:         []*models.UserTotal{{UserID: f.owner.ID, UserName: "owner", TotalSeconds: 3600}},
	}
	if diff := cmp.Diff(want, summary); diff != "" {
		t.Errorf("CardSummary mismatch (-want +got):\n%s", diff)
	}
}

func TestProjectReport_ClipsToWindow(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	day := testutil.Now.Truncate(24 * time.Hour)
	f.advance(48 * time.Hour)

	add := func(actor, card int, start, end time.Time) {
		t.Helper()
		if _, err := f.svc.AddEntry(ctx, AddEntryRequest{ActorID: actor, CardID: card, StartedAt: start, EndedAt: end}); err != nil {
			t.Fatalf("AddEntry failed: %v", err)
		}
	}
	// Straddles the window start: only the last 30 minutes count
	add(f.owner.ID, f.a.ID, day.Add(-30*time.Minute), day.Add(30*time.Minute))
	add(f.member.ID, f.b.ID, day.Add(2*time.Hour), day.Add(4*time.Hour))
	add(f.member.ID, f.a.ID, day.Add(5*time.Hour), day.Add(6*time.Hour))
	// Entirely outside
	add(f.owner.ID, f.b.ID, day.Add(25*time.Hour), day.Add(26*time.Hour))

	report, err := f.svc.ProjectReport(ctx, f.member.ID, f.project.ID, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("ProjectReport failed: %v", err)
	}
	if report.TotalSeconds != 12600 {
		t.Errorf("Expected 12600 seconds, got %d", report.TotalSeconds)
	}
	wantCards := []*models.CardTotal{
		{CardID: f.b.ID, CardNumber: 2, CardTitle: "b", TotalSeconds: 7200},
		{CardID: f.a.ID, CardNumber: 1, CardTitle: "a", TotalSeconds: 5400},
	}
	if diff := cmp.Diff(wantCards, report.ByCard); diff != "" {
		t.Errorf("ByCard mismatch (-want +got):\n%s", diff)
	}
	wantUsers := []*models.UserTotal{
		{UserID: f.member.ID, UserName: "member", TotalSeconds: 10800},
		{UserID: f.owner.ID, UserName: "owner", TotalSeconds: 1800},
	}
	if diff := cmp.Diff(wantUsers, report.ByUser); diff != "" {
		t.Errorf("ByUser mismatch (-want +got):\n%s", diff)
	}

	if _, err := f.svc.ProjectReport(ctx, f.member.ID, f.project.ID, day, day); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("Expected ErrInvalidWindow, got %v", err)
	}
}

func TestEvents_PublishedForTimerChanges(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	if _, err := f.svc.StartTimer(ctx, f.member.ID, f.a.ID, ""); err != nil {
		t.Fatalf("StartTimer failed: %v", err)
	}
	if _, err := f.svc.StartTimer(ctx, f.member.ID, f.b.ID, ""); err != nil {
		t.Fatalf("StartTimer failed: %v", err)
	}
	if _, err := f.svc.StopTimer(ctx, f.member.ID); err != nil {
		t.Fatalf("StopTimer failed: %v", err)
	}

	var cards []int
	for _, ev := range f.events.Events {
		if ev.Type != events.EventTimerChanged || ev.ProjectID != f.project.ID {
			t.Errorf("Unexpected event %+v", ev)
		}
		cards = append(cards, ev.EntityID)
	}
	if diff := cmp.Diff([]int{f.a.ID, f.a.ID, f.b.ID, f.b.ID}, cards); diff != "" {
		t.Errorf("Event card ids mismatch (-want +got):\n%s", diff)
	}
}
