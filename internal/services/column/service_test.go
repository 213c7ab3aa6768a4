package column

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/testutil"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

type fixture struct {
	store   *database.Store
	svc     Service
	pub     *testutil.RecordingPublisher
	owner   *models.User
	project *testutil.TestProject
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := testutil.SetupTestStore(t)
	pub := &testutil.RecordingPublisher{}
	owner := testutil.CreateTestUser(t, store, "owner@example.com")
	return &fixture{
		store:   store,
		svc:     NewService(store, pub),
		pub:     pub,
		owner:   owner,
		project: testutil.CreateTestProject(t, store, owner.ID, "Apollo"),
	}
}

func names(cols []*models.Column) string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return strings.Join(out, ",")
}

func (f *fixture) order(t *testing.T) string {
	t.Helper()
	cols, err := f.svc.ListColumns(context.Background(), f.owner.ID, f.project.ID)
	if err != nil {
		t.Fatalf("ListColumns failed: %v", err)
	}
	return names(cols)
}

// dropArchiveIndex lets a test seed legacy duplicate archive columns
func dropArchiveIndex(t *testing.T, store *database.Store) {
	t.Helper()
	if _, err := store.DB().Exec(`DROP INDEX IF EXISTS idx_columns_archive_per_project`); err != nil {
		t.Fatalf("Failed to drop archive index: %v", err)
	}
}

// ============================================================================
// BOARD STRUCTURE
// ============================================================================

func TestCreateColumn_AppendAndInsertAfter(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	if _, err := f.svc.CreateColumn(ctx, CreateColumnRequest{ActorID: f.owner.ID, ProjectID: f.project.ID, Name: "Shipped"}); err != nil {
		t.Fatalf("CreateColumn failed: %v", err)
	}
	todo := f.project.Columns[0].ID
	if _, err := f.svc.CreateColumn(ctx, CreateColumnRequest{ActorID: f.owner.ID, ProjectID: f.project.ID, Name: " Review ", AfterID: &todo}); err != nil {
		t.Fatalf("CreateColumn after failed: %v", err)
	}

	if got, want := f.order(t), "To Do,Review,In Progress,Done,Shipped"; got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}
	if len(f.pub.Events) != 2 {
		t.Errorf("Expected 2 events, got %d", len(f.pub.Events))
	}
}

func TestCreateColumn_Validation(t *testing.T) {
	t.Parallel()
	f := setup(t)
	member := testutil.CreateTestUser(t, f.store, "member@example.com")
	testutil.AddTestMember(t, f.store, f.project.ID, member.ID, models.RoleMember)
	missing := 9999

	tests := []struct {
		name    string
		req     CreateColumnRequest
		wantErr error
	}{
		{"empty name", CreateColumnRequest{ActorID: f.owner.ID, ProjectID: f.project.ID, Name: " "}, ErrEmptyName},
		{"name too long", CreateColumnRequest{ActorID: f.owner.ID, ProjectID: f.project.ID, Name: strings.Repeat("x", 51)}, ErrNameTooLong},
		{"invalid project", CreateColumnRequest{ActorID: f.owner.ID, Name: "x"}, ErrInvalidProjectID},
		{"member cannot restructure", CreateColumnRequest{ActorID: member.ID, ProjectID: f.project.ID, Name: "x"}, models.ErrForbidden},
		{"unknown after column", CreateColumnRequest{ActorID: f.owner.ID, ProjectID: f.project.ID, Name: "x", AfterID: &missing}, ErrColumnNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.CreateColumn(context.Background(), tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestMoveColumn(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	todo, doing, done := f.project.Columns[0].ID, f.project.Columns[1].ID, f.project.Columns[2].ID

	if err := f.svc.MoveColumn(ctx, MoveColumnRequest{ActorID: f.owner.ID, ColumnID: done}); err != nil {
		t.Fatalf("MoveColumn to head failed: %v", err)
	}
	if got := f.order(t); got != "Done,To Do,In Progress" {
		t.Errorf("Expected Done first, got %s", got)
	}

	if err := f.svc.MoveColumn(ctx, MoveColumnRequest{ActorID: f.owner.ID, ColumnID: done, AfterID: &doing}); err != nil {
		t.Fatalf("MoveColumn to tail failed: %v", err)
	}
	if got := f.order(t); got != "To Do,In Progress,Done" {
		t.Errorf("Expected original order, got %s", got)
	}

	if err := f.svc.MoveColumn(ctx, MoveColumnRequest{ActorID: f.owner.ID, ColumnID: todo, AfterID: &todo}); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("Expected ErrInvalidPosition, got %v", err)
	}
}

func TestDeleteColumn_Rules(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	todo, doing := f.project.Columns[0], f.project.Columns[1]
	testutil.CreateTestCard(t, f.store, f.project.ID, todo.ID, f.owner.ID, "busy")

	if err := f.svc.DeleteColumn(ctx, f.owner.ID, todo.ID); !errors.Is(err, ErrColumnHasCards) {
		t.Errorf("Expected ErrColumnHasCards, got %v", err)
	}
	if err := f.svc.DeleteColumn(ctx, f.owner.ID, doing.ID); err != nil {
		t.Fatalf("DeleteColumn failed: %v", err)
	}
	if got := f.order(t); got != "To Do,Done" {
		t.Errorf("Expected neighbours relinked, got %s", got)
	}

	archive, err := f.svc.EnsureArchiveColumn(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("EnsureArchiveColumn failed: %v", err)
	}
	if err := f.svc.DeleteColumn(ctx, f.owner.ID, archive.ID); !errors.Is(err, ErrArchiveColumnImmutable) {
		t.Errorf("Expected ErrArchiveColumnImmutable, got %v", err)
	}
	if _, err := f.svc.RenameColumn(ctx, RenameColumnRequest{ActorID: f.owner.ID, ColumnID: archive.ID, Name: "Old"}); !errors.Is(err, ErrArchiveColumnImmutable) {
		t.Errorf("Expected rename of archive to fail, got %v", err)
	}
}

func TestDeleteColumn_LastColumn(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	for _, col := range f.project.Columns[1:] {
		if err := f.svc.DeleteColumn(ctx, f.owner.ID, col.ID); err != nil {
			t.Fatalf("DeleteColumn failed: %v", err)
		}
	}
	if err := f.svc.DeleteColumn(ctx, f.owner.ID, f.project.Columns[0].ID); !errors.Is(err, ErrLastColumn) {
		t.Errorf("Expected ErrLastColumn, got %v", err)
	}
}

func TestSetCompletedColumn_MovesFlag(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	doing := f.project.Columns[1]

	if err := f.svc.SetCompletedColumn(ctx, f.owner.ID, doing.ID); err != nil {
		t.Fatalf("SetCompletedColumn failed: %v", err)
	}
	id, err := f.store.CompletedColumnID(ctx, f.project.ID)
	if err != nil || id == nil || *id != doing.ID {
		t.Errorf("Expected completed column %d, got %v, %v", doing.ID, id, err)
	}
}

func TestGetBoard(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	todo := f.project.Columns[0]
	testutil.CreateTestCard(t, f.store, f.project.ID, todo.ID, f.owner.ID, "first")
	testutil.CreateTestCard(t, f.store, f.project.ID, todo.ID, f.owner.ID, "second")
	if _, err := f.svc.EnsureArchiveColumn(ctx, f.project.ID); err != nil {
		t.Fatalf("EnsureArchiveColumn failed: %v", err)
	}

	board, err := f.svc.GetBoard(ctx, f.owner.ID, f.project.ID)
	if err != nil {
		t.Fatalf("GetBoard failed: %v", err)
	}
	if len(board.Columns) != 3 {
		t.Fatalf("Expected 3 board columns without the archive, got %d", len(board.Columns))
	}
	if cards := board.Columns[0].Cards; len(cards) != 2 || cards[0].Title != "first" {
		t.Errorf("Unexpected To Do cards %+v", cards)
	}
	if board.Columns[1].Cards == nil {
		t.Error("Expected empty columns to carry an empty slice")
	}

	stranger := testutil.CreateTestUser(t, f.store, "stranger@example.com")
	if _, err := f.svc.GetBoard(ctx, stranger.ID, f.project.ID); !errors.Is(err, models.ErrNotMember) {
		t.Errorf("Expected ErrNotMember, got %v", err)
	}
}

// ============================================================================
// ARCHIVE COLUMN
// ============================================================================

func TestEnsureArchiveColumn_Idempotent(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	first, err := f.svc.EnsureArchiveColumn(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("EnsureArchiveColumn failed: %v", err)
	}
	if !first.IsArchive() || first.Name != models.ArchiveColumnName {
		t.Errorf("Unexpected archive column %+v", first)
	}
	second, err := f.svc.EnsureArchiveColumn(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("Second EnsureArchiveColumn failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("Expected the same archive column, got %d and %d", first.ID, second.ID)
	}
}

func TestEnsureArchiveColumn_Concurrent(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]int, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			col, err := f.svc.EnsureArchiveColumn(ctx, f.project.ID)
			errs[i] = err
			if col != nil {
				ids[i] = col.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("Worker %d failed: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("Expected every worker to see column %d, worker %d saw %d", ids[0], i, ids[i])
		}
	}
	archives, _ := f.store.ListArchiveColumns(ctx, f.project.ID)
	if len(archives) != 1 {
		t.Errorf("Expected exactly one archive column, got %d", len(archives))
	}
}

// racingArchives hides the archive column from the first stale reads and,
// when rival is set, lets another writer insert one just before the
// service's own insert.
type racingArchives struct {
	store   *database.Store
	stale   int
	rival   bool
	rivalID int
	reads   int
	creates int
}

func (r *racingArchives) ListArchiveColumns(ctx context.Context, projectID int) ([]*models.Column, error) {
	r.reads++
	if r.reads <= r.stale {
		return nil, nil
	}
	return r.store.ListArchiveColumns(ctx, projectID)
}

func (r *racingArchives) CreateArchiveColumn(ctx context.Context, projectID int, now time.Time) (*models.Column, error) {
	r.creates++
	if r.rival && r.creates == 1 {
		col, err := r.store.CreateArchiveColumn(ctx, projectID, now)
		if err != nil {
			return nil, err
		}
		r.rivalID = col.ID
	}
	return r.store.CreateArchiveColumn(ctx, projectID, now)
}

func TestEnsureArchiveColumn_LostRaceReadsWinner(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	racer := &racingArchives{store: f.store, stale: 1, rival: true}
	f.svc.(*service).archives = racer

	col, err := f.svc.EnsureArchiveColumn(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("EnsureArchiveColumn failed: %v", err)
	}
	if col.ID != racer.rivalID {
		t.Errorf("Expected the winning column %d, got %d", racer.rivalID, col.ID)
	}
	if racer.reads != 2 || racer.creates != 1 {
		t.Errorf("Expected 2 reads and 1 insert, got %d reads and %d inserts", racer.reads, racer.creates)
	}
	archives, _ := f.store.ListArchiveColumns(ctx, f.project.ID)
	if len(archives) != 1 {
		t.Errorf("Expected exactly one archive column, got %d", len(archives))
	}
}

func TestEnsureArchiveColumn_GivesUpUnderContention(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	if _, err := f.store.CreateArchiveColumn(ctx, f.project.ID, testutil.Now); err != nil {
		t.Fatalf("CreateArchiveColumn failed: %v", err)
	}
	racer := &racingArchives{store: f.store, stale: archiveAttempts}
	f.svc.(*service).archives = racer

	col, err := f.svc.EnsureArchiveColumn(ctx, f.project.ID)
	if !errors.Is(err, ErrArchiveColumnContention) {
		t.Fatalf("Expected ErrArchiveColumnContention, got %v (column %v)", err, col)
	}
	if racer.creates != archiveAttempts {
		t.Errorf("Expected %d inserts, got %d", archiveAttempts, racer.creates)
	}
	archives, _ := f.store.ListArchiveColumns(ctx, f.project.ID)
	if len(archives) != 1 {
		t.Errorf("Expected exactly one archive column, got %d", len(archives))
	}
}

func TestEnsureArchiveColumn_ReconcilesDuplicates(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	dropArchiveIndex(t, f.store)

	older, _ := f.store.CreateArchiveColumn(ctx, f.project.ID, testutil.Now)
	newer, _ := f.store.CreateArchiveColumn(ctx, f.project.ID, testutil.Now)
	todo := f.project.Columns[0].ID
	a := testutil.CreateTestCard(t, f.store, f.project.ID, todo, f.owner.ID, "a")
	b := testutil.CreateTestCard(t, f.store, f.project.ID, todo, f.owner.ID, "b")
	c := testutil.CreateTestCard(t, f.store, f.project.ID, todo, f.owner.ID, "c")
	archiveInto := func(cardID, columnID int) {
		t.Helper()
		if err := f.store.ExecTx(ctx, func(q *database.Queries) error {
			return q.ArchiveCard(ctx, cardID, columnID, testutil.Now)
		}); err != nil {
			t.Fatalf("ArchiveCard failed: %v", err)
		}
	}
	archiveInto(a.ID, older.ID)
	archiveInto(b.ID, newer.ID)
	archiveInto(c.ID, newer.ID)

	keeper, err := f.svc.EnsureArchiveColumn(ctx, f.project.ID)
	if err != nil {
		t.Fatalf("EnsureArchiveColumn failed: %v", err)
	}
	if keeper.ID != older.ID {
		t.Errorf("Expected oldest archive %d to survive, got %d", older.ID, keeper.ID)
	}

	archives, _ := f.store.ListArchiveColumns(ctx, f.project.ID)
	if len(archives) != 1 {
		t.Fatalf("Expected duplicates removed, got %d archive columns", len(archives))
	}
	archived, _ := f.store.ListCards(ctx, f.project.ID, true)
	positions := map[int]int{}
	for _, card := range archived {
		if card.ColumnID != older.ID {
			t.Errorf("Card %d left in column %d", card.ID, card.ColumnID)
		}
		positions[card.ID] = card.Position
	}
	if positions[a.ID] != 0 || positions[b.ID] != 1 || positions[c.ID] != 2 {
		t.Errorf("Expected merged cards appended in order, got %v", positions)
	}
}
