package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/events"
	"github.com/thenoetrevino/tablero/internal/models"
)

// Now is the fixed instant fixtures are stamped with
var Now = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// SetupTestStore creates an in-memory database with the full schema
func SetupTestStore(t *testing.T) *database.Store {
	t.Helper()
	db, err := database.Open(context.Background(), database.MemoryPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return database.NewStore(db)
}

// CreateTestUser inserts a user whose name is the email's local part.
// The password hash is not a valid bcrypt hash.
func CreateTestUser(t *testing.T, store *database.Store, email string) *models.User {
	t.Helper()
	name := email
	for i, r := range email {
		if r == '@' {
			name = email[:i]
			break
		}
	}
	user, err := store.CreateUser(context.Background(), email, name, "x", Now)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// TestProject is a project fixture with its default columns
type TestProject struct {
	*models.Project
	Columns []*models.Column // To Do, In Progress, Done (completed)
}

// CreateTestProject creates a project owned by ownerID with the default
// columns; the last one holds completed cards
func CreateTestProject(t *testing.T, store *database.Store, ownerID int, name string) *TestProject {
	t.Helper()
	ctx := context.Background()
	tp := &TestProject{}
	err := store.ExecTx(ctx, func(q *database.Queries) error {
		project, err := q.CreateProject(ctx, name, "", ownerID, Now)
		if err != nil {
			return err
		}
		tp.Project = project
		if err := q.AddMember(ctx, project.ID, ownerID, models.RoleOwner, Now); err != nil {
			return err
		}
		for _, colName := range models.DefaultColumns {
			col, err := q.CreateColumn(ctx, project.ID, colName, nil, Now)
			if err != nil {
				return err
			}
			tp.Columns = append(tp.Columns, col)
		}
		last := tp.Columns[len(tp.Columns)-1]
		if err := q.SetCompletedColumn(ctx, project.ID, last.ID); err != nil {
			return err
		}
		last.HoldsCompleted = true
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to create test project: %v", err)
	}
	return tp
}

// AddTestMember adds userID to a project with role
func AddTestMember(t *testing.T, store *database.Store, projectID, userID int, role models.Role) {
	t.Helper()
	if err := store.AddMember(context.Background(), projectID, userID, role, Now); err != nil {
		t.Fatalf("Failed to add test member: %v", err)
	}
}

// CreateTestCard appends a card to a column
func CreateTestCard(t *testing.T, store *database.Store, projectID, columnID, createdBy int, title string) *models.Card {
	t.Helper()
	ctx := context.Background()
	var card *models.Card
	err := store.ExecTx(ctx, func(q *database.Queries) error {
		number, err := q.NextCardNumber(ctx, projectID)
		if err != nil {
			return err
		}
		card, err = q.CreateCard(ctx, database.CreateCardParams{
			ProjectID: projectID,
			ColumnID:  columnID,
			Number:    number,
			Title:     title,
			Priority:  models.PriorityMedium,
			CreatedBy: createdBy,
			Now:       Now,
		})
		return err
	})
	if err != nil {
		t.Fatalf("Failed to create test card: %v", err)
	}
	return card
}

// CreateTestLabel creates a label and returns it
func CreateTestLabel(t *testing.T, store *database.Store, projectID int, name, color string) *models.Label {
	t.Helper()
	label, err := store.CreateLabel(context.Background(), projectID, name, color)
	if err != nil {
		t.Fatalf("Failed to create test label: %v", err)
	}
	return label
}

// RecordingPublisher collects published events for assertions
type RecordingPublisher struct {
	Events []events.Event
}

// SendEvent records the event
func (r *RecordingPublisher) SendEvent(event events.Event) error {
	r.Events = append(r.Events, event)
	return nil
}

// Types lists the recorded event types in order
func (r *RecordingPublisher) Types() []events.EventType {
	types := make([]events.EventType, len(r.Events))
	for i, e := range r.Events {
		types[i] = e.Type
	}
	return types
}
