package invitation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thenoetrevino/tablero/internal/database"
	"github.com/thenoetrevino/tablero/internal/mail"
	"github.com/thenoetrevino/tablero/internal/models"
	"github.com/thenoetrevino/tablero/internal/services/notification"
	"github.com/thenoetrevino/tablero/internal/testutil"
)

type fixture struct {
	store   *database.Store
	svc     Service
	notes   notification.Service
	outbox  *mail.Outbox
	clock   *time.Time
	owner   *models.User
	project *testutil.TestProject
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := testutil.SetupTestStore(t)
	owner := testutil.CreateTestUser(t, store, "owner@example.com")
	project := testutil.CreateTestProject(t, store, owner.ID, "Apollo")

	now := testutil.Now
	f := &fixture{
		store:   store,
		notes:   notification.NewService(store, nil),
		outbox:  &mail.Outbox{},
		clock:   &now,
		owner:   owner,
		project: project,
	}
	f.svc = NewService(store, nil, f.notes, f.outbox,
		Config{TTL: 48 * time.Hour, BaseURL: "https://boards.example.com/"},
		WithClock(func() time.Time { return *f.clock }))
	return f
}

func (f *fixture) invite(t *testing.T, email string, role models.Role) *Created {
	t.Helper()
	created, err := f.svc.CreateInvitation(context.Background(), CreateInvitationRequest{
		ActorID: f.owner.ID, ProjectID: f.project.ID, Email: email, Role: role,
	})
	require.NoError(t, err)
	return created
}

// ============================================================================
// CREATE
// ============================================================================

func TestCreateInvitation_StoresHashAndSendsEmail(t *testing.T) {
	t.Parallel()
	f := setup(t)

	created := f.invite(t, "  New.Person@Example.com ", "")

	assert.Equal(t, "new.person@example.com", created.Email)
	assert.Equal(t, models.RoleMember, created.Role)
	assert.True(t, created.ExpiresAt.Equal(testutil.Now.Add(48*time.Hour)), "unexpected expiry %v", created.ExpiresAt)
	assert.Equal(t, "https://boards.example.com/invitations/"+created.Token, created.AcceptURL)
	assert.NotEqual(t, created.Token, created.TokenHash)
	assert.Equal(t, hashToken(created.Token), created.TokenHash)

	sent := f.outbox.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "new.person@example.com", sent[0].To)
	assert.Equal(t, "You're invited to Apollo", sent[0].Subject)
	assert.Contains(t, sent[0].Text, created.AcceptURL)
	assert.Contains(t, sent[0].Text, "owner invited you")
}

func TestCreateInvitation_RefreshesOpenInvitation(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()

	first := f.invite(t, "new@example.com", models.RoleMember)
	*f.clock = f.clock.Add(time.Hour)
	second := f.invite(t, "new@example.com", models.RoleAdmin)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.RoleAdmin, second.Role)
	assert.NotEqual(t, first.Token, second.Token)

	// The old token no longer resolves
	_, err := f.svc.LookupInvitation(ctx, first.Token)
	assert.ErrorIs(t, err, ErrInvitationNotFound)

	list, err := f.svc.ListInvitations(ctx, f.owner.ID, f.project.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.InvitationPending, list[0].Status)
}

func TestCreateInvitation_Validation(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	member := testutil.CreateTestUser(t, f.store, "member@example.com")
	testutil.AddTestMember(t, f.store, f.project.ID, member.ID, models.RoleMember)

	tests := []struct {
		name    string
		actorID int
		email   string
		role    models.Role
		want    error
	}{
		{"bad email", f.owner.ID, "nobody", models.RoleMember, ErrInvalidEmail},
		{"owner role", f.owner.ID, "x@example.com", models.RoleOwner, ErrInvalidRole},
		{"existing member", f.owner.ID, "MEMBER@example.com", models.RoleMember, ErrAlreadyMember},
		{"member cannot invite", member.ID, "x@example.com", models.RoleMember, models.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateInvitation(ctx, CreateInvitationRequest{
				ActorID: tt.actorID, ProjectID: f.project.ID, Email: tt.email, Role: tt.role,
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, f.outbox.Messages())
}

// ============================================================================
// ACCEPT
// ============================================================================

func TestAcceptInvitation(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	created := f.invite(t, "guest@example.com", models.RoleAdmin)
	guest := testutil.CreateTestUser(t, f.store, "guest@example.com")

	preview, err := f.svc.LookupInvitation(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, "Apollo", preview.ProjectName)
	assert.Equal(t, models.InvitationPending, preview.Status)

	project, err := f.svc.AcceptInvitation(ctx, guest.ID, created.Token)
	require.NoError(t, err)
	assert.Equal(t, f.project.ID, project.ID)

	role, err := f.store.GetMemberRole(ctx, f.project.ID, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, role)

	_, err = f.svc.AcceptInvitation(ctx, guest.ID, created.Token)
	assert.ErrorIs(t, err, ErrInvitationUsed)

	inbox, err := f.notes.List(ctx, f.owner.ID, notification.ListOptions{})
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, models.NotificationInvitationAccepted, inbox[0].Kind)
	assert.Equal(t, "guest joined Apollo", inbox[0].Title)
}

func TestAcceptInvitation_Rejections(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	guest := testutil.CreateTestUser(t, f.store, "guest@example.com")
	stranger := testutil.CreateTestUser(t, f.store, "stranger@example.com")

	created := f.invite(t, "guest@example.com", models.RoleMember)

	_, err := f.svc.AcceptInvitation(ctx, stranger.ID, created.Token)
	assert.ErrorIs(t, err, ErrEmailMismatch)

	_, err = f.svc.AcceptInvitation(ctx, guest.ID, "not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	*f.clock = f.clock.Add(49 * time.Hour)
	_, err = f.svc.AcceptInvitation(ctx, guest.ID, created.Token)
	assert.ErrorIs(t, err, ErrInvitationExpired)

	_, err = f.store.GetMemberRole(ctx, f.project.ID, guest.ID)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestRevokeInvitation(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	guest := testutil.CreateTestUser(t, f.store, "guest@example.com")
	created := f.invite(t, "guest@example.com", models.RoleMember)

	require.NoError(t, f.svc.RevokeInvitation(ctx, f.owner.ID, created.ID))
	assert.ErrorIs(t, f.svc.RevokeInvitation(ctx, f.owner.ID, created.ID), ErrInvitationRevoked)

	_, err := f.svc.AcceptInvitation(ctx, guest.ID, created.Token)
	assert.ErrorIs(t, err, ErrInvitationRevoked)

	// A revoked invitation is not refreshed; a new one is issued
	again := f.invite(t, "guest@example.com", models.RoleMember)
	assert.NotEqual(t, created.ID, again.ID)
}

func TestPurgeExpired(t *testing.T) {
	t.Parallel()
	f := setup(t)
	ctx := context.Background()
	f.invite(t, "old@example.com", models.RoleMember)

	n, err := f.svc.PurgeExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n, "pending invitations must survive")

	*f.clock = f.clock.Add(48*time.Hour + 25*time.Hour)
	n, err = f.svc.PurgeExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	list, err := f.svc.ListInvitations(ctx, f.owner.ID, f.project.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}
