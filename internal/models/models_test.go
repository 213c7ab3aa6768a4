package models

import (
	"errors"
	"testing"
	"time"
)

// ============================================================================
// Error Tests
// ============================================================================

func TestErrors_Messages(t *testing.T) {
	tests := []struct {
		err             error
		expectedMessage string
	}{
		{ErrNotMember, "not a member of this project"},
		{ErrForbidden, "insufficient permissions"},
	}

	for _, tt := range tests {
		if tt.err.Error() != tt.expectedMessage {
			t.Errorf("Expected error message '%s', got '%s'", tt.expectedMessage, tt.err.Error())
		}
	}

	if errors.Is(ErrNotMember, ErrForbidden) {
		t.Error("ErrNotMember should not equal ErrForbidden")
	}
}

// ============================================================================
// Role Tests
// ============================================================================

func TestRole_AtLeast(t *testing.T) {
	tests := []struct {
		role Role
		min  Role
		want bool
	}{
		{RoleOwner, RoleOwner, true},
		{RoleOwner, RoleAdmin, true},
		{RoleOwner, RoleMember, true},
		{RoleAdmin, RoleOwner, false},
		{RoleAdmin, RoleAdmin, true},
		{RoleMember, RoleAdmin, false},
		{RoleMember, RoleMember, true},
		{Role("guest"), RoleMember, false},
		{Role(""), Role(""), false},
	}

	for _, tt := range tests {
		if got := tt.role.AtLeast(tt.min); got != tt.want {
			t.Errorf("%q.AtLeast(%q) = %v, want %v", tt.role, tt.min, got, tt.want)
		}
	}
}

// ============================================================================
// Story Type Tests
// ============================================================================

func TestStoryType_Rank(t *testing.T) {
	if StoryTypeEpic.Rank() <= StoryTypeStory.Rank() {
		t.Error("epic should outrank story")
	}
	if StoryTypeStory.Rank() <= StoryTypeTask.Rank() {
		t.Error("story should outrank task")
	}
	if StoryTypeTask.Rank() != StoryTypeBug.Rank() {
		t.Error("task and bug should share a rank")
	}
	if StoryType("saga").Valid() {
		t.Error("unknown story type should be invalid")
	}
}

func TestPriority_Valid(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent} {
		if !p.Valid() {
			t.Errorf("Expected %q to be valid", p)
		}
	}
	if Priority("critical").Valid() {
		t.Error("Expected unknown priority to be invalid")
	}
}

// ============================================================================
// Invitation Tests
// ============================================================================

func TestInvitation_Status(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	accepted := now.Add(-time.Hour)

	tests := []struct {
		name string
		inv  Invitation
		want InvitationStatus
	}{
		{"pending", Invitation{ExpiresAt: now.Add(time.Hour)}, InvitationPending},
		{"expired exactly now", Invitation{ExpiresAt: now}, InvitationExpired},
		{"expired", Invitation{ExpiresAt: now.Add(-time.Minute)}, InvitationExpired},
		{"accepted wins over expiry", Invitation{ExpiresAt: now.Add(-time.Minute), AcceptedAt: &accepted}, InvitationAccepted},
		{"revoked", Invitation{ExpiresAt: now.Add(time.Hour), RevokedAt: &accepted}, InvitationRevoked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.inv.Status(now); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ============================================================================
// Timer Tests
// ============================================================================

func TestActiveTimer_Elapsed(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	timer := ActiveTimer{StartedAt: start}

	if got := timer.Elapsed(start.Add(90 * time.Minute)); got != 90*time.Minute {
		t.Errorf("Expected 90m elapsed, got %v", got)
	}

	// Clock skew must never produce a negative duration
	if got := timer.Elapsed(start.Add(-time.Second)); got != 0 {
		t.Errorf("Expected 0 elapsed before start, got %v", got)
	}
}
