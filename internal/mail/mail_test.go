package mail

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Drivers(t *testing.T) {
	m, err := New(Config{}, nil)
	require.NoError(t, err)
	assert.IsType(t, &LogMailer{}, m)

	_, err = New(Config{Driver: DriverSMTP}, nil)
	assert.Error(t, err, "smtp without host should fail")

	m, err = New(Config{Driver: DriverSMTP, Host: "localhost", From: "noreply@example.com"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &SMTPMailer{}, m)

	_, err = New(Config{Driver: "pigeon"}, nil)
	assert.True(t, errors.Is(err, ErrUnknownDriver))
}

func TestRenderInvitation(t *testing.T) {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	msg, err := RenderInvitation(InvitationData{
		To:          "bob@example.com",
		ProjectName: "Apollo",
		InviterName: "Ada",
		Role:        "admin",
		AcceptURL:   "https://tablero.test/invite/abc",
		ExpiresAt:   now.Add(7 * 24 * time.Hour),
		Now:         now,
	})
	require.NoError(t, err)

	assert.Equal(t, "bob@example.com", msg.To)
	assert.Equal(t, "You're invited to Apollo", msg.Subject)
	assert.Contains(t, msg.Text, "https://tablero.test/invite/abc")
	assert.Contains(t, msg.Text, "1 week from now")
	assert.Contains(t, msg.HTML, `href="https://tablero.test/invite/abc"`)
}

func TestRenderNotification_SanitisesMarkdown(t *testing.T) {
	msg, err := RenderNotification(NotificationData{
		To:    "bob@example.com",
		Name:  "Bob",
		Title: "New comment on #4",
		Body:  "**ship it**<script>alert(1)</script>",
		Link:  "/projects/1/cards/4",
	})
	require.NoError(t, err)

	assert.Contains(t, msg.HTML, "<strong>ship it</strong>")
	assert.NotContains(t, msg.HTML, "<script>")
	assert.Contains(t, msg.Text, "**ship it**")
}

func TestBuildMIME(t *testing.T) {
	raw := string(buildMIME("noreply@example.com", Message{
		To: "bob@example.com", Subject: "Hello", Text: "plain", HTML: "<p>rich</p>",
	}, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))

	assert.Contains(t, raw, "Subject: Hello\r\n")
	assert.Contains(t, raw, "multipart/alternative")
	assert.Equal(t, 3, strings.Count(raw, "--tablero-"), "two parts plus closing boundary")
}

func TestOutbox(t *testing.T) {
	var o Outbox
	require.NoError(t, o.Send(context.Background(), Message{To: "a@example.com"}))
	require.NoError(t, o.Send(context.Background(), Message{To: "b@example.com"}))
	msgs := o.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "b@example.com", msgs[1].To)
}
