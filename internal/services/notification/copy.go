package notification

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys for notification copy
const (
	keyCardAssignedTitle       = "notification.card_assigned.title"
	keyCardAssignedBody        = "notification.card_assigned.body"
	keyCardCommentedTitle      = "notification.card_commented.title"
	keyInvitationAcceptedTitle = "notification.invitation_accepted.title"
	keyInvitationAcceptedBody  = "notification.invitation_accepted.body"
	keyMemberRemovedTitle      = "notification.member_removed.title"
	keyUnreadSummary           = "notification.unread_summary"
)

var englishCopy = map[string]string{
	keyCardAssignedTitle:       "%s assigned you #%d",
	keyCardAssignedBody:        "**%s** in %s",
	keyCardCommentedTitle:      "%s commented on #%d",
	keyInvitationAcceptedTitle: "%s joined %s",
	keyInvitationAcceptedBody:  "%s accepted your invitation as %s.",
	keyMemberRemovedTitle:      "You were removed from %s",
	keyUnreadSummary:           "You have %d unread notifications",
}

func init() {
	for key, msg := range englishCopy {
		_ = message.SetString(language.English, key, msg)
	}
}

// Copy renders notification text for one language
type Copy struct {
	p *message.Printer
}

// NewCopy returns a Copy for tag. Missing translations fall back to the
// message key.
func NewCopy(tag language.Tag) Copy {
	return Copy{p: message.NewPrinter(tag)}
}

// CardAssigned is the title and body for an assignment
func (c Copy) CardAssigned(actor string, number int, cardTitle, projectName string) (string, string) {
	return c.p.Sprintf(keyCardAssignedTitle, actor, number),
		c.p.Sprintf(keyCardAssignedBody, cardTitle, projectName)
}

// CardCommented is the title for a new comment; the body is the comment
func (c Copy) CardCommented(actor string, number int) string {
	return c.p.Sprintf(keyCardCommentedTitle, actor, number)
}

// InvitationAccepted is the title and body sent to the inviter
func (c Copy) InvitationAccepted(member, projectName, role string) (string, string) {
	return c.p.Sprintf(keyInvitationAcceptedTitle, member, projectName),
		c.p.Sprintf(keyInvitationAcceptedBody, member, role)
}

// MemberRemoved is the title sent to a removed member
func (c Copy) MemberRemoved(projectName string) string {
	return c.p.Sprintf(keyMemberRemovedTitle, projectName)
}

// UnreadSummary formats an unread count with locale digit grouping
func (c Copy) UnreadSummary(n int) string {
	return c.p.Sprintf(keyUnreadSummary, n)
}
