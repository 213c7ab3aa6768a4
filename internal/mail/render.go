package mail

import (
	"bytes"
	"embed"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	sanitize = bluemonday.UGCPolicy()

	htmlTemplates = htmltemplate.Must(htmltemplate.New("").Funcs(htmltemplate.FuncMap{
		"markdown": renderMarkdown,
		"relative": relativeTime,
	}).ParseFS(templateFS, "templates/*.html.tmpl"))

	textTemplates = texttemplate.Must(texttemplate.New("").Funcs(texttemplate.FuncMap{
		"relative": relativeTime,
	}).ParseFS(templateFS, "templates/*.txt.tmpl"))
)

// renderMarkdown turns user-written markdown into sanitised HTML
func renderMarkdown(src string) htmltemplate.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return htmltemplate.HTML(htmltemplate.HTMLEscapeString(src))
	}
	return htmltemplate.HTML(sanitize.SanitizeBytes(buf.Bytes()))
}

// relativeTime formats t relative to now ("3 days from now")
func relativeTime(now, t time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// InvitationData fills the invitation templates
type InvitationData struct {
	To          string
	ProjectName string
	InviterName string
	Role        string
	AcceptURL   string
	ExpiresAt   time.Time
	Now         time.Time
}

// NotificationData fills the notification templates. Body is markdown.
type NotificationData struct {
	To    string
	Name  string
	Title string
	Body  string
	Link  string
}

// RenderInvitation builds the invitation email
func RenderInvitation(data InvitationData) (Message, error) {
	return render("invitation", data.To, "You're invited to "+data.ProjectName, data)
}

// RenderNotification builds a notification email
func RenderNotification(data NotificationData) (Message, error) {
	return render("notification", data.To, data.Title, data)
}

func render(name, to, subject string, data any) (Message, error) {
	var text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, name+".txt.tmpl", data); err != nil {
		return Message{}, err
	}
	if err := htmlTemplates.ExecuteTemplate(&html, name+".html.tmpl", data); err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: strings.TrimSpace(subject),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
