package styles

import (
	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
	"github.com/thenoetrevino/tablero/internal/models"
)

// Palette
const (
	Accent = "#874BFD"
	Title  = "#D75FD7"
	Subtle = "#585858"
	Normal = "#D0D0D0"
	Create = "#5FD75F"
	Edit   = "#5F87D7"
	Warn   = "#FFD700"
	Danger = "#FF0000"
)

var (
	// Text styles
	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(Title))
	SubtitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(Subtle))
	LabelStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(Accent)) // For field labels like "Email:"
	ValueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color(Normal))

	// Status styles
	SuccessStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(Create))
	WarningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(Warn))
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(Danger))

	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(Accent)).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(Normal)).Padding(0, 1)
)

// Field renders "Label: value"
func Field(label, value string) string {
	return LabelStyle.Render(label+":") + " " + ValueStyle.Render(value)
}

// RenderRole colours a project role
func RenderRole(role models.Role) string {
	color := Normal
	switch role {
	case models.RoleOwner:
		color = Title
	case models.RoleAdmin:
		color = Edit
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(string(role))
}

// Table renders rows under headers with rounded borders
func Table(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(Subtle))).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}
