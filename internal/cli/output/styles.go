package output

import "github.com/charmbracelet/lipgloss"

// Styles are the text styles of text mode.
type Styles struct {
	Header1  lipgloss.Style
	Header2  lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Name     lipgloss.Style
	Kind     lipgloss.Style
	Selected lipgloss.Style
	Pending  lipgloss.Style
}

// NewStyles creates the styles for a lipgloss renderer.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Header1:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Underline(true),
		Header2:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Bold:     r.NewStyle().Bold(true),
		Muted:    r.NewStyle().Foreground(lipgloss.Color("8")),
		Success:  r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:  r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:    r.NewStyle().Foreground(lipgloss.Color("9")),
		Name:     r.NewStyle().Foreground(lipgloss.Color("13")),
		Kind:     r.NewStyle().Foreground(lipgloss.Color("6")).Italic(true),
		Selected: r.NewStyle().Bold(true).Reverse(true),
		Pending:  r.NewStyle().Foreground(lipgloss.Color("11")).Italic(true),
	}
}
