package output

import "github.com/charmbracelet/lipgloss"

// Styles are the lipgloss styles used by text mode.
type Styles struct {
	Header1  lipgloss.Style
	Header2  lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Info     lipgloss.Style
	CallSite lipgloss.Style
	Branch   lipgloss.Style
}

// NewStyles creates styles bound to a lipgloss renderer.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Header1:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Underline(true),
		Header2:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		Bold:     r.NewStyle().Bold(true),
		Muted:    r.NewStyle().Foreground(lipgloss.Color("8")),
		Success:  r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:  r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:    r.NewStyle().Foreground(lipgloss.Color("9")),
		Info:     r.NewStyle().Foreground(lipgloss.Color("12")),
		CallSite: r.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
		Branch:   r.NewStyle().Foreground(lipgloss.Color("8")).MarginRight(1),
	}
}
