package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used for text output.
type Styles struct {
	Header1   lipgloss.Style
	Header2   lipgloss.Style
	ModelPath lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Number    lipgloss.Style
	Negative  lipgloss.Style
	Total     lipgloss.Style
}

// NewStyles builds styles bound to w. Without a terminal every style is
// plain so piped output never carries escape codes.
func NewStyles(w io.Writer, isTTY bool) *Styles {
	if !isTTY {
		plain := lipgloss.NewStyle()
		return &Styles{
			Header1: plain, Header2: plain, ModelPath: plain, Muted: plain,
			Success: plain, Warning: plain, Error: plain,
			Number: plain, Negative: plain, Total: plain,
		}
	}

	lr := lipgloss.NewRenderer(w)
	return &Styles{
		Header1:   lr.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Underline(true),
		Header2:   lr.NewStyle().Bold(true).Foreground(lipgloss.Color("14")),
		ModelPath: lr.NewStyle().Foreground(lipgloss.Color("15")),
		Muted:     lr.NewStyle().Foreground(lipgloss.Color("8")),
		Success:   lr.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:   lr.NewStyle().Foreground(lipgloss.Color("11")),
		Error:     lr.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Number:    lr.NewStyle().Foreground(lipgloss.Color("15")),
		Negative:  lr.NewStyle().Foreground(lipgloss.Color("9")),
		Total:     lr.NewStyle().Bold(true),
	}
}
