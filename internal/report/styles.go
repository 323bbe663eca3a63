package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	title   lipgloss.Style
	section lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	skipped lipgloss.Style
	pending lipgloss.Style
	muted   lipgloss.Style
	secret  lipgloss.Style
}

// newStyles binds styles to w so colour is only emitted on terminals.
func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		section: r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).MarginTop(1),
		success: r.NewStyle().Foreground(lipgloss.Color("42")),
		failure: r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		skipped: r.NewStyle().Foreground(lipgloss.Color("214")),
		pending: r.NewStyle().Foreground(lipgloss.Color("240")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("244")),
		secret:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("226")),
	}
}
