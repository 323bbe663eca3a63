package components

import (
	"fmt"
	"math"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
)

// Progress renders how many steps have reached a final status.
type Progress struct {
	bar   progress.Model
	total int
}

// NewProgress creates a progress component for the given total.
func NewProgress(total int) Progress {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	bar.Width = 30
	return Progress{bar: bar, total: total}
}

// View renders the bar for done steps, with the current step name if any.
func (p Progress) View(done int, current string) string {
	ratio := 0.0
	if p.total > 0 {
		ratio = math.Min(1.0, float64(done)/float64(p.total))
	}
	label := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("%d/%d", done, p.total))
	parts := []string{label, " ", p.bar.ViewAs(ratio)}
	if current != "" {
		parts = append(parts, "  ", current)
	}
	return lipgloss.JoinHorizontal(lipgloss.Left, parts...)
}
