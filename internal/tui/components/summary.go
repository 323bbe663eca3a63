package components

import (
	"fmt"
	"strings"
)

// ProbeStatus is a verifier result condensed for the summary.
type ProbeStatus struct {
	Name    string
	Status  string
	Code    int
	Working bool
}

// SummaryData aggregates counts for rendering summaries.
type SummaryData struct {
	Total     int
	Done      int
	Skipped   int
	Finished  bool
	Cancelled bool
	// State is the terminal run state once known.
	State    string
	ExitCode int
	Probes   []ProbeStatus
}

// Summary renders a textual run summary.
type Summary struct {
	data SummaryData
}

// NewSummary creates a new Summary component.
func NewSummary(data SummaryData) Summary {
	return Summary{data: data}
}

// View renders the summary.
func (s Summary) View() string {
	var lines []string
	if s.data.Total > 0 {
		line := fmt.Sprintf("Steps: %d/%d done", s.data.Done, s.data.Total)
		if s.data.Skipped > 0 {
			line += fmt.Sprintf(", %d skipped", s.data.Skipped)
		}
		lines = append(lines, line)
	}

	switch {
	case s.data.Cancelled:
		lines = append(lines, "Run cancelled")
	case s.data.State == "succeeded":
		lines = append(lines, fmt.Sprintf("Run succeeded (exit %d)", s.data.ExitCode))
	case s.data.State == "partially_failed":
		lines = append(lines, fmt.Sprintf("Run finished with skipped steps (exit %d)", s.data.ExitCode))
	case s.data.State == "aborted":
		lines = append(lines, fmt.Sprintf("Run aborted (exit %d)", s.data.ExitCode))
	case s.data.Finished && s.data.Total > 0:
		lines = append(lines, "Run finished")
	}

	if len(s.data.Probes) > 0 {
		lines = append(lines, "Endpoints:")
		for _, p := range s.data.Probes {
			status := "✗"
			if p.Working {
				status = "✓"
			}
			code := "---"
			if p.Code > 0 {
				code = fmt.Sprintf("%d", p.Code)
			}
			lines = append(lines, fmt.Sprintf("  %s %s %s %s", status, p.Name, code, p.Status))
		}
	}

	return strings.Join(lines, "\n")
}
