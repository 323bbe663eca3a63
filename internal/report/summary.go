// Package report renders a finished run: the terminal summary, structured
// exports, the manual-completion playbook and the files a run leaves behind.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
)

// WriteSummary renders the ordered run summary. One-time secrets are
// revealed through the report's artifact set, so a second summary of the
// same report shows them redacted.
func WriteSummary(w io.Writer, report *bootstrap.RunReport) error {
	st := newStyles(w)
	var sections []string

	sections = append(sections, st.title.Render("authboot • "+report.Target))
	sections = append(sections, st.muted.Render(fmt.Sprintf("run %s via %s driver, target %s, %s", report.RunID, report.Driver, report.Reachability, report.Duration().Truncate(time.Millisecond))))

	sections = append(sections, st.section.Render("Steps"))
	for _, o := range report.OutcomesCopy() {
		sections = append(sections, outcomeLine(st, o))
	}

	if lines := artifactLines(st, report.Artifacts); len(lines) > 0 {
		sections = append(sections, st.section.Render("Artifacts"))
		sections = append(sections, lines...)
	}

	if v := report.Verification; v != nil {
		sections = append(sections, st.section.Render("Verification"))
		sections = append(sections, verificationLines(st, v)...)
	}

	if d := report.Diagnostic; d != nil {
		sections = append(sections, st.section.Render("Diagnostics"))
		where := d.Path
		if where == "" {
			where = "not written"
		}
		sections = append(sections, fmt.Sprintf("  %s snapshot at %s (%s)", d.Kind, d.StepID, where))
	}

	sections = append(sections, st.section.Render("Result"), verdict(st, report))

	_, err := io.WriteString(w, lipgloss.JoinVertical(lipgloss.Left, sections...)+"\n")
	return err
}

// WriteVerification renders only probe results, for the verify command.
func WriteVerification(w io.Writer, target string, summary *bootstrap.VerificationSummary) error {
	st := newStyles(w)
	lines := []string{st.title.Render("authboot verify • " + target)}
	lines = append(lines, verificationLines(st, summary)...)
	_, err := io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

func outcomeLine(st styles, o bootstrap.StepOutcome) string {
	icon, label := outcomeGlyph(st, o)
	line := fmt.Sprintf(" %s %d. %-30s %s", icon, o.Ordinal, o.Name, label)
	if o.Reason != "" {
		line += st.muted.Render(": " + o.Reason)
	}
	if o.Attempts > 1 {
		line += st.muted.Render(fmt.Sprintf(" [%d attempts]", o.Attempts))
	}
	if o.Duration > 0 {
		line += st.muted.Render(fmt.Sprintf(" (%s)", o.Duration.Truncate(10*time.Millisecond)))
	}
	return line
}

func outcomeGlyph(st styles, o bootstrap.StepOutcome) (string, string) {
	switch {
	case o.NotRun:
		return st.pending.Render("…"), st.pending.Render("not run")
	case o.Kind == bootstrap.OutcomeCompleted:
		return st.success.Render("✓"), st.success.Render("completed")
	case o.Kind == bootstrap.OutcomeAlreadySatisfied:
		return st.success.Render("="), st.success.Render("already satisfied")
	case o.Kind == bootstrap.OutcomeSkippedRecoverable:
		return st.skipped.Render("⊘"), st.skipped.Render("skipped")
	default:
		return st.failure.Render("✗"), st.failure.Render("failed")
	}
}

func artifactLines(st styles, set *bootstrap.ArtifactSet) []string {
	if set == nil {
		return nil
	}
	var lines []string
	for _, a := range set.All() {
		value, _ := set.Reveal(a.Key)
		rendered := value
		if a.OneTime && value != a.Redacted().Value {
			rendered = st.secret.Render(value) + st.muted.Render("  (shown once, store it now)")
		}
		lines = append(lines, fmt.Sprintf("  %-26s %s", a.Key, rendered))
	}
	return lines
}

// verificationLines renders one line per probe plus a tally.
func verificationLines(st styles, summary *bootstrap.VerificationSummary) []string {
	var lines []string
	for _, r := range summary.Results {
		var icon string
		switch r.Status {
		case bootstrap.ProbeWorking:
			icon = st.success.Render("✓")
		case bootstrap.ProbeNotConfigured:
			icon = st.skipped.Render("○")
		default:
			icon = st.failure.Render("!")
		}
		code := "---"
		if r.StatusCode > 0 {
			code = fmt.Sprintf("%d", r.StatusCode)
		}
		lines = append(lines, fmt.Sprintf(" %s %-18s %s %s %s", icon, r.Name, code, r.Status, st.muted.Render(r.Message)))
	}
	lines = append(lines, st.muted.Render(fmt.Sprintf("  %d working, %d not configured, %d unexpected", summary.Working, summary.NotConfigured, summary.Unexpected)))
	return lines
}

func verdict(st styles, report *bootstrap.RunReport) string {
	code := report.ExitCode()
	switch report.State {
	case bootstrap.StateSucceeded:
		return st.success.Render(fmt.Sprintf("SUCCEEDED (exit %d)", code))
	case bootstrap.StatePartiallyFailed:
		return st.skipped.Render(fmt.Sprintf("PARTIALLY FAILED (exit %d): see the playbook for the skipped steps", code))
	default:
		reason := report.AbortReason
		if reason == "" {
			reason = "run did not finish"
		}
		return st.failure.Render(fmt.Sprintf("ABORTED (exit %d): %s", code, reason))
	}
}
