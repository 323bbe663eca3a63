package components

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
)

func TestProgressView(t *testing.T) {
	t.Parallel()

	t.Run("renders with zero total", func(t *testing.T) {
		t.Parallel()
		require.Contains(t, NewProgress(0).View(0, ""), "0/0")
	})

	t.Run("renders the current step", func(t *testing.T) {
		t.Parallel()
		view := NewProgress(6).View(2, "Attach provider to outpost")
		require.Contains(t, view, "2/6")
		require.Contains(t, view, "Attach provider to outpost")
	})

	t.Run("bar takes up space", func(t *testing.T) {
		t.Parallel()
		view := NewProgress(6).View(3, "")
		require.Greater(t, len(strings.TrimSpace(view)), len("3/6"))
	})
}

func TestStepList(t *testing.T) {
	t.Parallel()

	order := []bootstrap.StepID{bootstrap.StepAuthenticate, bootstrap.StepBootstrapAdmin}
	states := map[bootstrap.StepID]StepState{
		bootstrap.StepBootstrapAdmin: {Status: StatusCompleted},
		bootstrap.StepAuthenticate:   {Status: StatusRunning},
	}
	list := NewStepList(order, states)
	entries := list.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, bootstrap.StepAuthenticate, entries[0].ID)
	require.Equal(t, StatusCompleted, entries[1].State.Status)

	entries[0].ID = "modified"
	require.Equal(t, bootstrap.StepAuthenticate, list.Entries()[0].ID)
}

func TestStatusForOutcome(t *testing.T) {
	t.Parallel()

	require.Equal(t, StatusCompleted, StatusForOutcome(string(bootstrap.OutcomeCompleted)))
	require.Equal(t, StatusSatisfied, StatusForOutcome(string(bootstrap.OutcomeAlreadySatisfied)))
	require.Equal(t, StatusSkipped, StatusForOutcome(string(bootstrap.OutcomeSkippedRecoverable)))
	require.Equal(t, StatusFailed, StatusForOutcome(string(bootstrap.OutcomeFailed)))
	require.Equal(t, StatusPending, StatusForOutcome("bogus"))

	require.True(t, StepState{Status: StatusNotRun}.Terminal())
	require.False(t, StepState{Status: StatusRetrying}.Terminal())
}

func TestSummaryView(t *testing.T) {
	t.Parallel()

	t.Run("renders empty summary", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, "", NewSummary(SummaryData{}).View())
	})

	t.Run("renders success", func(t *testing.T) {
		t.Parallel()
		view := NewSummary(SummaryData{Total: 6, Done: 6, Finished: true, State: "succeeded"}).View()
		require.Contains(t, view, "Steps: 6/6 done")
		require.Contains(t, view, "Run succeeded (exit 0)")
	})

	t.Run("renders abort", func(t *testing.T) {
		t.Parallel()
		view := NewSummary(SummaryData{Total: 6, Done: 2, Finished: true, State: "aborted", ExitCode: 1}).View()
		require.Contains(t, view, "Run aborted (exit 1)")
	})

	t.Run("cancelled wins over state", func(t *testing.T) {
		t.Parallel()
		view := NewSummary(SummaryData{Total: 6, Done: 3, Finished: true, Cancelled: true, State: "aborted"}).View()
		require.Contains(t, view, "Run cancelled")
		require.NotContains(t, view, "Run aborted")
	})

	t.Run("renders probes", func(t *testing.T) {
		t.Parallel()
		view := NewSummary(SummaryData{Probes: []ProbeStatus{
			{Name: "forward-auth", Status: "working", Code: 302, Working: true},
			{Name: "oauth2-userinfo", Status: "unexpected"},
		}}).View()
		require.Contains(t, view, "Endpoints:")
		require.Contains(t, view, "✓ forward-auth 302 working")
		require.Contains(t, view, "✗ oauth2-userinfo --- unexpected")
	})
}
