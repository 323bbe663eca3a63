package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/authboot/internal/domain/bootstrap"
	"github.com/alexisbeaulieu97/authboot/internal/steps"
	"github.com/alexisbeaulieu97/authboot/internal/tui/components"
)

func catalogMetadata() []bootstrap.StepMetadata {
	var metas []bootstrap.StepMetadata
	for _, s := range steps.Catalog(steps.DefaultOptions()) {
		metas = append(metas, s.Metadata())
	}
	return metas
}

func TestNewModelListsStepsAsPending(t *testing.T) {
	m := NewModel("https://auth.example.test", catalogMetadata(), false)

	require.Equal(t, 6, m.TotalSteps())
	require.Zero(t, m.DoneSteps())
	require.False(t, m.IsFinished())
	require.Equal(t, bootstrap.StepBootstrapAdmin, m.order[0])
	require.Equal(t, bootstrap.StepApplication, m.order[5])

	first := m.Step(bootstrap.StepBootstrapAdmin)
	require.Equal(t, components.StatusPending, first.Status)
	require.Equal(t, 1, first.Ordinal)
	require.Equal(t, "Bootstrap admin account", first.Name)
}

func TestModelInitReturnsTickCommand(t *testing.T) {
	m := NewModel("", nil, false)
	require.NotNil(t, m.Init())
}

func TestModelTracksStepLifecycle(t *testing.T) {
	m := NewModel("https://auth.example.test", catalogMetadata(), false)

	updated, _ := m.Update(StepStartMsg{ID: bootstrap.StepBootstrapAdmin, Time: time.Now()})
	m = updated.(Model)
	require.Equal(t, components.StatusRunning, m.Step(bootstrap.StepBootstrapAdmin).Status)
	require.Equal(t, bootstrap.StepBootstrapAdmin, m.current)

	updated, _ = m.Update(StepDoneMsg{ID: bootstrap.StepBootstrapAdmin, Outcome: string(bootstrap.OutcomeCompleted), Attempts: 1})
	m = updated.(Model)
	require.Equal(t, components.StatusCompleted, m.Step(bootstrap.StepBootstrapAdmin).Status)
	require.Equal(t, 1, m.DoneSteps())
	require.Empty(t, m.current)

	// A duplicate outcome does not double count.
	updated, _ = m.Update(StepDoneMsg{ID: bootstrap.StepBootstrapAdmin, Outcome: string(bootstrap.OutcomeCompleted)})
	m = updated.(Model)
	require.Equal(t, 1, m.DoneSteps())
}

func TestModelMarksFinished(t *testing.T) {
	m := NewModel("", catalogMetadata(), false)

	updated, cmd := m.Update(tea.QuitMsg{})
	require.Nil(t, cmd)
	m = updated.(Model)
	require.True(t, m.IsFinished())
}

func TestModelUnknownStepIsAppended(t *testing.T) {
	m := NewModel("", nil, false)
	updated, _ := m.Update(StepStartMsg{ID: "extra", Name: "Extra step"})
	m = updated.(Model)
	require.Equal(t, 1, m.TotalSteps())
	require.Equal(t, 1, m.Step("extra").Ordinal)
	require.Equal(t, "Extra step", m.Step("extra").Name)
}
