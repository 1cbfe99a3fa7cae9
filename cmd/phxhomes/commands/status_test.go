package commands

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bananahana720/PHX-houses-Dec-2025-sub012/pkg/state"
)

func TestWriteStatusTable_ShowsNextPhaseAndLock(t *testing.T) {
	color.NoColor = true

	now := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)

	fresh := state.NewWorkItem("100 E TEST AVE PHOENIX AZ 85004", now)

	done := state.NewWorkItem("200 W DEMO ST PHOENIX AZ 85007", now)
	for _, phase := range state.AllPhases() {
		done.PhaseStatus[phase] = state.StatusComplete
	}

	locked := state.NewWorkItem("300 N THIRD RD PHOENIX AZ 85008", now)
	locked.Lock = &state.Lock{Owner: "worker-1", AcquiredAt: now}
	locked.PhaseStatus[state.PhaseCounty] = state.StatusFailed
	locked.RetryCount[state.PhaseCounty] = 2

	var buf bytes.Buffer

	writeStatusTable(&buf, []*state.WorkItem{fresh, done, locked})

	out := buf.String()
	assert.Contains(t, out, "P0_county")
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "worker-1")
	assert.Contains(t, out, "2026-08-24 09:30")
}

func TestResolveSkips_RejectsUnknownPhase(t *testing.T) {
	t.Parallel()

	rc := &RunCommand{skipPhases: []string{"P9_warp"}}

	_, err := rc.resolveSkips(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "P9_warp")
}

func TestResolveSkips_AddsUnwiredCollaboratorPhases(t *testing.T) {
	t.Parallel()

	rc := &RunCommand{skipPhases: []string{"P2A_exterior"}}

	skips, err := rc.resolveSkips(slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.ElementsMatch(t, []state.PhaseID{
		state.PhaseExterior, state.PhaseMap, state.PhaseInterior,
	}, skips)
}

func TestNewRunCommand_ResumeFlagDefaultsOn(t *testing.T) {
	t.Parallel()

	cmd := NewRunCommand()

	resume := cmd.Flags().Lookup("resume")
	require.NotNil(t, resume)
	assert.Equal(t, "true", resume.DefValue)

	fresh := cmd.Flags().Lookup("fresh")
	require.NotNil(t, fresh)
	assert.Equal(t, "false", fresh.DefValue)
}
