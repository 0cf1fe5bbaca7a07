package fsid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hesiodfs/locker/pkg/locker"
)

func TestParseSnapshotsModePerTarget(t *testing.T) {
	inv, err := Parse([]string{"-u", "-f", "A", "-m", "-f", "B"})
	require.NoError(t, err)

	require.Len(t, inv.Steps, 2)
	assert.Equal(t, Step{Op: locker.OpUnmapUser, Kind: TargetFS, Token: "A"}, inv.Steps[0])
	assert.Equal(t, Step{Op: locker.OpMapUser, Kind: TargetFS, Token: "B"}, inv.Steps[1])
}

func TestParseDefaultsToMap(t *testing.T) {
	inv, err := Parse([]string{"-f", "games"})
	require.NoError(t, err)

	require.Len(t, inv.Steps, 1)
	assert.Equal(t, locker.OpMapUser, inv.Steps[0].Op)
}

func TestParseLaterModeOverridesEarlier(t *testing.T) {
	inv, err := Parse([]string{"-m", "-p", "-r", "-h", "fs.mit.edu"})
	require.NoError(t, err)

	require.Len(t, inv.Steps, 1)
	assert.Equal(t, locker.OpPurgeUser, inv.Steps[0].Op)
	assert.Equal(t, TargetHost, inv.Steps[0].Kind)
}

func TestParseAllIsBestEffort(t *testing.T) {
	inv, err := Parse([]string{"-u", "-a"})
	require.NoError(t, err)

	require.Len(t, inv.Steps, 1)
	assert.True(t, inv.Steps[0].BestEffort)
	assert.Equal(t, locker.OpUnmapUser, inv.Steps[0].Op)
}

func TestParseVerbosityFlags(t *testing.T) {
	inv, err := Parse([]string{"-q", "-v", "-c", "athena.mit.edu"})
	require.NoError(t, err)
	assert.True(t, inv.Quiet)
	assert.True(t, inv.Verbose)
}

func TestParseRejectsUnknownFlag(t *testing.T) {
	_, err := Parse([]string{"-x"})
	require.Error(t, err)
}

func TestParseRejectsMissingOperand(t *testing.T) {
	for _, flag := range []string{"-f", "-h", "-c"} {
		t.Run(flag, func(t *testing.T) {
			_, err := Parse([]string{flag})
			require.Error(t, err)
		})
	}
}
