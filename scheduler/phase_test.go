package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "Unknown", PhaseUnknown.String())
	assert.Equal(t, "Training", PhaseTraining.String())
	assert.Equal(t, "Committing", PhaseCommitting.String())
	assert.Equal(t, "Invalid", Phase(99).String())
}

func TestPhaseTrackerFollowsEpoch(t *testing.T) {
	f := newFixture(t, baseConfig())
	tracker := f.scheduler.Phases()

	phase, _ := tracker.Current()
	assert.Equal(t, PhaseUnknown, phase)
	assert.Equal(t, int64(0), tracker.EpochsCompleted())

	require.NoError(t, f.scheduler.runEpoch(context.Background()))

	phase, block := tracker.Current()
	assert.Equal(t, PhaseStarting, phase)
	assert.Greater(t, block, int64(0))
	assert.Equal(t, int64(1), tracker.EpochsCompleted())

	name, _, epochs := tracker.Status()
	assert.Equal(t, "Starting", name)
	assert.Equal(t, int64(1), epochs)
}
