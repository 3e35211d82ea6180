package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/Syntra/internal/core"
)

func TestStateMachineLegalPath(t *testing.T) {
	m := newStateMachine()

	for _, stage := range []Stage{StageExtracting, StageChunking, StageEmbedding, StageStoring, StageCompleted} {
		require.NoError(t, m.Advance(stage))
		assert.Equal(t, stage, m.Stage())
	}
}

func TestStateMachineRejectsSkippedStage(t *testing.T) {
	m := newStateMachine()

	assert.Error(t, m.Advance(StageEmbedding))
	assert.Equal(t, StageCreated, m.Stage())
}

func TestStateMachineRejectsBackwardTransition(t *testing.T) {
	m := newStateMachine()
	require.NoError(t, m.Advance(StageExtracting))
	require.NoError(t, m.Advance(StageChunking))

	assert.Error(t, m.Advance(StageExtracting))
	assert.Equal(t, StageChunking, m.Stage())
}

func TestStateMachineFailFromAnyNonTerminalStage(t *testing.T) {
	m := newStateMachine()
	require.NoError(t, m.Advance(StageExtracting))
	require.NoError(t, m.Advance(StageChunking))

	require.NoError(t, m.Fail(core.FailureNoContent))
	assert.Equal(t, StageFailed, m.Stage())
	assert.Equal(t, core.FailureNoContent, m.Reason())

	// Terminal states are final.
	assert.Error(t, m.Fail(core.FailureStorage))
	assert.Error(t, m.Advance(StageEmbedding))
	assert.Equal(t, core.FailureNoContent, m.Reason())
}

func TestStateMachineCompletedIsTerminal(t *testing.T) {
	m := newStateMachine()
	for _, stage := range []Stage{StageExtracting, StageChunking, StageEmbedding, StageStoring, StageCompleted} {
		require.NoError(t, m.Advance(stage))
	}

	assert.Error(t, m.Fail(core.FailureTimeout))
	assert.Equal(t, StageCompleted, m.Stage())
}
