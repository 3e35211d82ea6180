package ingestion

import (
	"fmt"
	"sync"

	"github.com/markdave123-py/Syntra/internal/core"
)

// Stage is one step of a single source's ingestion run.
type Stage string

const (
	StageCreated    Stage = "created"
	StageExtracting Stage = "extracting"
	StageChunking   Stage = "chunking"
	StageEmbedding  Stage = "embedding"
	StageStoring    Stage = "storing"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// next maps each stage to the only stage it may advance to. Transitions are
// one-directional: a failed run is resubmitted as a new ingestion, never
// resumed mid-pipeline.
var next = map[Stage]Stage{
	StageCreated:    StageExtracting,
	StageExtracting: StageChunking,
	StageChunking:   StageEmbedding,
	StageEmbedding:  StageStoring,
	StageStoring:    StageCompleted,
}

// stateMachine is the single authority over one run's stage. Out-of-order
// transition attempts (a stale completion arriving after a recorded
// failure, a skipped stage) are rejected instead of overwriting state.
type stateMachine struct {
	mu     sync.Mutex
	stage  Stage
	reason core.FailureReason
}

func newStateMachine() *stateMachine {
	return &stateMachine{stage: StageCreated}
}

func (m *stateMachine) Stage() Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stage
}

// Advance moves to the requested stage if and only if it is the legal
// successor of the current one.
func (m *stateMachine) Advance(to Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if next[m.stage] != to {
		return fmt.Errorf("illegal transition %s -> %s", m.stage, to)
	}
	m.stage = to
	return nil
}

// Fail moves to the failed state from any non-terminal stage, recording the
// reason. Failing twice, or failing after completion, is rejected.
func (m *stateMachine) Fail(reason core.FailureReason) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stage == StageCompleted || m.stage == StageFailed {
		return fmt.Errorf("illegal transition %s -> %s", m.stage, StageFailed)
	}
	m.stage = StageFailed
	m.reason = reason
	return nil
}

func (m *stateMachine) Reason() core.FailureReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}
