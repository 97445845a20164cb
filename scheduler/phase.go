package scheduler

import "sync"

// Phase names the stage of the epoch loop the scheduler is in.
type Phase int

const (
	PhaseUnknown Phase = iota
	PhaseStarting
	PhaseTraining
	PhaseWaiting
	PhaseUpdating
	PhaseCommitting
)

func (p Phase) String() string {
	switch p {
	case PhaseUnknown:
		return "Unknown"
	case PhaseStarting:
		return "Starting"
	case PhaseTraining:
		return "Training"
	case PhaseWaiting:
		return "Waiting"
	case PhaseUpdating:
		return "Updating"
	case PhaseCommitting:
		return "Committing"
	default:
		return "Invalid"
	}
}

// PhaseTracker records where the scheduler is in its epoch loop so other
// components, the status endpoint in particular, can observe progress
// without touching the loop itself.
type PhaseTracker struct {
	mu sync.RWMutex

	phase  Phase
	block  int64
	epochs int64
}

func NewPhaseTracker() *PhaseTracker {
	return &PhaseTracker{phase: PhaseUnknown}
}

func (t *PhaseTracker) enter(phase Phase, block int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = phase
	t.block = block
}

func (t *PhaseTracker) epochFinished(block int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.phase = PhaseStarting
	t.block = block
	t.epochs++
}

// Current returns the phase and the block it was entered at.
func (t *PhaseTracker) Current() (Phase, int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phase, t.block
}

// EpochsCompleted counts fully finished epochs since startup.
func (t *PhaseTracker) EpochsCompleted() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.epochs
}

// Status reports the tracker state in plain values for the status endpoint.
func (t *PhaseTracker) Status() (phase string, block int64, epochs int64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phase.String(), t.block, t.epochs
}
