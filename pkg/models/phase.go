package models

// Phase is a named stage in the session state machine.
type Phase string

const (
	PhaseInitializing Phase = "initializing"
	PhaseNormalizing  Phase = "normalizing"
	PhaseIdentifying  Phase = "identifying"
	PhaseCollecting   Phase = "collecting"
	PhaseValidating   Phase = "validating"
	PhaseRecursing    Phase = "recursing"
	PhaseSynthesizing Phase = "synthesizing"
	PhaseCompleted    Phase = "completed"
	PhaseFailed       Phase = "failed"
	PhaseCancelled    Phase = "cancelled"
)

// Valid returns true if the phase is a known value.
func (p Phase) Valid() bool {
	switch p {
	case PhaseInitializing, PhaseNormalizing, PhaseIdentifying, PhaseCollecting,
		PhaseValidating, PhaseRecursing, PhaseSynthesizing,
		PhaseCompleted, PhaseFailed, PhaseCancelled:
		return true
	default:
		return false
	}
}

// Terminal returns true if the session can make no further progress.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseFailed, PhaseCancelled:
		return true
	default:
		return false
	}
}
