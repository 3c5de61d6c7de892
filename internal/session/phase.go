package session

// Phase is a session's lifecycle state. Transitions are one-way:
// IDLE → SELECTING_PROFILE → RECORDING → STOPPING → FINALIZED, with ERRORED
// reachable from any non-terminal phase.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseSelectingProfile
	PhaseRecording
	PhaseStopping
	PhaseFinalized
	PhaseErrored
)

// String returns the lowercase phase name used in status files and logs.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSelectingProfile:
		return "selecting_profile"
	case PhaseRecording:
		return "recording"
	case PhaseStopping:
		return "stopping"
	case PhaseFinalized:
		return "finalized"
	case PhaseErrored:
		return "errored"
	default:
		return "unknown"
	}
}
