package reconcile

// State is the phase of the reconciler.
type State int32

const (
	StateIdle State = iota
	StateScanning
	StateRebuilding
	StateSwapping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScanning:
		return "scanning"
	case StateRebuilding:
		return "rebuilding"
	case StateSwapping:
		return "swapping"
	default:
		return "unknown"
	}
}
