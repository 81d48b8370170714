package harness

// State is the fixture lifecycle phase. A fixture moves Idle -> Starting ->
// Running -> Stopping -> Idle; failed startups land back in Idle.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}
