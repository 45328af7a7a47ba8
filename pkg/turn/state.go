package turn

// State is a session's position in the interview turn cycle.
type State int

const (
	StateInit State = iota
	StateListening
	StateThinking
	StateSpeaking
	StateEnded
)

// String returns the string representation of a State
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateListening:
		return "LISTENING"
	case StateThinking:
		return "THINKING"
	case StateSpeaking:
		return "SPEAKING"
	case StateEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether no transition can leave s.
func (s State) Terminal() bool { return s == StateEnded }

// InvalidTransitionError represents an invalid state transition attempt
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "invalid state transition from " + e.From.String() + " to " + e.To.String()
}
