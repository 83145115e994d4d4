package engine

// State tracks where a save attempt is in its lifecycle. Failed is reachable
// from any non-idle state and always hands control back to Idle once the
// failure has been reported.
type State int

const (
	StateIdle State = iota
	StateCollecting
	StateEncoding
	StateWriting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollecting:
		return "collecting"
	case StateEncoding:
		return "encoding"
	case StateWriting:
		return "writing"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
