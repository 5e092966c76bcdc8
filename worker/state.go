package worker

// State is a controller lifecycle state.
type State int32

const (
	StateParsed State = iota
	StateInstalling
	// StateInstalled is the waiting state.
	StateInstalled
	StateActivating
	StateActivated
	// StateRedundant is terminal: install failed or a newer version took over.
	StateRedundant
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	default:
		return "unknown"
	}
}

// Source tells where a fetch response came from.
type Source string

const (
	SourceNetwork  Source = "network"
	SourceCache    Source = "cache"
	SourceFallback Source = "fallback"
)
