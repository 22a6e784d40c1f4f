package pipeline

import "github.com/rotisserie/eris"

// State is a step of the per-company state machine.
type State int

const (
	StateStart State = iota
	StateCacheCheck
	StateCacheHit
	StateDuplicateInBatch
	StateSearching
	StateFiltering
	StateRanking
	StateExtracting
	StateChanged
	StateNoChangeFallback
	StatePersisted
	StateFailed
)

var stateNames = [...]string{
	StateStart:            "start",
	StateCacheCheck:       "cache_check",
	StateCacheHit:         "cache_hit",
	StateDuplicateInBatch: "duplicate_in_batch",
	StateSearching:        "searching",
	StateFiltering:        "filtering",
	StateRanking:          "ranking",
	StateExtracting:       "extracting",
	StateChanged:          "changed",
	StateNoChangeFallback: "no_change_fallback",
	StatePersisted:        "persisted",
	StateFailed:           "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	switch s {
	case StateCacheHit, StateDuplicateInBatch, StatePersisted, StateFailed:
		return true
	}
	return false
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(b []byte) error {
	for i, n := range stateNames {
		if n == string(b) {
			*s = State(i)
			return nil
		}
	}
	return eris.Errorf("pipeline: unknown state %q", b)
}
