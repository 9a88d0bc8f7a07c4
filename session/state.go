package session

import "fmt"

// State is a session's position in its lifecycle. States only move forward.
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateFinalizing
	StateTranscribing
	StateSummarizing
	StateClosed
)

var stateNames = [...]string{
	StateIdle:         "idle",
	StateCapturing:    "capturing",
	StateFinalizing:   "finalizing",
	StateTranscribing: "transcribing",
	StateSummarizing:  "summarizing",
	StateClosed:       "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int32(s))
	}
	return stateNames[s]
}

// MarshalText renders the state name in JSON listings.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

var transitions = map[State][]State{
	StateIdle:         {StateCapturing, StateClosed},
	StateCapturing:    {StateFinalizing, StateClosed},
	StateFinalizing:   {StateTranscribing, StateClosed},
	StateTranscribing: {StateSummarizing, StateClosed},
	StateSummarizing:  {StateClosed},
}

// CanTransition reports whether to is a legal successor of s.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Busy reports whether the session is past capture and working on its result.
func (s State) Busy() bool {
	return s == StateFinalizing || s == StateTranscribing || s == StateSummarizing
}
