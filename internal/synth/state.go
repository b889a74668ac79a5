package synth

import "fmt"

// StateKind is the phase of a synthesis run.
type StateKind int

const (
	// StateIdle indicates nothing has been synthesized yet.
	StateIdle StateKind = iota
	// StateRootSpeaking indicates the root post is being synthesized.
	StateRootSpeaking
	// StateCommentSpeaking indicates a comment is being synthesized.
	StateCommentSpeaking
	// StateFaulted indicates the run stopped at a node and can be resumed.
	StateFaulted
	// StateDone indicates every node has been processed.
	StateDone
)

// String returns the string representation of the state kind.
func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateRootSpeaking:
		return "root-speaking"
	case StateCommentSpeaking:
		return "comment-speaking"
	case StateFaulted:
		return "faulted"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// State is a state kind plus the node index it refers to, where relevant.
type State struct {
	Kind  StateKind `json:"kind"`
	Index int       `json:"index"`
}

func (s State) String() string {
	switch s.Kind {
	case StateCommentSpeaking, StateFaulted:
		return fmt.Sprintf("%s(%d)", s.Kind, s.Index)
	default:
		return s.Kind.String()
	}
}

var transitions = map[StateKind][]StateKind{
	StateIdle:            {StateRootSpeaking, StateCommentSpeaking, StateDone, StateFaulted},
	StateRootSpeaking:    {StateCommentSpeaking, StateFaulted, StateDone},
	StateCommentSpeaking: {StateCommentSpeaking, StateFaulted, StateDone},
	StateFaulted:         {StateRootSpeaking, StateCommentSpeaking, StateDone},
	StateDone:            {},
}

func canTransition(from, to StateKind) bool {
	for _, k := range transitions[from] {
		if k == to {
			return true
		}
	}
	return false
}

func speaking(i int) State {
	if i == 0 {
		return State{Kind: StateRootSpeaking}
	}
	return State{Kind: StateCommentSpeaking, Index: i}
}
