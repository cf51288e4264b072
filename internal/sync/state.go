package sync

// State is the orchestrator's position in a synchronization run. Runs
// advance strictly forward; Failed is terminal and reachable from any
// non-terminal state.
type State int

const (
	StateIdle State = iota
	StateTokenReady
	StateFetching
	StatePersistingActivities
	StatePersistingKudos
	StateWatermarkAdvanced
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:                 "idle",
	StateTokenReady:           "token_ready",
	StateFetching:             "fetching",
	StatePersistingActivities: "persisting_activities",
	StatePersistingKudos:      "persisting_kudos",
	StateWatermarkAdvanced:    "watermark_advanced",
	StateDone:                 "done",
	StateFailed:               "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether a run in this state is finished.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
