// SPDX-License-Identifier: MPL-2.0

package pipeline

// State is a pipeline stage.
type State int

const (
	StateIdle State = iota
	StateGuardCheck
	StateSyncing
	StateGenerating
	StateRouting
	StateCleaning
	StateDone
	// StateAborted is terminal and only reachable from StateGuardCheck.
	StateAborted
)

var stateNames = [...]string{
	StateIdle:       "IDLE",
	StateGuardCheck: "GUARD_CHECK",
	StateSyncing:    "SYNCING",
	StateGenerating: "GENERATING",
	StateRouting:    "ROUTING",
	StateCleaning:   "CLEANING",
	StateDone:       "DONE",
	StateAborted:    "ABORTED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "UNKNOWN"
	}
	return stateNames[s]
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}
