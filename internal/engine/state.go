package engine

// State is a step of one device session.
type State uint8

const (
	StateUninitialized State = iota
	StateDeviceSelected
	StateContextActive
	StateModuleLoaded
	StateBuffersAllocated
	StateLaunched
	StateResultCopied
	StateTornDown
)

var stateNames = [...]string{
	StateUninitialized:    "uninitialized",
	StateDeviceSelected:   "device-selected",
	StateContextActive:    "context-active",
	StateModuleLoaded:     "module-loaded",
	StateBuffersAllocated: "buffers-allocated",
	StateLaunched:         "launched",
	StateResultCopied:     "result-copied",
	StateTornDown:         "torn-down",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(?)"
}
