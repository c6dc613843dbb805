package device

import "fmt"

// Mode is the controller operating mode.
type Mode int

const (
	ModeStandby Mode = iota
	ModeAuto
	ModeTimer
	modeCount
)

var modeLabels = [...]string{
	ModeStandby: "Standby",
	ModeAuto:    "Auto",
	ModeTimer:   "Timer",
}

// State is the burner state machine position.
type State int

const (
	StateIdle State = iota
	StateFanCleaning
	StateCleaner
	StateWait
	StateLoading
	StateHeating
	StateIgnition1
	StateIgnition2
	StateUnfolding
	StateBurning
	StateExtinction
	stateCount
)

var stateLabels = [...]string{
	StateIdle:        "Idle",
	StateFanCleaning: "Fan Cleaning",
	StateCleaner:     "Cleaner",
	StateWait:        "Wait",
	StateLoading:     "Loading",
	StateHeating:     "Heating",
	StateIgnition1:   "Ignition 1",
	StateIgnition2:   "Ignition 2",
	StateUnfolding:   "Unfolding",
	StateBurning:     "Burning",
	StateExtinction:  "Extinction",
}

// Status is the heating priority setting reported by the controller.
type Status int

const (
	StatusCHPriority Status = iota
	StatusDHWPriority
	StatusParallelPumps
	StatusSummerMode
	statusCount
)

var statusLabels = [...]string{
	StatusCHPriority:    "CH Priority",
	StatusDHWPriority:   "DHW Priority",
	StatusParallelPumps: "Parallel Pumps",
	StatusSummerMode:    "Summer Mode",
}

// Every code must have a label: these fail to compile when a table and its
// code list disagree in length.
var (
	_ = [1]struct{}{}[len(modeLabels)-int(modeCount)]
	_ = [1]struct{}{}[len(stateLabels)-int(stateCount)]
	_ = [1]struct{}{}[len(statusLabels)-int(statusCount)]
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m >= 0 && m < modeCount }

func (m Mode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("Mode(%d)", int(m))
	}
	return modeLabels[m]
}

// Valid reports whether s is a known burner state.
func (s State) Valid() bool { return s >= 0 && s < stateCount }

func (s State) String() string {
	if !s.Valid() {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateLabels[s]
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return s >= 0 && s < statusCount }

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusLabels[s]
}
