package vehicles

import (
	"context"
	"log/slog"

	"github.com/looplab/fsm"
)

// Run states
const (
	StateInit              = "init"
	StateResolvingIDs      = "resolving_ids"
	StateFetchingReference = "fetching_reference"
	StateMergingReference  = "merging_reference"
	StateReady             = "ready"
	StateFailed            = "failed"
)

// Run events
const (
	eventAttach           = "attach"
	eventIDsResolved      = "ids_resolved"
	eventReferenceFetched = "reference_fetched"
	eventReferenceMerged  = "reference_merged"
	eventFail             = "fail"
)

// Status is the run-level outcome
type Status int

const (
	StatusOK Status = iota
	StatusFailed
)

func (s Status) String() string {
	if s == StatusFailed {
		return "FAILED"
	}
	return "OK"
}

// ExitCode maps the status to a process exit code
func (s Status) ExitCode() int {
	if s == StatusFailed {
		return 1
	}
	return 0
}

// newRunMachine builds the run state machine. FAILED is absorbing: no
// event leaves it.
func newRunMachine(logger *slog.Logger, onFailed func()) *fsm.FSM {
	events := fsm.Events{
		{Name: eventAttach, Src: []string{StateInit}, Dst: StateResolvingIDs},
		{Name: eventIDsResolved, Src: []string{StateResolvingIDs}, Dst: StateFetchingReference},
		{Name: eventReferenceFetched, Src: []string{StateFetchingReference}, Dst: StateMergingReference},
		{Name: eventReferenceMerged, Src: []string{StateMergingReference}, Dst: StateReady},
		{Name: eventFail, Src: []string{StateResolvingIDs, StateFetchingReference, StateMergingReference, StateReady}, Dst: StateFailed},
	}

	callbacks := fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			logger.Debug("run state changed", "from", e.Src, "to", e.Dst, "event", e.Event)
		},
		"enter_" + StateFailed: func(_ context.Context, _ *fsm.Event) {
			onFailed()
		},
	}

	return fsm.NewFSM(StateInit, events, callbacks)
}
