package exam

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// lifecycle events
const (
	eventStart    = "start"
	eventComplete = "complete"
)

var lifecycleEvents = fsm.Events{
	{Name: eventStart, Src: []string{string(StatusPending)}, Dst: string(StatusInProgress)},
	{Name: eventComplete, Src: []string{string(StatusInProgress)}, Dst: string(StatusCompleted)},
}

// eventFor maps a target status to the event reaching it.
var eventFor = map[Status]string{
	StatusInProgress: eventStart,
	StatusCompleted:  eventComplete,
}

// ErrInvalidTransition is returned when a session cannot move to the requested status.
type ErrInvalidTransition struct {
	From, To Status
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("cannot change session status from %q to %q", e.From, e.To)
}

// Transition checks that a session in status from may move to status to and returns the new status.
// Asking for the current status is a no-op.
func Transition(ctx context.Context, from, to Status) (Status, error) {
	if from == to {
		return from, nil
	}
	event, ok := eventFor[to]
	if !ok {
		return from, ErrInvalidTransition{From: from, To: to}
	}

	machine := fsm.NewFSM(string(from), lifecycleEvents, fsm.Callbacks{})
	if !machine.Can(event) {
		return from, ErrInvalidTransition{From: from, To: to}
	}
	if err := machine.Event(ctx, event); err != nil {
		return from, ErrInvalidTransition{From: from, To: to}
	}
	return Status(machine.Current()), nil
}
