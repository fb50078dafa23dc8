package domain

import (
	"errors"
	"fmt"
)

// RoomStatus represents consultation room status. The set is closed:
// unknown values are rejected at parse time, not at comparison time.
type RoomStatus string

const (
	// Pending states: automatic timeout is possible.
	StatusCreated RoomStatus = "CREATED"
	StatusWaiting RoomStatus = "WAITING"

	StatusInProgress RoomStatus = "IN_PROGRESS"

	// Terminal states.
	StatusCompleted RoomStatus = "COMPLETED"
	StatusCancelled RoomStatus = "CANCELLED"
	StatusRejected  RoomStatus = "REJECTED"
	StatusTimedOut  RoomStatus = "TIMED_OUT"
	StatusNoShow    RoomStatus = "NO_SHOW"

	// QNA consultations.
	StatusPending  RoomStatus = "PENDING"
	StatusAnswered RoomStatus = "ANSWERED"
)

var allStatuses = map[RoomStatus]struct{}{
	StatusCreated:    {},
	StatusWaiting:    {},
	StatusInProgress: {},
	StatusCompleted:  {},
	StatusCancelled:  {},
	StatusRejected:   {},
	StatusTimedOut:   {},
	StatusNoShow:     {},
	StatusPending:    {},
	StatusAnswered:   {},
}

// ParseRoomStatus validates a raw status value.
func ParseRoomStatus(s string) (RoomStatus, error) {
	st := RoomStatus(s)
	if _, ok := allStatuses[st]; !ok {
		return "", fmt.Errorf("unknown room status %q", s)
	}
	return st, nil
}

// IsPending reports whether the room can still time out.
func (s RoomStatus) IsPending() bool {
	return s == StatusCreated || s == StatusWaiting
}

// IsTerminal reports whether no further transition is permitted.
func (s RoomStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRejected, StatusTimedOut, StatusNoShow, StatusAnswered:
		return true
	}
	return false
}

// Action is a lifecycle operation on a consultation room.
type Action string

const (
	ActionApprove Action = "approve"
	ActionStart   Action = "start" // same edge as approve
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
	ActionEnd     Action = "end"
	ActionTimeout Action = "timeout" // reconciler only
	ActionAnswer  Action = "answer"  // QNA only
)

// ErrInvalidTransition is returned when an action is attempted against a room
// that is not in one of the action's permitted pre-states. The room is left
// unchanged.
var ErrInvalidTransition = errors.New("invalid state transition")

// transition is one row of the lifecycle table: the action is permitted only
// from the listed pre-states and always lands in the single target state.
type transition struct {
	from []RoomStatus
	to   RoomStatus
}

var transitions = map[Action]transition{
	ActionApprove: {from: []RoomStatus{StatusCreated, StatusWaiting}, to: StatusInProgress},
	ActionStart:   {from: []RoomStatus{StatusCreated, StatusWaiting}, to: StatusInProgress},
	ActionReject:  {from: []RoomStatus{StatusCreated, StatusWaiting}, to: StatusRejected},
	ActionCancel:  {from: []RoomStatus{StatusCreated, StatusWaiting}, to: StatusCancelled},
	ActionEnd:     {from: []RoomStatus{StatusInProgress}, to: StatusCompleted},
	ActionTimeout: {from: []RoomStatus{StatusCreated, StatusWaiting}, to: StatusTimedOut},
	ActionAnswer:  {from: []RoomStatus{StatusCreated, StatusPending}, to: StatusAnswered},
}

// PreStates returns the permitted pre-states for an action.
func (a Action) PreStates() []RoomStatus {
	return transitions[a].from
}

// NextStatus resolves the target state for an action applied to the current
// state. Returns ErrInvalidTransition for any (state, action) pair not in the
// table.
func NextStatus(current RoomStatus, action Action) (RoomStatus, error) {
	t, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidTransition, action)
	}
	for _, from := range t.from {
		if from == current {
			return t.to, nil
		}
	}
	return "", fmt.Errorf("%w: cannot %s from %s", ErrInvalidTransition, action, current)
}

// ParseAction validates a raw action value.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := transitions[a]; !ok {
		return "", fmt.Errorf("unknown action %q", s)
	}
	return a, nil
}
