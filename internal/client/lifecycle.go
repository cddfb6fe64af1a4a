package client

import (
	"slices"
	"sync/atomic"
)

// State is a point in the transport lifecycle.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

// String returns the string representation of State
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Closed is terminal: nothing leaves it.
var transitions = map[State][]State{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateConnected, StateDisconnected},
	StateConnected:    {StateClosing},
	StateClosing:      {StateClosed},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to State) bool {
	return slices.Contains(transitions[from], to)
}

type lifecycle struct {
	v atomic.Int32
}

func (l *lifecycle) load() State {
	return State(l.v.Load())
}

// advance moves from -> to if the current state is from and the step is
// legal.
func (l *lifecycle) advance(from, to State) bool {
	if !CanTransition(from, to) {
		return false
	}
	return l.v.CompareAndSwap(int32(from), int32(to))
}
