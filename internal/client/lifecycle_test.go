package client

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateDisconnected, StateConnecting, true},
		{StateConnecting, StateConnected, true},
		{StateConnecting, StateDisconnected, true},
		{StateConnected, StateClosing, true},
		{StateClosing, StateClosed, true},

		{StateDisconnected, StateConnected, false},
		{StateConnected, StateClosed, false},
		{StateConnected, StateDisconnected, false},
		{StateClosing, StateConnected, false},
		{StateClosed, StateDisconnected, false},
		{StateClosed, StateConnecting, false},
		{StateClosed, StateClosed, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%v, %v) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestLifecycle_advance(t *testing.T) {
	var l lifecycle
	if got := l.load(); got != StateDisconnected {
		t.Fatalf("zero lifecycle = %v, want %v", got, StateDisconnected)
	}

	if l.advance(StateConnected, StateClosing) {
		t.Error("advance from a state we are not in must fail")
	}
	if !l.advance(StateDisconnected, StateConnecting) {
		t.Error("Disconnected -> Connecting must succeed")
	}
	if l.advance(StateConnecting, StateClosed) {
		t.Error("illegal step must fail")
	}
	if got := l.load(); got != StateConnecting {
		t.Errorf("state = %v, want %v", got, StateConnecting)
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{StateClosing, "closing"},
		{StateClosed, "closed"},
		{State(42), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State.String() = %v, want %v", got, tt.want)
		}
	}
}
