package cable

import "testing"

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateConnecting, "CONNECTING"},
		{StateOpen, "OPEN"},
		{StateClosed, "CLOSED"},
		{State(77), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusUnsubscribed, "UNSUBSCRIBED"},
		{StatusSubscribing, "SUBSCRIBING"},
		{StatusSubscribed, "SUBSCRIBED"},
		{StatusRejected, "REJECTED"},
		{StatusDisconnected, "DISCONNECTED"},
		{Status(42), "UNKNOWN"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

// The zero values are the initial lifecycle states.
func TestStateZeroValues(t *testing.T) {
	var s State
	if s != StateConnecting {
		t.Errorf("zero State = %v, want %v", s, StateConnecting)
	}

	var st Status
	if st != StatusUnsubscribed {
		t.Errorf("zero Status = %v, want %v", st, StatusUnsubscribed)
	}
}
