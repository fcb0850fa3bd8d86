package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateMachine_Transitions(t *testing.T) {
	sm := NewStateMachine()

	tests := []struct {
		from  SessionStatus
		event Event
		to    SessionStatus
		ok    bool
	}{
		{StatusLobby, EventStart, StatusInProgress, true},
		{StatusLobby, EventSetQuestion, StatusLobby, true},
		{StatusInProgress, EventWin, StatusEnded, true},
		{StatusInProgress, EventTimeout, StatusEnded, true},
		{StatusEnded, EventSetQuestion, StatusLobby, true},
		{StatusInProgress, EventSetQuestion, StatusInProgress, false},
		{StatusInProgress, EventStart, StatusInProgress, false},
		{StatusEnded, EventStart, StatusEnded, false},
		{StatusEnded, EventTimeout, StatusEnded, false},
		{StatusLobby, EventWin, StatusLobby, false},
	}

	for _, tt := range tests {
		to, ok := sm.Next(tt.from, tt.event)
		assert.Equal(t, tt.ok, ok, "%s:%s", tt.from, tt.event)
		assert.Equal(t, tt.to, to, "%s:%s", tt.from, tt.event)
		assert.Equal(t, tt.ok, sm.CanTransition(tt.from, tt.event))
	}
}

func TestStateMachine_ValidEvents(t *testing.T) {
	sm := NewStateMachine()
	assert.Equal(t, []Event{EventSetQuestion, EventStart}, sm.ValidEvents(StatusLobby))
	assert.Equal(t, []Event{EventTimeout, EventWin}, sm.ValidEvents(StatusInProgress))
	assert.Equal(t, []Event{EventSetQuestion}, sm.ValidEvents(StatusEnded))
}

func TestStateMachine_Apply(t *testing.T) {
	sm := NewStateMachine()
	s := NewSession("s1", "q")

	assert.Error(t, sm.apply(s, EventWin))
	assert.Equal(t, StatusLobby, s.Status)

	assert.NoError(t, sm.apply(s, EventStart))
	assert.Equal(t, StatusInProgress, s.Status)
}
