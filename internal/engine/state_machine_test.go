package engine

import "testing"

func TestStateMachineTransitions(t *testing.T) {
	sm := NewStateMachine()
	if sm.State() != StateIdle {
		t.Fatalf("expected %s, got %s", StateIdle, sm.State())
	}
	if sm.Apply(EventStart) != StateRunning {
		t.Fatalf("expected %s, got %s", StateRunning, sm.State())
	}
	if sm.Apply(EventTrade) != StateTrading {
		t.Fatalf("expected %s, got %s", StateTrading, sm.State())
	}
	if sm.Apply(EventResolve) != StateRunning {
		t.Fatalf("expected %s, got %s", StateRunning, sm.State())
	}
	if sm.Apply(EventSkip) != StateSkipping {
		t.Fatalf("expected %s, got %s", StateSkipping, sm.State())
	}
	if sm.Apply(EventResolve) != StateRunning {
		t.Fatalf("expected %s, got %s", StateRunning, sm.State())
	}
	if sm.Apply(EventStop) != StateStopped {
		t.Fatalf("expected %s, got %s", StateStopped, sm.State())
	}
}

func TestStateMachineStopFromAnyState(t *testing.T) {
	sm := NewStateMachine()
	sm.Apply(EventStart)
	sm.Apply(EventTrade)
	if sm.Apply(EventStop) != StateStopped {
		t.Fatalf("expected stop from trading state")
	}
}

func TestStateMachineInvalidTransition(t *testing.T) {
	sm := NewStateMachine()
	if sm.Apply(EventTrade) != StateIdle {
		t.Fatalf("invalid transition should not change state")
	}
}

func TestStateMachineSetState(t *testing.T) {
	sm := NewStateMachine()
	sm.SetState(StateRunning)
	if sm.State() != StateRunning {
		t.Fatalf("expected %s, got %s", StateRunning, sm.State())
	}
}
