package engine

import "sync"

type StateMachine struct {
	mu    sync.Mutex
	state State
}

func NewStateMachine() *StateMachine {
	return &StateMachine{state: StateIdle}
}

func (s *StateMachine) Apply(event Event) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = nextState(s.state, event)
	return s.state
}

func (s *StateMachine) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *StateMachine) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func nextState(current State, event Event) State {
	if event == EventStop {
		return StateStopped
	}
	switch current {
	case StateIdle:
		if event == EventStart {
			return StateRunning
		}
	case StateRunning:
		if event == EventTrade {
			return StateTrading
		}
		if event == EventSkip {
			return StateSkipping
		}
	case StateTrading, StateSkipping:
		if event == EventResolve {
			return StateRunning
		}
	case StateStopped:
	}
	return current
}
