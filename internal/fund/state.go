package fund

import (
	"sync"
)

// State is a flow's position in its state machine.
type State string

const (
	StateIdle                 State = "IDLE"
	StateEncoding             State = "ENCODING"
	StateSubmitting           State = "SUBMITTING"
	StateAwaitingConfirmation State = "AWAITING_CONFIRMATION"
	StateBroadcast            State = "BROADCAST"
	StateFailed               State = "FAILED"
)

// TransitionFunc observes every state change.
type TransitionFunc func(from, to State)

// machine is a guarded state holder. Only one mutating call can own it at a time.
type machine struct {
	mu           sync.Mutex
	state        State
	lastErr      error
	onTransition TransitionFunc
}

func newMachine(onTransition TransitionFunc) *machine {
	return &machine{state: StateIdle, onTransition: onTransition}
}

// acquire moves from one of the ready states into next. It fails with ErrFlowBusy otherwise.
// A ready state other than Idle passes through Idle first.
func (m *machine) acquire(next State, ready ...State) error {
	m.mu.Lock()
	current := m.state
	ok := false
	for _, r := range ready {
		if current == r {
			ok = true
			break
		}
	}
	if !ok {
		m.mu.Unlock()
		return ErrFlowBusy
	}
	var steps [][2]State
	if current != StateIdle {
		steps = append(steps, [2]State{current, StateIdle})
		current = StateIdle
	}
	steps = append(steps, [2]State{current, next})
	m.state = next
	m.lastErr = nil
	m.mu.Unlock()

	for _, s := range steps {
		m.notify(s[0], s[1])
	}
	return nil
}

func (m *machine) move(to State) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.mu.Unlock()
	m.notify(from, to)
}

// fail records err and moves to state.
func (m *machine) fail(to State, err error) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.lastErr = err
	m.mu.Unlock()
	m.notify(from, to)
}

func (m *machine) current() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.lastErr
}

func (m *machine) notify(from, to State) {
	if m.onTransition != nil && from != to {
		m.onTransition(from, to)
	}
}
