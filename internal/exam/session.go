package exam

import "fmt"

// State is a generation session's lifecycle position.
type State string

const (
	StateBuilding           State = "building"
	StateCalling            State = "calling"
	StateStreaming          State = "streaming"
	StateAwaitingSingleShot State = "awaiting_single_shot"
	StateCompleted          State = "completed"
	StateFailed             State = "failed"
	StateCancelled          State = "cancelled"
)

// transitions lists the legal next states. Completed, Failed and Cancelled
// are terminal and have no entry.
var transitions = map[State][]State{
	StateBuilding:           {StateCalling, StateCancelled},
	StateCalling:            {StateStreaming, StateAwaitingSingleShot, StateFailed, StateCancelled},
	StateStreaming:          {StateCompleted, StateFailed, StateCancelled},
	StateAwaitingSingleShot: {StateCompleted, StateFailed, StateCancelled},
}

// Session is the run-time state of one generation. A session is owned by a
// single goroutine; it exists to make illegal lifecycle jumps loud instead
// of silent.
type Session struct {
	state State
}

// NewSession starts in Building.
func NewSession() *Session {
	return &Session{state: StateBuilding}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Terminal reports whether the session reached a terminal state.
func (s *Session) Terminal() bool {
	switch s.state {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// To moves the session to next, or reports the transition as illegal.
func (s *Session) To(next State) error {
	for _, allowed := range transitions[s.state] {
		if next == allowed {
			s.state = next
			return nil
		}
	}
	return fmt.Errorf("illegal session transition %s -> %s", s.state, next)
}
