package movement

import (
	"errors"
	"fmt"
)

var (
	ErrStateLocked  = errors.New("movement state locked")
	ErrNoCoyoteTime = errors.New("no coyote time left")
	ErrCannotJump   = errors.New("cannot jump")
)

// TransitionError is returned for a request made while the state is locked.
type TransitionError struct {
	Attempted State
	Current   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition to %s rejected in %s: %v", e.Attempted, e.Current, ErrStateLocked)
}

func (e *TransitionError) Unwrap() error { return ErrStateLocked }

type Machine struct {
	State State
	// CoyoteTimer is the remaining late-jump grace in seconds.
	CoyoteTimer float64
	// StuckTimer vetoes Transition while positive.
	StuckTimer float64
}

func NewMachine() Machine {
	return Machine{State: GroundedState(Moving)}
}

func (m *Machine) IsGrounded() bool { return m.State.IsGrounded() }

// Transition commits next and returns the previous state, unless the machine
// is locked.
func (m *Machine) Transition(next State) (State, error) {
	if m.StuckTimer > 0 {
		return m.State, &TransitionError{Attempted: next, Current: m.State}
	}
	prev := m.State
	m.State = next
	return prev, nil
}

// Set overwrites the state regardless of the lock.
func (m *Machine) Set(next State) State {
	prev := m.State
	m.State = next
	return prev
}

// Lock keeps the current state for at least d seconds.
func (m *Machine) Lock(d float64) {
	if d > m.StuckTimer {
		m.StuckTimer = d
	}
}

func (m *Machine) Tick(dt, coyoteWindow float64) {
	m.CoyoteTimer = max(m.CoyoteTimer-dt, 0)
	m.StuckTimer = max(m.StuckTimer-dt, 0)
	if m.State.IsGrounded() {
		m.CoyoteTimer = coyoteWindow
	}
}

// Jump starts the jump the current state allows. On success coyote time is
// spent and the state is locked for p.JumpLock.
func (m *Machine) Jump(p Params) (JumpType, error) {
	var kind JumpKind
	switch {
	case m.State.IsGrounded() && m.State.Ground == Crouched:
		kind = JumpCrouch
	case m.State.IsGrounded():
		kind = JumpNormal
	case m.State.Air == Dive:
		kind = JumpDive
	case m.CoyoteTimer > 0:
		kind = JumpNormal
	default:
		return JumpType{}, ErrNoCoyoteTime
	}

	jump := NewJump(kind, p.JumpDuration)
	if _, err := m.Transition(JumpState(jump)); err != nil {
		return JumpType{}, fmt.Errorf("%w: %w", ErrCannotJump, err)
	}
	m.CoyoteTimer = 0
	m.Lock(p.JumpLock)
	return jump, nil
}
