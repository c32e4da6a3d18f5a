package movement

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Input is one tick of player intent. Jump and Crouch are held flags; edges
// are derived by the caller from the previous tick.
type Input struct {
	Move   mgl64.Vec2
	Jump   bool
	Crouch bool
	Look   mgl64.Vec3
}

// Clamped limits Move to the unit circle and zeroes non-finite axes.
func (in Input) Clamped() Input {
	out := in
	for i := range out.Move {
		if math.IsNaN(out.Move[i]) || math.IsInf(out.Move[i], 0) {
			out.Move[i] = 0
		}
	}
	if l := out.Move.Len(); l > 1 {
		out.Move = out.Move.Mul(1 / l)
	}
	return out
}

// SyncGround moves the machine to the major state matching the body's floor
// contact.
func (m *Machine) SyncGround(bodyGrounded bool) error {
	switch {
	case m.IsGrounded() && !bodyGrounded:
		_, err := m.Transition(AirborneState(Falling))
		return err
	case !m.IsGrounded() && bodyGrounded:
		_, err := m.Transition(GroundedState(Moving))
		return err
	}
	return nil
}

// EvaluateSlide runs the grounded slide and crouch rules. Speed is the full
// velocity length.
func (m *Machine) EvaluateSlide(p Params, forceSlide bool, velocity mgl64.Vec3, crouch bool) error {
	if !m.IsGrounded() {
		return nil
	}
	if forceSlide {
		flatSq := velocity.X()*velocity.X() + velocity.Z()*velocity.Z()
		if flatSq > p.ForceSlideMinSpeedSq {
			_, err := m.Transition(GroundedState(Sliding))
			return err
		}
	}

	speed := velocity.Len()
	var err error
	switch m.State.Ground {
	case Moving:
		if !crouch {
			break
		}
		if speed > p.SlideEnterSpeed {
			_, err = m.Transition(GroundedState(Sliding))
		} else {
			_, err = m.Transition(GroundedState(Crouched))
		}
	case Crouched:
		if !crouch {
			_, err = m.Transition(GroundedState(Moving))
		} else if speed > p.SlideEnterSpeed {
			_, err = m.Transition(GroundedState(Sliding))
		}
	case Sliding:
		if speed < p.SlideExitSpeed || !crouch {
			_, err = m.Transition(GroundedState(Moving))
		}
	}
	return err
}

// UpdateJump counts down the jump ascent. An expired timer always ends the
// jump; releasing jump or descending ends it unless the state is locked.
func (m *Machine) UpdateJump(dt float64, jumpHeld bool, vy float64) error {
	if !m.State.IsJumping() {
		return nil
	}
	m.State.Jump.TimeLeft -= dt
	if m.State.Jump.TimeLeft <= 0 {
		m.Set(AirborneState(Falling))
		return nil
	}
	if !jumpHeld || vy < 0 {
		_, err := m.Transition(AirborneState(Falling))
		return err
	}
	return nil
}

// UpdateAirMode handles gliding and diving: a crouch press in the air dives,
// holding jump while falling glides, and letting go stops gliding.
func (m *Machine) UpdateAirMode(crouchPressed, jumpHeld bool, vy float64) error {
	if m.IsGrounded() {
		return nil
	}
	var err error
	switch m.State.Air {
	case Falling:
		if crouchPressed {
			_, err = m.Transition(AirborneState(Dive))
		} else if jumpHeld && vy < 0 {
			_, err = m.Transition(AirborneState(Glide))
		}
	case Jumping:
		if crouchPressed {
			_, err = m.Transition(AirborneState(Dive))
		}
	case Glide:
		if crouchPressed {
			_, err = m.Transition(AirborneState(Dive))
		} else if !jumpHeld {
			_, err = m.Transition(AirborneState(Falling))
		}
	}
	return err
}

// DampsVertical reports whether vertical velocity eases to zero in s.
func (s State) DampsVertical() bool {
	return s.IsGrounded() && (s.Ground == Moving || s.Ground == Crouched)
}
