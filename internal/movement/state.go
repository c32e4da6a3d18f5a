// Package movement holds the locomotion state machine and the per-state
// tuning that drives horizontal steering, gravity and jumps.
package movement

import (
	"fmt"
	"strings"
)

type Major uint8

const (
	MajorGrounded Major = iota
	MajorAirborne
)

type GroundState uint8

const (
	Moving GroundState = iota
	Sliding
	Crouched
)

func (g GroundState) String() string {
	switch g {
	case Moving:
		return "moving"
	case Sliding:
		return "sliding"
	case Crouched:
		return "crouched"
	default:
		return fmt.Sprintf("ground(%d)", g)
	}
}

type AirState uint8

const (
	Falling AirState = iota
	Jumping
	Glide
	Dive
)

func (a AirState) String() string {
	switch a {
	case Falling:
		return "falling"
	case Jumping:
		return "jumping"
	case Glide:
		return "glide"
	case Dive:
		return "dive"
	default:
		return fmt.Sprintf("air(%d)", a)
	}
}

type JumpKind uint8

const (
	JumpNormal JumpKind = iota
	JumpCrouch
	JumpDive
)

func (k JumpKind) String() string {
	switch k {
	case JumpNormal:
		return "normal"
	case JumpCrouch:
		return "crouch"
	case JumpDive:
		return "dive"
	default:
		return fmt.Sprintf("jump(%d)", k)
	}
}

// JumpType is a jump variant and its remaining forced-ascent time in seconds.
type JumpType struct {
	Kind     JumpKind
	TimeLeft float64
}

func NewJump(kind JumpKind, duration float64) JumpType {
	return JumpType{Kind: kind, TimeLeft: duration}
}

// State is exactly one of Grounded(GroundState) or Airborne(AirState), with
// Jump only meaningful for Airborne(Jumping). Build it with the constructors
// so unused fields stay zero and == compares values.
type State struct {
	Major  Major
	Ground GroundState
	Air    AirState
	Jump   JumpType
}

func GroundedState(g GroundState) State {
	return State{Major: MajorGrounded, Ground: g}
}

// AirborneState builds a non-jumping airborne state. Use JumpState for
// Jumping.
func AirborneState(a AirState) State {
	if a == Jumping {
		return JumpState(NewJump(JumpNormal, 0))
	}
	return State{Major: MajorAirborne, Air: a}
}

func JumpState(j JumpType) State {
	return State{Major: MajorAirborne, Air: Jumping, Jump: j}
}

func (s State) IsGrounded() bool { return s.Major == MajorGrounded }

func (s State) IsJumping() bool { return s.Major == MajorAirborne && s.Air == Jumping }

// Is reports whether s and o are the same leaf, ignoring jump timers.
func (s State) Is(o State) bool { return s.Leaf() == o.Leaf() }

func (s State) Leaf() Leaf {
	if s.IsGrounded() {
		switch s.Ground {
		case Sliding:
			return LeafSliding
		case Crouched:
			return LeafCrouched
		default:
			return LeafMoving
		}
	}
	switch s.Air {
	case Jumping:
		switch s.Jump.Kind {
		case JumpCrouch:
			return LeafJumpCrouch
		case JumpDive:
			return LeafJumpDive
		default:
			return LeafJumpNormal
		}
	case Glide:
		return LeafGlide
	case Dive:
		return LeafDive
	default:
		return LeafFalling
	}
}

func (s State) String() string {
	if s.IsGrounded() {
		return "grounded/" + s.Ground.String()
	}
	if s.Air == Jumping {
		return fmt.Sprintf("airborne/jumping/%s(%.3f)", s.Jump.Kind, s.Jump.TimeLeft)
	}
	return "airborne/" + s.Air.String()
}

// Leaf names one row of the tuning table.
type Leaf uint8

const (
	LeafMoving Leaf = iota
	LeafSliding
	LeafCrouched
	LeafFalling
	LeafJumpNormal
	LeafJumpCrouch
	LeafJumpDive
	LeafGlide
	LeafDive

	leafCount
)

var leafNames = [leafCount]string{
	LeafMoving:     "moving",
	LeafSliding:    "sliding",
	LeafCrouched:   "crouched",
	LeafFalling:    "falling",
	LeafJumpNormal: "jump_normal",
	LeafJumpCrouch: "jump_crouch",
	LeafJumpDive:   "jump_dive",
	LeafGlide:      "glide",
	LeafDive:       "dive",
}

// Leaves lists every leaf in declaration order.
func Leaves() []Leaf {
	out := make([]Leaf, 0, leafCount)
	for l := Leaf(0); l < leafCount; l++ {
		out = append(out, l)
	}
	return out
}

func (l Leaf) String() string {
	if l < leafCount {
		return leafNames[l]
	}
	return fmt.Sprintf("leaf(%d)", l)
}

func ParseLeaf(name string) (Leaf, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for l, n := range leafNames {
		if n == key {
			return Leaf(l), nil
		}
	}
	return 0, fmt.Errorf("unknown movement state %q", name)
}
