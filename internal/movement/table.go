package movement

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrIncompleteTable = errors.New("movement table incomplete")

type Stats struct {
	MaxSpeed     float64
	Acceleration float64
	// RotationRate limits how fast over-cap momentum can be re-aimed.
	RotationRate float64
}

// Gravity is applied as Up while rising and Down otherwise; falling speed is
// capped at Terminal.
type Gravity struct {
	Up       float64
	Down     float64
	Terminal float64
}

type Tuning struct {
	Stats       Stats
	Gravity     Gravity
	JumpImpulse float64
}

// Table maps every leaf state to its tuning. A *Table is read-only once built
// and may be shared between characters.
type Table struct {
	rows [leafCount]Tuning
	set  [leafCount]bool
}

// NewTable builds a table and fails unless every leaf has a valid row.
func NewTable(rows map[Leaf]Tuning) (*Table, error) {
	t := &Table{}
	for l, row := range rows {
		if l >= leafCount {
			return nil, fmt.Errorf("movement table: %s is not a state", l)
		}
		t.rows[l] = row
		t.set[l] = true
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Table) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: table is nil", ErrIncompleteTable)
	}
	var missing []string
	for l := Leaf(0); l < leafCount; l++ {
		if !t.set[l] {
			missing = append(missing, l.String())
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteTable, strings.Join(missing, ", "))
	}
	for l := Leaf(0); l < leafCount; l++ {
		if err := t.rows[l].validate(); err != nil {
			return fmt.Errorf("movement table %s: %w", l, err)
		}
	}
	return nil
}

func (r Tuning) validate() error {
	finite := []struct {
		name string
		v    float64
	}{
		{"max_speed", r.Stats.MaxSpeed},
		{"acceleration", r.Stats.Acceleration},
		{"rotation_rate", r.Stats.RotationRate},
		{"gravity_up", r.Gravity.Up},
		{"gravity_down", r.Gravity.Down},
		{"jump_impulse", r.JumpImpulse},
	}
	for _, f := range finite {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return fmt.Errorf("%s must be a non-negative number, got %v", f.name, f.v)
		}
	}
	if math.IsNaN(r.Gravity.Terminal) || r.Gravity.Terminal < 0 {
		return fmt.Errorf("terminal must be non-negative, got %v", r.Gravity.Terminal)
	}
	return nil
}

// Row returns the tuning for l.
func (t *Table) Row(l Leaf) (Tuning, bool) {
	if t == nil || l >= leafCount || !t.set[l] {
		return Tuning{}, false
	}
	return t.rows[l], true
}

func (t *Table) Lookup(s State) Tuning {
	return t.rows[s.Leaf()]
}

func (t *Table) Stats(s State) Stats { return t.Lookup(s).Stats }

func (t *Table) Gravity(s State) Gravity { return t.Lookup(s).Gravity }

// Rows copies the table into a map, mostly for editing and re-validation.
func (t *Table) Rows() map[Leaf]Tuning {
	out := make(map[Leaf]Tuning, leafCount)
	for l := Leaf(0); l < leafCount; l++ {
		if t.set[l] {
			out[l] = t.rows[l]
		}
	}
	return out
}

func DefaultTable() *Table {
	inf := math.Inf(1)
	t, err := NewTable(map[Leaf]Tuning{
		LeafMoving: {
			Stats:   Stats{MaxSpeed: 10, Acceleration: 60, RotationRate: 10},
			Gravity: Gravity{Up: 20, Down: 20, Terminal: 50},
		},
		LeafSliding: {
			Stats:   Stats{MaxSpeed: 0, Acceleration: 0, RotationRate: 20},
			Gravity: Gravity{Up: 1000, Down: 1000, Terminal: inf},
		},
		LeafCrouched: {
			Stats:   Stats{MaxSpeed: 0, Acceleration: 30, RotationRate: 0},
			Gravity: Gravity{Up: 1000, Down: 1000, Terminal: inf},
		},
		LeafFalling: {
			Stats:   Stats{MaxSpeed: 10, Acceleration: 20, RotationRate: 0},
			Gravity: Gravity{Up: 20, Down: 30, Terminal: 50},
		},
		LeafJumpNormal: {
			Stats:       Stats{MaxSpeed: 10, Acceleration: 20, RotationRate: 0},
			Gravity:     Gravity{Up: 1, Down: 30, Terminal: 50},
			JumpImpulse: 5,
		},
		LeafJumpCrouch: {
			Stats:       Stats{MaxSpeed: 10, Acceleration: 15, RotationRate: 0},
			Gravity:     Gravity{Up: 1, Down: 30, Terminal: 50},
			JumpImpulse: 7,
		},
		LeafJumpDive: {
			Stats:       Stats{MaxSpeed: 10, Acceleration: 10, RotationRate: 0},
			Gravity:     Gravity{Up: 1, Down: 30, Terminal: 50},
			JumpImpulse: 7,
		},
		LeafGlide: {
			Stats:   Stats{MaxSpeed: 10, Acceleration: 10, RotationRate: 0},
			Gravity: Gravity{Up: 10, Down: 4, Terminal: 3},
		},
		LeafDive: {
			Stats:   Stats{MaxSpeed: 10, Acceleration: 5, RotationRate: 0},
			Gravity: Gravity{Up: 5, Down: 80, Terminal: 120},
		},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Params are the thresholds and timings shared by every state.
type Params struct {
	SlideEnterSpeed float64
	SlideExitSpeed  float64
	// ForceSlideMinSpeedSq is the horizontal speed squared a force-slide
	// surface needs before it takes over.
	ForceSlideMinSpeedSq float64
	CoyoteTime           float64
	VerticalDamping      float64
	JumpDuration         float64
	JumpLock             float64
	OverspeedMargin      float64
	MinInputSq           float64
	FacingMinSpeedSq     float64
}

func DefaultParams() Params {
	return Params{
		SlideEnterSpeed:      7.5,
		SlideExitSpeed:       7.5,
		ForceSlideMinSpeedSq: 0.001,
		CoyoteTime:           0.25,
		VerticalDamping:      10,
		JumpDuration:         0.2,
		JumpLock:             0.05,
		OverspeedMargin:      1.01,
		MinInputSq:           0.01,
		FacingMinSpeedSq:     1,
	}
}

func (p Params) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"slide_enter_speed", p.SlideEnterSpeed},
		{"slide_exit_speed", p.SlideExitSpeed},
		{"force_slide_min_speed_sq", p.ForceSlideMinSpeedSq},
		{"coyote_time", p.CoyoteTime},
		{"vertical_damping", p.VerticalDamping},
		{"jump_duration", p.JumpDuration},
		{"jump_lock", p.JumpLock},
		{"overspeed_margin", p.OverspeedMargin},
		{"min_input_sq", p.MinInputSq},
		{"facing_min_speed_sq", p.FacingMinSpeedSq},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return fmt.Errorf("movement params: %s must be a non-negative number, got %v", f.name, f.v)
		}
	}
	if p.JumpDuration == 0 {
		return fmt.Errorf("movement params: jump_duration must be positive")
	}
	return nil
}
