package character

import (
	"fmt"

	"github.com/Versifine/stride/internal/movement"
	"github.com/go-gl/mathgl/mgl64"
)

// Snapshot is a read-only copy of what presentation layers need.
type Snapshot struct {
	Name        string
	Tick        uint64
	State       movement.State
	Position    mgl64.Vec3
	Velocity    mgl64.Vec3
	Yaw         float64
	Grounded    bool
	ForceSlide  bool
	LastNormal  mgl64.Vec3
	CoyoteTimer float64
	StuckTimer  float64
}

func (c *Character) Snapshot() Snapshot {
	return Snapshot{
		Name:        c.name,
		Tick:        c.tick,
		State:       c.Machine.State,
		Position:    c.Kinematic.Position,
		Velocity:    c.Kinematic.Velocity,
		Yaw:         c.Yaw,
		Grounded:    c.Body.Grounded,
		ForceSlide:  c.Body.ForceSlide,
		LastNormal:  c.Body.LastNormal,
		CoyoteTimer: c.Machine.CoyoteTimer,
		StuckTimer:  c.Machine.StuckTimer,
	}
}

// Speed is the horizontal speed.
func (s Snapshot) Speed() float64 {
	return mgl64.Vec2{s.Velocity.X(), s.Velocity.Z()}.Len()
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%s tick=%d state=%s pos=(%.2f, %.2f, %.2f) vel=(%.2f, %.2f, %.2f) grounded=%t",
		s.Name, s.Tick, s.State.Leaf(),
		s.Position.X(), s.Position.Y(), s.Position.Z(),
		s.Velocity.X(), s.Velocity.Y(), s.Velocity.Z(),
		s.Grounded)
}
