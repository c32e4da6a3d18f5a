// Package body tracks a capsule character's contact with the world: whether it
// stands on a floor, the last surface it touched, and whether that surface
// demands sliding.
package body

import (
	"fmt"

	"github.com/Versifine/stride/internal/physics"
	"github.com/Versifine/stride/internal/slide"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// DefaultMaxDotVariance is the smallest n·up a surface needs to count as
	// floor, about a 60 degree slope.
	DefaultMaxDotVariance = 0.49
	DefaultSnapDistance   = 0.5
)

type CharacterBody struct {
	Grounded       bool
	Up             mgl64.Vec3
	MaxDotVariance float64
	LastNormal     mgl64.Vec3
	ForceSlide     bool
}

func New() CharacterBody {
	return CharacterBody{
		Grounded:       true,
		Up:             mgl64.Vec3{0, 1, 0},
		MaxDotVariance: DefaultMaxDotVariance,
	}
}

// IsFloor reports whether a contact normal is walkable.
func (b *CharacterBody) IsFloor(n mgl64.Vec3) bool {
	return n.Dot(b.Up) > b.MaxDotVariance
}

// GroundSnap keeps a grounded character glued to floors that drop away by at
// most Distance in one tick.
type GroundSnap struct {
	Distance float64
}

// Kinematic is the transform and velocity a Mover integrates.
type Kinematic struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
	Velocity mgl64.Vec3
}

func NewKinematic(pos mgl64.Vec3) Kinematic {
	return Kinematic{Position: pos, Rotation: mgl64.QuatIdent()}
}

type Mover struct {
	Caster physics.Caster
	// Tags may be nil, in which case no surface forces a slide.
	Tags  physics.SurfaceTags
	Shape physics.Capsule
	// Self is excluded from every query.
	Self  physics.EntityID
	Slide slide.Config
	Snap  *GroundSnap
}

// Report is what one Update did, for callers that emit landing events or
// debug overlays.
type Report struct {
	Move    slide.Result
	Snap    slide.Result
	Snapped bool
}

// Update runs the movement pass and, when configured, the ground snap pass,
// writing the results back into b and k.
func (m *Mover) Update(b *CharacterBody, k *Kinematic, dt float64) (Report, error) {
	if m == nil {
		return Report{}, fmt.Errorf("mover is nil")
	}
	if m.Caster == nil {
		return Report{}, fmt.Errorf("caster is nil")
	}
	if b == nil || k == nil {
		return Report{}, fmt.Errorf("body state is nil")
	}

	b.ForceSlide = false
	if m.Snap == nil {
		b.Grounded = false
	}

	filter := physics.ExcludeEntities(m.Self)
	var rep Report

	rep.Move = slide.MoveAndSlide(m.Caster, m.Shape, k.Position, k.Rotation, k.Velocity, dt, m.Slide, filter, func(h slide.Hit) slide.HitResponse {
		if b.IsFloor(h.Normal) {
			b.Grounded = true
		}
		m.touch(b, h)
		return slide.Accept
	})
	k.Position = rep.Move.Position
	k.Velocity = rep.Move.ProjectedVelocity

	if m.Snap == nil || !b.Grounded {
		return rep, nil
	}

	floor := false
	down := b.Up.Mul(-m.Snap.Distance)
	snapCfg := slide.SnapConfig()
	snapCfg.SkinWidth = m.Slide.SkinWidth
	rep.Snap = slide.MoveAndSlide(m.Caster, m.Shape, k.Position, k.Rotation, down, 1, snapCfg, filter, func(h slide.Hit) slide.HitResponse {
		floor = b.IsFloor(h.Normal)
		m.touch(b, h)
		return slide.Accept
	})
	if floor {
		k.Position = rep.Snap.Position
		rep.Snapped = true
		return rep, nil
	}
	b.Grounded = false
	return rep, nil
}

func (m *Mover) touch(b *CharacterBody, h slide.Hit) {
	b.LastNormal = h.Normal
	if m.Tags != nil && m.Tags.ForcesSlide(h.Entity) {
		b.ForceSlide = true
	}
}
