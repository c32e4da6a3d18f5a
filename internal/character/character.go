// Package character assembles a capsule body, its movement state machine and
// tuning into one controllable entity and runs its per-tick pipeline.
package character

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/Versifine/stride/internal/body"
	"github.com/Versifine/stride/internal/event"
	"github.com/Versifine/stride/internal/movement"
	"github.com/Versifine/stride/internal/physics"
	"github.com/Versifine/stride/internal/slide"
	"github.com/go-gl/mathgl/mgl64"
)

type Options struct {
	Shape          physics.Capsule
	Up             mgl64.Vec3
	MaxDotVariance float64
	// Snap nil disables ground snapping.
	Snap   *body.GroundSnap
	Slide  slide.Config
	Params movement.Params
	Table  *movement.Table
}

func DefaultOptions() Options {
	return Options{
		Shape:          physics.CapsuleFromHeight(physics.DefaultCapsuleRadius, physics.DefaultCapsuleHeight),
		Up:             mgl64.Vec3{0, 1, 0},
		MaxDotVariance: body.DefaultMaxDotVariance,
		Snap:           &body.GroundSnap{Distance: body.DefaultSnapDistance},
		Slide:          slide.DefaultConfig(),
		Params:         movement.DefaultParams(),
		Table:          movement.DefaultTable(),
	}
}

func (o Options) Validate() error {
	var errs []error
	if !(o.Shape.Radius > 0) || o.Shape.HalfHeight < 0 {
		errs = append(errs, fmt.Errorf("invalid capsule %+v", o.Shape))
	}
	if !(o.Up.Len() > 0) {
		errs = append(errs, errors.New("up must be non-zero"))
	}
	if o.Snap != nil && !(o.Snap.Distance > 0) {
		errs = append(errs, fmt.Errorf("snap distance must be positive, got %v", o.Snap.Distance))
	}
	if err := o.Params.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := o.Table.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Env is what a character needs from the world it lives in.
type Env struct {
	Caster physics.Caster
	Tags   physics.SurfaceTags
	// Self is the id sweeps must ignore.
	Self   physics.EntityID
	Bus    *event.Bus
	Logger *slog.Logger
}

// Character is one controllable capsule. It is not safe for concurrent use.
type Character struct {
	name string

	Body      body.CharacterBody
	Machine   movement.Machine
	Kinematic body.Kinematic
	Yaw       float64
	Look      mgl64.Vec3

	mover  body.Mover
	params movement.Params
	table  *movement.Table
	prev   movement.Input
	tick   uint64
	bus    *event.Bus
	log    *slog.Logger
}

// New spawns a grounded, moving character at pos with zero velocity.
func New(name string, pos mgl64.Vec3, opts Options, env Env) (*Character, error) {
	if env.Caster == nil {
		return nil, errors.New("caster is nil")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("character %s: %w", name, err)
	}
	log := env.Logger
	if log == nil {
		log = slog.Default()
	}

	b := body.New()
	b.Up = opts.Up.Normalize()
	b.MaxDotVariance = opts.MaxDotVariance
	b.LastNormal = b.Up

	var snap *body.GroundSnap
	if opts.Snap != nil {
		s := *opts.Snap
		snap = &s
	}

	c := &Character{
		name:      name,
		Body:      b,
		Machine:   movement.NewMachine(),
		Kinematic: body.NewKinematic(pos),
		Look:      mgl64.Vec3{0, 0, 1},
		mover: body.Mover{
			Caster: env.Caster,
			Tags:   env.Tags,
			Shape:  opts.Shape,
			Self:   env.Self,
			Slide:  opts.Slide,
			Snap:   snap,
		},
		params: opts.Params,
		table:  opts.Table,
		bus:    env.Bus,
		log:    log.With("character", name),
	}
	c.Kinematic.Rotation = c.orientation(0)
	return c, nil
}

func (c *Character) Name() string { return c.name }

func (c *Character) Tick() uint64 { return c.tick }

// Tuning returns the tuning row for the current state.
func (c *Character) Tuning() movement.Tuning { return c.table.Lookup(c.Machine.State) }

// Retune swaps the tuning used from the next tick on.
func (c *Character) Retune(table *movement.Table, params movement.Params) error {
	if err := table.Validate(); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}
	c.table = table
	c.params = params
	return nil
}

// Teleport moves the character without sweeping and clears its velocity.
func (c *Character) Teleport(pos mgl64.Vec3) {
	c.Kinematic.Position = pos
	c.Kinematic.Velocity = mgl64.Vec3{}
}

// Report summarises one Step.
type Report struct {
	From, To movement.State
	Jumped   bool
	Landed   bool
	Body     body.Report
}

// Step advances the character by dt seconds with the given held input.
func (c *Character) Step(in movement.Input, dt float64) (Report, error) {
	if c == nil {
		return Report{}, errors.New("character is nil")
	}
	if !(dt > 0) || math.IsInf(dt, 0) {
		return Report{}, fmt.Errorf("invalid dt %v", dt)
	}

	in = in.Clamped()
	jumpPressed := in.Jump && !c.prev.Jump
	crouchPressed := in.Crouch && !c.prev.Crouch
	c.prev = in
	if in.Look.Len() > 0 {
		c.Look = in.Look
	}

	p := c.params
	rep := Report{From: c.Machine.State}
	wasGrounded := c.Body.Grounded
	vel := c.Kinematic.Velocity

	c.note("floor", c.Machine.SyncGround(c.Body.Grounded))
	if c.Machine.State.DampsVertical() {
		vel[1] = movement.DampVertical(vel[1], p.VerticalDamping, dt)
	}
	c.note("slide", c.Machine.EvaluateSlide(p, c.Body.ForceSlide, vel, in.Crouch))

	tuning := c.table.Lookup(c.Machine.State)
	vel[1] = movement.ApplyGravity(vel[1], tuning.Gravity, dt)
	vel = movement.Steer(vel, movement.WorldDirection(in.Move, c.Look), tuning.Stats, p, dt)

	if jumpPressed {
		jump, err := c.Machine.Jump(p)
		if err != nil {
			c.log.Debug("Jump rejected", "state", c.Machine.State.String(), "error", err)
		} else {
			c.Body.Grounded = false
			vel[1] = c.table.Lookup(c.Machine.State).JumpImpulse
			rep.Jumped = true
			c.publish(event.EventJump, event.JumpEvent{
				Character: c.name,
				Tick:      c.tick,
				Kind:      jump.Kind.String(),
				Impulse:   vel[1],
			})
		}
	}
	c.note("jump", c.Machine.UpdateJump(dt, in.Jump, vel[1]))
	c.note("air", c.Machine.UpdateAirMode(crouchPressed, in.Jump, vel[1]))

	if yaw, ok := movement.FacingYaw(vel, p.FacingMinSpeedSq); ok {
		c.Yaw = yaw
		c.Kinematic.Rotation = c.orientation(yaw)
	}

	impact := vel[1]
	c.Kinematic.Velocity = vel
	bodyRep, err := c.mover.Update(&c.Body, &c.Kinematic, dt)
	if err != nil {
		return rep, fmt.Errorf("character %s: %w", c.name, err)
	}
	rep.Body = bodyRep

	c.Machine.Tick(dt, p.CoyoteTime)
	rep.To = c.Machine.State

	if !wasGrounded && c.Body.Grounded {
		rep.Landed = true
		n := c.Body.LastNormal
		c.publish(event.EventLand, event.LandEvent{
			Character:   c.name,
			Tick:        c.tick,
			ImpactSpeed: -impact,
			Normal:      [3]float64{n[0], n[1], n[2]},
		})
	}
	if !rep.From.Is(rep.To) {
		c.log.Debug("State changed", "from", rep.From.Leaf().String(), "to", rep.To.Leaf().String(), "tick", c.tick)
		c.publish(event.EventStateChange, event.StateChangeEvent{
			Character: c.name,
			Tick:      c.tick,
			From:      rep.From.Leaf().String(),
			To:        rep.To.Leaf().String(),
		})
	}
	c.tick++
	return rep, nil
}

// orientation keeps the capsule axis on Up and turns it by yaw about Up.
func (c *Character) orientation(yaw float64) mgl64.Quat {
	base := mgl64.QuatBetweenVectors(mgl64.Vec3{0, 1, 0}, c.Body.Up)
	return base.Mul(mgl64.QuatRotate(yaw, mgl64.Vec3{0, 1, 0})).Normalize()
}

func (c *Character) note(stage string, err error) {
	if err != nil {
		c.log.Debug("Transition rejected", "stage", stage, "error", err)
	}
}

func (c *Character) publish(name string, evt any) {
	if c.bus != nil {
		c.bus.Publish(name, evt)
	}
}
