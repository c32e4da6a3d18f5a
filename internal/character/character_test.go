package character

import (
	"math"
	"sync"
	"testing"

	"github.com/Versifine/stride/internal/event"
	"github.com/Versifine/stride/internal/logger"
	"github.com/Versifine/stride/internal/movement"
	"github.com/Versifine/stride/internal/physics"
	"github.com/Versifine/stride/internal/slide"
	"github.com/go-gl/mathgl/mgl64"
)

const dt = 1.0 / 60

var restY = 0.5 + slide.DefaultSkinWidth

func approxEqual(t *testing.T, got, want, tol float64, field string) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Fatalf("%s = %.8f, want %.8f (tol=%.8f)", field, got, want, tol)
	}
}

func flatWorld() *physics.Space {
	space := physics.NewSpace()
	space.AddPlane(mgl64.Vec3{}, mgl64.Vec3{0, 1, 0})
	return space
}

func spawn(t *testing.T, space *physics.Space, pos mgl64.Vec3, bus *event.Bus) *Character {
	t.Helper()
	c, err := New("p1", pos, DefaultOptions(), Env{
		Caster: space,
		Tags:   space,
		Self:   space.Reserve(),
		Bus:    bus,
		Logger: logger.Discard(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

type recorder struct {
	mu     sync.Mutex
	events map[string][]any
}

func record(bus *event.Bus, names ...string) *recorder {
	r := &recorder{events: make(map[string][]any)}
	for _, name := range names {
		name := name
		bus.Subscribe(name, func(evt any) {
			r.mu.Lock()
			r.events[name] = append(r.events[name], evt)
			r.mu.Unlock()
		})
	}
	return r
}

func (r *recorder) get(name string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.events[name]...)
}

func TestRestingCharacterStaysPut(t *testing.T) {
	c := spawn(t, flatWorld(), mgl64.Vec3{0, restY, 0}, nil)

	for i := 0; i < 120; i++ {
		if _, err := c.Step(movement.Input{}, dt); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
		v := c.Kinematic.Velocity
		if math.Abs(v.Y()) > 1e-9 {
			t.Fatalf("tick %d: velocity.y = %.8f, want 0", i, v.Y())
		}
		if v.X() != 0 || v.Z() != 0 {
			t.Fatalf("tick %d: horizontal velocity = (%v, %v), want 0", i, v.X(), v.Z())
		}
	}
	if c.Machine.State != movement.GroundedState(movement.Moving) {
		t.Fatalf("state = %s, want grounded/moving", c.Machine.State)
	}
	if !c.Body.Grounded {
		t.Fatalf("Grounded = false, want true")
	}
	approxEqual(t, c.Kinematic.Position.Y(), restY, 1e-6, "position.y")
}

func TestCrouchAtSpeedStartsSlide(t *testing.T) {
	c := spawn(t, flatWorld(), mgl64.Vec3{0, restY, 0}, nil)
	c.Kinematic.Velocity = mgl64.Vec3{8, 0, 0}

	rep, err := c.Step(movement.Input{Crouch: true}, dt)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if rep.To != movement.GroundedState(movement.Sliding) {
		t.Fatalf("state = %s, want grounded/sliding", rep.To)
	}
	stats := c.Tuning().Stats
	if stats.MaxSpeed != 0 || stats.Acceleration != 0 {
		t.Fatalf("stats = %+v, want zero max speed and acceleration", stats)
	}
	approxEqual(t, c.Kinematic.Velocity.X(), 8, 1e-9, "velocity.x")
	approxEqual(t, c.Kinematic.Velocity.Y(), 0, 1e-9, "velocity.y")
}

func TestJumpFromGround(t *testing.T) {
	bus := event.NewBus()
	rec := record(bus, event.EventJump, event.EventStateChange)
	c := spawn(t, flatWorld(), mgl64.Vec3{0, restY, 0}, bus)

	rep, err := c.Step(movement.Input{Jump: true}, dt)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if !rep.Jumped {
		t.Fatalf("Jumped = false, want true")
	}
	st := c.Machine.State
	if !st.IsJumping() || st.Jump.Kind != movement.JumpNormal {
		t.Fatalf("state = %s, want normal jump", st)
	}
	if st.Jump.TimeLeft <= 0 || st.Jump.TimeLeft > 0.2 {
		t.Fatalf("TimeLeft = %v, want within (0, 0.2]", st.Jump.TimeLeft)
	}
	approxEqual(t, c.Kinematic.Velocity.Y(), 5, 1e-9, "velocity.y")
	if c.Body.Grounded {
		t.Fatalf("Grounded = true, want false after jump")
	}

	bus.Wait()
	jumps := rec.get(event.EventJump)
	if len(jumps) != 1 {
		t.Fatalf("jump events = %d, want 1", len(jumps))
	}
	if evt := jumps[0].(event.JumpEvent); evt.Kind != "normal" || evt.Impulse != 5 || evt.Character != "p1" {
		t.Fatalf("jump event = %+v", evt)
	}
	changes := rec.get(event.EventStateChange)
	if len(changes) != 1 || changes[0].(event.StateChangeEvent).To != "jump_normal" {
		t.Fatalf("state events = %+v, want one change to jump_normal", changes)
	}
}

func TestHeldJumpDoesNotRepeat(t *testing.T) {
	c := spawn(t, flatWorld(), mgl64.Vec3{0, restY, 0}, nil)
	jumps := 0
	for i := 0; i < 10; i++ {
		rep, err := c.Step(movement.Input{Jump: true}, dt)
		if err != nil {
			t.Fatalf("Step() error = %v", err)
		}
		if rep.Jumped {
			jumps++
		}
	}
	if jumps != 1 {
		t.Fatalf("jumps = %d, want 1 while the button stays held", jumps)
	}
}

func TestJumpArcLands(t *testing.T) {
	bus := event.NewBus()
	rec := record(bus, event.EventLand)
	c := spawn(t, flatWorld(), mgl64.Vec3{0, restY, 0}, bus)

	if _, err := c.Step(movement.Input{Jump: true}, dt); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	peak := 0.0
	landedAt := -1
	for i := 0; i < 180; i++ {
		rep, err := c.Step(movement.Input{}, dt)
		if err != nil {
			t.Fatalf("Step() error = %v", err)
		}
		peak = math.Max(peak, c.Kinematic.Position.Y())
		if rep.Landed && landedAt < 0 {
			landedAt = i
		}
	}
	if landedAt < 0 {
		t.Fatalf("character never landed")
	}
	if peak <= restY+0.1 {
		t.Fatalf("peak = %.4f, want a visible jump", peak)
	}
	if c.Machine.State != movement.GroundedState(movement.Moving) {
		t.Fatalf("state = %s, want grounded/moving after landing", c.Machine.State)
	}
	approxEqual(t, c.Kinematic.Position.Y(), restY, 1e-6, "position.y")

	bus.Wait()
	lands := rec.get(event.EventLand)
	if len(lands) != 1 {
		t.Fatalf("land events = %d, want 1", len(lands))
	}
	if evt := lands[0].(event.LandEvent); evt.ImpactSpeed <= 0 || evt.Normal != [3]float64{0, 1, 0} {
		t.Fatalf("land event = %+v, want positive impact on a flat floor", evt)
	}
}

func TestLateJumpUsesCoyoteTime(t *testing.T) {
	c := spawn(t, physics.NewSpace(), mgl64.Vec3{0, 10, 0}, nil)

	// First tick: snap finds nothing and the body leaves the ground.
	for i := 0; i < 3; i++ {
		if _, err := c.Step(movement.Input{}, dt); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
	if c.Machine.State != movement.AirborneState(movement.Falling) {
		t.Fatalf("state = %s, want falling", c.Machine.State)
	}
	if c.Machine.CoyoteTimer <= 0 {
		t.Fatalf("CoyoteTimer = %v, want grace left", c.Machine.CoyoteTimer)
	}

	rep, err := c.Step(movement.Input{Jump: true}, dt)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if !rep.Jumped || !c.Machine.State.IsJumping() {
		t.Fatalf("late jump rejected, state = %s", c.Machine.State)
	}
	if c.Machine.CoyoteTimer != 0 {
		t.Fatalf("CoyoteTimer = %v, want 0 after late jump", c.Machine.CoyoteTimer)
	}
}

func TestJumpAfterCoyoteWindowGlides(t *testing.T) {
	c := spawn(t, physics.NewSpace(), mgl64.Vec3{0, 100, 0}, nil)
	for i := 0; i < 30; i++ {
		if _, err := c.Step(movement.Input{}, dt); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}

	rep, err := c.Step(movement.Input{Jump: true}, dt)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if rep.Jumped {
		t.Fatalf("Jumped = true, want rejected without coyote time")
	}
	if c.Machine.State != movement.AirborneState(movement.Glide) {
		t.Fatalf("state = %s, want glide while holding jump", c.Machine.State)
	}

	for i := 0; i < 120; i++ {
		if _, err := c.Step(movement.Input{Jump: true}, dt); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
	terminal := c.Tuning().Gravity.Terminal
	if vy := c.Kinematic.Velocity.Y(); vy < -terminal-1e-9 {
		t.Fatalf("glide velocity.y = %.4f, want capped at %.1f", vy, -terminal)
	}
}

func TestCrouchInAirDives(t *testing.T) {
	c := spawn(t, physics.NewSpace(), mgl64.Vec3{0, 100, 0}, nil)
	for i := 0; i < 3; i++ {
		if _, err := c.Step(movement.Input{}, dt); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
	if _, err := c.Step(movement.Input{Crouch: true}, dt); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if c.Machine.State != movement.AirborneState(movement.Dive) {
		t.Fatalf("state = %s, want dive", c.Machine.State)
	}

	rep, err := c.Step(movement.Input{Crouch: true, Jump: true}, dt)
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if !rep.Jumped || c.Machine.State.Jump.Kind != movement.JumpDive {
		t.Fatalf("state = %s, want dive jump", c.Machine.State)
	}
	approxEqual(t, c.Kinematic.Velocity.Y(), 7, 1e-9, "velocity.y")
}

func TestWalkingFacesVelocity(t *testing.T) {
	c := spawn(t, flatWorld(), mgl64.Vec3{0, restY, 0}, nil)
	look := mgl64.Vec3{1, 0, 0}
	for i := 0; i < 30; i++ {
		if _, err := c.Step(movement.Input{Move: mgl64.Vec2{0, 1}, Look: look}, dt); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
	approxEqual(t, c.Kinematic.Velocity.X(), 10, 1e-9, "velocity.x")
	approxEqual(t, c.Yaw, math.Pi/2, 1e-9, "yaw")
	if c.Kinematic.Position.X() <= 1 {
		t.Fatalf("position.x = %.4f, want moved forward", c.Kinematic.Position.X())
	}
	if !c.Body.Grounded {
		t.Fatalf("Grounded = false while walking on a flat floor")
	}
}

func TestWallStopsWalking(t *testing.T) {
	space := flatWorld()
	space.AddBox(mgl64.Vec3{2, 0, -5}, mgl64.Vec3{3, 3, 5})
	c := spawn(t, space, mgl64.Vec3{0, restY, 0}, nil)

	for i := 0; i < 90; i++ {
		if _, err := c.Step(movement.Input{Move: mgl64.Vec2{0, 1}, Look: mgl64.Vec3{1, 0, 0}}, dt); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
	if x := c.Kinematic.Position.X(); x > 2-0.2 {
		t.Fatalf("position.x = %.4f, walked into the wall", x)
	}
	if c.Kinematic.Velocity.X() > 1 {
		t.Fatalf("velocity.x = %.4f, want blocked", c.Kinematic.Velocity.X())
	}
}

func TestForceSlideSurface(t *testing.T) {
	space := physics.NewSpace()
	ice := space.AddBox(mgl64.Vec3{-50, -1, -50}, mgl64.Vec3{50, 0, 50})
	space.SetForcesSlide(ice, true)
	c := spawn(t, space, mgl64.Vec3{0, restY, 0}, nil)
	c.Kinematic.Velocity = mgl64.Vec3{3, 0, 0}

	for i := 0; i < 3; i++ {
		if _, err := c.Step(movement.Input{}, dt); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
	if c.Machine.State != movement.GroundedState(movement.Sliding) {
		t.Fatalf("state = %s, want sliding on a force-slide surface", c.Machine.State)
	}
}

func TestRetune(t *testing.T) {
	c := spawn(t, flatWorld(), mgl64.Vec3{0, restY, 0}, nil)
	rows := movement.DefaultTable().Rows()
	moving := rows[movement.LeafMoving]
	moving.Stats.MaxSpeed = 2
	rows[movement.LeafMoving] = moving
	table, err := movement.NewTable(rows)
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	if err := c.Retune(table, movement.DefaultParams()); err != nil {
		t.Fatalf("Retune() error = %v", err)
	}
	for i := 0; i < 60; i++ {
		if _, err := c.Step(movement.Input{Move: mgl64.Vec2{0, 1}}, dt); err != nil {
			t.Fatalf("Step() error = %v", err)
		}
	}
	approxEqual(t, c.Snapshot().Speed(), 2, 1e-9, "speed")

	if err := c.Retune(&movement.Table{}, movement.DefaultParams()); err == nil {
		t.Fatalf("Retune() with empty table error = nil, want error")
	}
}

func TestNewAndStepErrors(t *testing.T) {
	if _, err := New("p1", mgl64.Vec3{}, DefaultOptions(), Env{}); err == nil {
		t.Fatalf("New() without caster error = nil, want error")
	}
	opts := DefaultOptions()
	opts.Table = nil
	if _, err := New("p1", mgl64.Vec3{}, opts, Env{Caster: physics.NewSpace()}); err == nil {
		t.Fatalf("New() without table error = nil, want error")
	}

	c := spawn(t, flatWorld(), mgl64.Vec3{0, restY, 0}, nil)
	for _, bad := range []float64{0, -dt, math.NaN(), math.Inf(1)} {
		if _, err := c.Step(movement.Input{}, bad); err == nil {
			t.Fatalf("Step(dt=%v) error = nil, want error", bad)
		}
	}
	var nilChar *Character
	if _, err := nilChar.Step(movement.Input{}, dt); err == nil {
		t.Fatalf("Step() on nil character error = nil, want error")
	}
}

func TestSnapshot(t *testing.T) {
	c := spawn(t, flatWorld(), mgl64.Vec3{1, restY, 2}, nil)
	snap := c.Snapshot()
	if snap.Name != "p1" || !snap.Grounded || snap.Position != (mgl64.Vec3{1, restY, 2}) {
		t.Fatalf("Snapshot() = %+v", snap)
	}
	if snap.State.Leaf() != movement.LeafMoving {
		t.Fatalf("Snapshot().State = %s, want moving", snap.State)
	}
	if snap.CoyoteTimer != 0 || snap.StuckTimer != 0 {
		t.Fatalf("Snapshot() timers = (%v, %v), want zero before the first tick", snap.CoyoteTimer, snap.StuckTimer)
	}

	if _, err := c.Step(movement.Input{}, dt); err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	approxEqual(t, c.Snapshot().CoyoteTimer, c.params.CoyoteTime, 1e-12, "CoyoteTimer after first tick")
}
