package movement

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// WorldDirection turns a move axis into an XZ direction relative to look.
// The returned vector's Y component is world Z.
func WorldDirection(move mgl64.Vec2, look mgl64.Vec3) mgl64.Vec2 {
	forward := mgl64.Vec2{look.X(), look.Z()}
	if l := forward.Len(); l > 1e-9 {
		forward = forward.Mul(1 / l)
	} else {
		forward = mgl64.Vec2{0, 1}
	}
	right := mgl64.Vec2{-forward.Y(), forward.X()}
	return forward.Mul(move.Y()).Add(right.Mul(move.X()))
}

// MoveTowards steps current towards target by at most maxDelta.
func MoveTowards(current, target mgl64.Vec2, maxDelta float64) mgl64.Vec2 {
	d := target.Sub(current)
	l := d.Len()
	if l <= maxDelta || l == 0 {
		return target
	}
	return current.Add(d.Mul(maxDelta / l))
}

// Steer integrates horizontal velocity for one tick. Above the speed cap,
// input can only re-aim existing momentum.
func Steer(velocity mgl64.Vec3, dir mgl64.Vec2, s Stats, p Params, dt float64) mgl64.Vec3 {
	flat := mgl64.Vec2{velocity.X(), velocity.Z()}
	var next mgl64.Vec2
	if flat.Len() > s.MaxSpeed*p.OverspeedMargin && dir.Dot(dir) > p.MinInputSq {
		similarity := math.Max(dir.Dot(flat), 0)
		next = MoveTowards(flat, dir.Mul(similarity), s.RotationRate*dt)
	} else {
		next = MoveTowards(flat, dir.Mul(s.MaxSpeed), s.Acceleration*dt)
	}
	return mgl64.Vec3{next.X(), velocity.Y(), next.Y()}
}

func ApplyGravity(vy float64, g Gravity, dt float64) float64 {
	if vy > 0 {
		vy -= dt * g.Up
	} else {
		vy -= dt * g.Down
	}
	if vy < -g.Terminal {
		vy = -g.Terminal
	}
	return vy
}

// DampVertical eases vy towards zero at rate per second.
func DampVertical(vy, rate, dt float64) float64 {
	return vy + (0-vy)*math.Min(1, rate*dt)
}

// FacingYaw returns the yaw that faces the horizontal velocity, or false when
// moving too slowly to turn.
func FacingYaw(velocity mgl64.Vec3, minSpeedSq float64) (float64, bool) {
	vx, vz := velocity.X(), velocity.Z()
	if vx*vx+vz*vz <= minSpeedSq {
		return 0, false
	}
	return math.Atan2(vx, vz), true
}

func YawRotation(yaw float64) mgl64.Quat {
	return mgl64.QuatRotate(yaw, mgl64.Vec3{0, 1, 0})
}
