// Package slide converts a desired velocity into a collision-respecting
// displacement by repeatedly sweeping a capsule and redirecting the velocity
// along every surface it meets.
package slide

import (
	"github.com/Versifine/stride/internal/physics"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	DefaultIterations = 255
	DefaultSkinWidth  = 0.01
	DefaultEpsilon    = 1e-6

	DefaultDepenetrationIterations = 4
)

type HitResponse uint8

const (
	// Accept resolves the contact normally.
	Accept HitResponse = iota
	// Ignore lets the shape pass through the hit entity for the rest of the
	// call.
	Ignore
)

func (r HitResponse) String() string {
	switch r {
	case Accept:
		return "accept"
	case Ignore:
		return "ignore"
	default:
		return "unknown"
	}
}

type Config struct {
	Iterations int
	SkinWidth  float64
	// Remaining motion at or below Epsilon ends the call.
	Epsilon                 float64
	DepenetrationIterations int
}

func DefaultConfig() Config {
	return Config{
		Iterations:              DefaultIterations,
		SkinWidth:               DefaultSkinWidth,
		Epsilon:                 DefaultEpsilon,
		DepenetrationIterations: DefaultDepenetrationIterations,
	}
}

// SnapConfig is the single-iteration variant used for ground snapping.
func SnapConfig() Config {
	return Config{
		Iterations: 1,
		SkinWidth:  DefaultSkinWidth,
		Epsilon:    DefaultEpsilon,
	}
}

// Hit is a contact the solver resolved.
type Hit struct {
	physics.Hit
	Iteration int
	// Consumed is the share of dt used up once this contact was reached.
	Consumed float64
}

type Result struct {
	Position          mgl64.Vec3
	ProjectedVelocity mgl64.Vec3
	Hits              []Hit
	// Consumed is the share of dt the motion covered, in [0, 1].
	Consumed   float64
	Iterations int
}

// LastHit returns the most recently resolved contact.
func (r Result) LastHit() (Hit, bool) {
	if len(r.Hits) == 0 {
		return Hit{}, false
	}
	return r.Hits[len(r.Hits)-1], true
}

// MoveAndSlide moves shape from start with velocity over dt seconds.
// onHit observes every contact before it is resolved and may be nil.
func MoveAndSlide(
	caster physics.Caster,
	shape physics.Capsule,
	start mgl64.Vec3,
	rotation mgl64.Quat,
	velocity mgl64.Vec3,
	dt float64,
	cfg Config,
	filter physics.Filter,
	onHit func(Hit) HitResponse,
) Result {
	res := Result{Position: start, ProjectedVelocity: velocity}
	if caster == nil || dt <= 0 {
		return res
	}
	if velocity.Mul(dt).Len() <= cfg.Epsilon {
		return res
	}

	pos := start
	if cfg.DepenetrationIterations > 0 {
		pos = depenetrate(caster, shape, pos, rotation, cfg, filter)
	}

	vel := velocity
	timeLeft := dt
	planes := make([]mgl64.Vec3, 0, 4)

	for i := 0; i < cfg.Iterations; i++ {
		motion := vel.Mul(timeLeft)
		length := motion.Len()
		if length <= cfg.Epsilon {
			res.Consumed += timeLeft / dt
			timeLeft = 0
			break
		}
		dir := motion.Mul(1 / length)

		res.Iterations++
		hit, ok := caster.Sweep(shape, physics.NewPose(pos, rotation), dir.Mul(length+cfg.SkinWidth), filter)
		if !ok {
			pos = pos.Add(motion)
			res.Consumed += timeLeft / dt
			timeLeft = 0
			break
		}

		travel := clamp(hit.Distance-cfg.SkinWidth, 0, length)
		f := travel / length
		pos = pos.Add(dir.Mul(travel))
		res.Consumed += f * timeLeft / dt
		timeLeft *= 1 - f

		resolved := Hit{Hit: hit, Iteration: i, Consumed: res.Consumed}
		if onHit != nil && onHit(resolved) == Ignore {
			filter = filter.With(hit.Entity)
			continue
		}
		res.Hits = append(res.Hits, resolved)

		vel = clipVelocity(vel, hit.Normal, planes, cfg.Epsilon)
		planes = append(planes, hit.Normal)
	}

	if res.Consumed > 1 {
		res.Consumed = 1
	}
	res.Position = pos
	res.ProjectedVelocity = vel
	return res
}

// clipVelocity removes the part of v that points into n. When that pushes v
// back into an earlier plane the motion is confined to the crease between
// the two, and a third opposing plane stops it.
func clipVelocity(v, n mgl64.Vec3, planes []mgl64.Vec3, eps float64) mgl64.Vec3 {
	if v.Dot(n) >= 0 {
		return v
	}
	out := projectOnPlane(v, n)
	for _, p := range planes {
		if out.Dot(p) >= -eps {
			continue
		}
		crease := p.Cross(n)
		l := crease.Len()
		if l <= eps {
			return mgl64.Vec3{}
		}
		crease = crease.Mul(1 / l)
		out = crease.Mul(out.Dot(crease))
		for _, q := range planes {
			if out.Dot(q) < -eps {
				return mgl64.Vec3{}
			}
		}
		return out
	}
	return out
}

func projectOnPlane(v, n mgl64.Vec3) mgl64.Vec3 {
	return v.Sub(n.Mul(v.Dot(n)))
}

func depenetrate(caster physics.Caster, shape physics.Capsule, pos mgl64.Vec3, rotation mgl64.Quat, cfg Config, filter physics.Filter) mgl64.Vec3 {
	for i := 0; i < cfg.DepenetrationIterations; i++ {
		pens := caster.Overlaps(shape, physics.NewPose(pos, rotation), filter)
		if len(pens) == 0 {
			return pos
		}
		// Deepest first keeps a floor overlap from being undone by a shallow
		// wall push.
		deepest := pens[0]
		for _, p := range pens[1:] {
			if p.Depth > deepest.Depth {
				deepest = p
			}
		}
		pos = pos.Add(deepest.Normal.Mul(deepest.Depth + cfg.Epsilon))
	}
	return pos
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
