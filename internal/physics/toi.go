package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

var invPhi = (math.Sqrt(5) - 1) / 2

// goldenMin returns the minimiser of a unimodal f on [lo, hi] and its value.
// Both endpoints are considered so minima on the boundary are exact.
func goldenMin(f func(float64) float64, lo, hi float64, steps int) (float64, float64) {
	a, b := lo, hi
	c := b - invPhi*(b-a)
	d := a + invPhi*(b-a)
	fc, fd := f(c), f(d)
	for i := 0; i < steps; i++ {
		if fc <= fd {
			b, d, fd = d, c, fc
			c = b - invPhi*(b-a)
			fc = f(c)
		} else {
			a, c, fc = c, d, fd
			d = a + invPhi*(b-a)
			fd = f(d)
		}
	}
	best, bestVal := c, fc
	if fd < bestVal {
		best, bestVal = d, fd
	}
	if v := f(lo); v <= bestVal {
		best, bestVal = lo, v
	}
	if v := f(hi); v < bestVal {
		best, bestVal = hi, v
	}
	return best, bestVal
}

// closestOnCapsule returns the capsule's signed distance to c at pose p and
// the point on the inner segment where it is reached.
func closestOnCapsule(c Collider, shape Capsule, p Pose) (float64, mgl64.Vec3) {
	a, b := shape.segment(p)
	if shape.HalfHeight <= 0 {
		return c.SignedDistance(p.Position) - shape.Radius, p.Position
	}
	ab := b.Sub(a)
	at := func(t float64) mgl64.Vec3 { return a.Add(ab.Mul(t)) }
	t, d := goldenMin(func(t float64) float64 { return c.SignedDistance(at(t)) }, 0, 1, segmentSearchSteps)
	return d - shape.Radius, at(t)
}

type impact struct {
	distance float64
	normal   mgl64.Vec3
	point    mgl64.Vec3
}

// timeOfImpact finds the first distance along dir (within length) at which
// the capsule touches c. The separation along a straight translation is
// convex, so the search brackets the minimum first and then bisects the
// descending side for the root.
func timeOfImpact(c Collider, shape Capsule, start Pose, dir mgl64.Vec3, length float64) (impact, bool) {
	sep := func(s float64) float64 {
		d, _ := closestOnCapsule(c, shape, start.translated(dir.Mul(s)))
		return d
	}

	d0, q0 := closestOnCapsule(c, shape, start)
	if d0 <= 0 {
		n := c.Normal(q0)
		if n.Dot(dir) >= 0 {
			// Touching but already separating.
			return impact{}, false
		}
		return impact{distance: 0, normal: n, point: q0.Sub(n.Mul(c.SignedDistance(q0)))}, true
	}

	sMin, dMin := goldenMin(sep, 0, length, motionSearchSteps)
	if dMin > 0 {
		return impact{}, false
	}

	lo, hi := 0.0, sMin
	for i := 0; i < rootSearchSteps; i++ {
		mid := (lo + hi) / 2
		if sep(mid) > 0 {
			lo = mid
		} else {
			hi = mid
		}
	}

	_, q := closestOnCapsule(c, shape, start.translated(dir.Mul(lo)))
	n := c.Normal(q)
	if n.Dot(dir) >= 0 {
		return impact{}, false
	}
	return impact{distance: lo, normal: n, point: q.Sub(n.Mul(c.SignedDistance(q)))}, true
}
