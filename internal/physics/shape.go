package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Capsule is a segment of length 2*HalfHeight swept by a sphere of Radius.
// The segment runs along the pose's local +Y axis.
type Capsule struct {
	Radius     float64
	HalfHeight float64
}

// CapsuleFromHeight builds a capsule whose total height (cap to cap) is height.
func CapsuleFromHeight(radius, height float64) Capsule {
	half := height/2 - radius
	if half < 0 {
		half = 0
	}
	return Capsule{Radius: radius, HalfHeight: half}
}

func (c Capsule) TotalHeight() float64 {
	return 2 * (c.HalfHeight + c.Radius)
}

type Pose struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

func NewPose(position mgl64.Vec3, rotation mgl64.Quat) Pose {
	return Pose{Position: position, Rotation: rotation}
}

func (p Pose) axis() mgl64.Vec3 {
	if p.Rotation.W == 0 && p.Rotation.V == (mgl64.Vec3{}) {
		return mgl64.Vec3{0, 1, 0}
	}
	return p.Rotation.Rotate(mgl64.Vec3{0, 1, 0})
}

func (p Pose) translated(offset mgl64.Vec3) Pose {
	return Pose{Position: p.Position.Add(offset), Rotation: p.Rotation}
}

// segment returns the capsule's inner segment endpoints at pose p.
func (c Capsule) segment(p Pose) (mgl64.Vec3, mgl64.Vec3) {
	half := p.axis().Mul(c.HalfHeight)
	return p.Position.Sub(half), p.Position.Add(half)
}

// Bounds returns the world-space box enclosing the capsule at pose p.
func (c Capsule) Bounds(p Pose) AABB {
	a, b := c.segment(p)
	r := c.Radius
	return AABB{
		Min: mgl64.Vec3{math.Min(a[0], b[0]) - r, math.Min(a[1], b[1]) - r, math.Min(a[2], b[2]) - r},
		Max: mgl64.Vec3{math.Max(a[0], b[0]) + r, math.Max(a[1], b[1]) + r, math.Max(a[2], b[2]) + r},
	}
}

type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

func (a AABB) Union(b AABB) AABB {
	return AABB{
		Min: mgl64.Vec3{math.Min(a.Min[0], b.Min[0]), math.Min(a.Min[1], b.Min[1]), math.Min(a.Min[2], b.Min[2])},
		Max: mgl64.Vec3{math.Max(a.Max[0], b.Max[0]), math.Max(a.Max[1], b.Max[1]), math.Max(a.Max[2], b.Max[2])},
	}
}

func (a AABB) Expand(margin float64) AABB {
	m := mgl64.Vec3{margin, margin, margin}
	return AABB{Min: a.Min.Sub(m), Max: a.Max.Add(m)}
}

func intersects(a, b AABB) bool {
	return a.Min[0] <= b.Max[0] &&
		a.Max[0] >= b.Min[0] &&
		a.Min[1] <= b.Max[1] &&
		a.Max[1] >= b.Min[1] &&
		a.Min[2] <= b.Max[2] &&
		a.Max[2] >= b.Min[2]
}

// Collider is a convex static shape described by its signed distance field.
// SignedDistance must be convex so that minimum searches along segments and
// motion paths stay unimodal.
type Collider interface {
	SignedDistance(p mgl64.Vec3) float64
	// Normal is the outward unit gradient of the field at p.
	Normal(p mgl64.Vec3) mgl64.Vec3
	Bounds() AABB
}

type Box struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

func (b Box) Bounds() AABB {
	return AABB{Min: b.Min, Max: b.Max}
}

func (b Box) center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

func (b Box) halfExtents() mgl64.Vec3 {
	return b.Max.Sub(b.Min).Mul(0.5)
}

func (b Box) SignedDistance(p mgl64.Vec3) float64 {
	q := b.offset(p)
	outside := mgl64.Vec3{math.Max(q[0], 0), math.Max(q[1], 0), math.Max(q[2], 0)}
	inside := math.Min(math.Max(q[0], math.Max(q[1], q[2])), 0)
	return outside.Len() + inside
}

func (b Box) Normal(p mgl64.Vec3) mgl64.Vec3 {
	q := b.offset(p)
	c := b.center()
	d := p.Sub(c)
	if q[0] > 0 || q[1] > 0 || q[2] > 0 {
		outside := mgl64.Vec3{math.Max(q[0], 0), math.Max(q[1], 0), math.Max(q[2], 0)}
		for i := 0; i < 3; i++ {
			if d[i] < 0 {
				outside[i] = -outside[i]
			}
		}
		return safeNormalize(outside, mgl64.Vec3{0, 1, 0})
	}
	// Inside: push out through the nearest face.
	axis := 0
	for i := 1; i < 3; i++ {
		if q[i] > q[axis] {
			axis = i
		}
	}
	n := mgl64.Vec3{}
	n[axis] = 1
	if d[axis] < 0 {
		n[axis] = -1
	}
	return n
}

// offset is |p - center| - halfExtents per axis.
func (b Box) offset(p mgl64.Vec3) mgl64.Vec3 {
	d := p.Sub(b.center())
	h := b.halfExtents()
	return mgl64.Vec3{math.Abs(d[0]) - h[0], math.Abs(d[1]) - h[1], math.Abs(d[2]) - h[2]}
}

// Plane is the half-space behind Facing through Point.
type Plane struct {
	Point  mgl64.Vec3
	Facing mgl64.Vec3
}

func NewPlane(point, normal mgl64.Vec3) Plane {
	return Plane{Point: point, Facing: safeNormalize(normal, mgl64.Vec3{0, 1, 0})}
}

func (pl Plane) SignedDistance(p mgl64.Vec3) float64 {
	return p.Sub(pl.Point).Dot(pl.Facing)
}

func (pl Plane) Normal(mgl64.Vec3) mgl64.Vec3 {
	return pl.Facing
}

func (pl Plane) Bounds() AABB {
	inf := math.Inf(1)
	return AABB{Min: mgl64.Vec3{-inf, -inf, -inf}, Max: mgl64.Vec3{inf, inf, inf}}
}

type Sphere struct {
	Center mgl64.Vec3
	Radius float64
}

func (s Sphere) SignedDistance(p mgl64.Vec3) float64 {
	return p.Sub(s.Center).Len() - s.Radius
}

func (s Sphere) Normal(p mgl64.Vec3) mgl64.Vec3 {
	return safeNormalize(p.Sub(s.Center), mgl64.Vec3{0, 1, 0})
}

func (s Sphere) Bounds() AABB {
	r := mgl64.Vec3{s.Radius, s.Radius, s.Radius}
	return AABB{Min: s.Center.Sub(r), Max: s.Center.Add(r)}
}

func safeNormalize(v, fallback mgl64.Vec3) mgl64.Vec3 {
	l := v.Len()
	if l <= CollisionAxisTolerance || math.IsNaN(l) {
		return fallback
	}
	return v.Mul(1 / l)
}
