package physics

import (
	"math"
	"slices"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// EntityID identifies anything a sweep can hit or exclude. Zero is never
// assigned.
type EntityID uint32

// Hit is the first blocking contact of a sweep.
type Hit struct {
	Entity EntityID
	// Fraction of the requested motion travelled before touching.
	Fraction float64
	Distance float64
	Point    mgl64.Vec3
	// Normal points from the hit surface towards the swept shape.
	Normal mgl64.Vec3
}

// Penetration describes a static overlap: moving the shape Depth along Normal
// separates it from Entity.
type Penetration struct {
	Entity EntityID
	Normal mgl64.Vec3
	Depth  float64
}

type Filter struct {
	Excluded []EntityID
}

func ExcludeEntities(ids ...EntityID) Filter {
	return Filter{Excluded: append([]EntityID(nil), ids...)}
}

// With returns a copy of f that also excludes ids.
func (f Filter) With(ids ...EntityID) Filter {
	out := make([]EntityID, 0, len(f.Excluded)+len(ids))
	out = append(out, f.Excluded...)
	out = append(out, ids...)
	return Filter{Excluded: out}
}

func (f Filter) Allows(id EntityID) bool {
	return !slices.Contains(f.Excluded, id)
}

// Caster is the shape query service the character controller is built on.
type Caster interface {
	// Sweep moves shape from start along motion and reports the first
	// blocking contact, if any.
	Sweep(shape Capsule, start Pose, motion mgl64.Vec3, filter Filter) (Hit, bool)
	// CastStatic sweeps along a unit direction up to maxDistance.
	CastStatic(shape Capsule, pose Pose, direction mgl64.Vec3, maxDistance float64, filter Filter) (Hit, bool)
	// Overlaps lists every collider the shape currently penetrates.
	Overlaps(shape Capsule, pose Pose, filter Filter) []Penetration
}

// SurfaceTags answers per-surface gameplay attributes.
type SurfaceTags interface {
	ForcesSlide(id EntityID) bool
}

type entry struct {
	id       EntityID
	collider Collider
	grid     *Grid
}

// Space is an in-memory Caster over static convex colliders and voxel grids.
// It is safe for concurrent queries; mutation takes the write lock.
type Space struct {
	mu          sync.RWMutex
	entries     []entry
	forcesSlide map[EntityID]bool
	next        EntityID
}

func NewSpace() *Space {
	return &Space{forcesSlide: make(map[EntityID]bool)}
}

// Reserve allocates an id that no collider uses, for movers that must be
// excludable from queries.
func (s *Space) Reserve() EntityID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next
}

func (s *Space) Add(c Collider) EntityID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.entries = append(s.entries, entry{id: s.next, collider: c})
	return s.next
}

func (s *Space) AddBox(min, max mgl64.Vec3) EntityID {
	return s.Add(Box{Min: min, Max: max})
}

func (s *Space) AddPlane(point, normal mgl64.Vec3) EntityID {
	return s.Add(NewPlane(point, normal))
}

func (s *Space) AddSphere(center mgl64.Vec3, radius float64) EntityID {
	return s.Add(Sphere{Center: center, Radius: radius})
}

func (s *Space) AddGrid(g Grid) EntityID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.entries = append(s.entries, entry{id: s.next, grid: &g})
	return s.next
}

func (s *Space) Remove(id EntityID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.id == id {
			s.entries = slices.Delete(s.entries, i, i+1)
			delete(s.forcesSlide, id)
			return true
		}
	}
	return false
}

func (s *Space) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// SetForcesSlide tags a collider as a surface that compels sliding.
func (s *Space) SetForcesSlide(id EntityID, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if on {
		s.forcesSlide[id] = true
		return
	}
	delete(s.forcesSlide, id)
}

func (s *Space) ForcesSlide(id EntityID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.forcesSlide[id]
}

// queryMargin widens broad-phase areas so touching neighbours are visited.
const queryMargin = 0.05

// candidates calls fn with every collider whose bounds meet area.
func (s *Space) candidates(area AABB, filter Filter, fn func(EntityID, Collider)) {
	for _, e := range s.entries {
		if !filter.Allows(e.id) {
			continue
		}
		if e.grid != nil {
			e.grid.cells(area, func(b Box) bool {
				fn(e.id, b)
				return true
			})
			continue
		}
		if intersects(area, e.collider.Bounds()) {
			fn(e.id, e.collider)
		}
	}
}

func (s *Space) Sweep(shape Capsule, start Pose, motion mgl64.Vec3, filter Filter) (Hit, bool) {
	length := motion.Len()
	if length <= MinimumCastLength || math.IsNaN(length) {
		return Hit{}, false
	}
	dir := motion.Mul(1 / length)

	s.mu.RLock()
	defer s.mu.RUnlock()

	area := shape.Bounds(start).Union(shape.Bounds(start.translated(motion))).Expand(queryMargin)

	var (
		best  Hit
		found bool
	)
	s.candidates(area, filter, func(id EntityID, c Collider) {
		imp, ok := timeOfImpact(c, shape, start, dir, length)
		if !ok {
			return
		}
		if found && imp.distance >= best.Distance {
			return
		}
		best = Hit{
			Entity:   id,
			Fraction: imp.distance / length,
			Distance: imp.distance,
			Point:    imp.point,
			Normal:   imp.normal,
		}
		found = true
	})
	return best, found
}

func (s *Space) CastStatic(shape Capsule, pose Pose, direction mgl64.Vec3, maxDistance float64, filter Filter) (Hit, bool) {
	if maxDistance <= 0 {
		return Hit{}, false
	}
	dir := safeNormalize(direction, mgl64.Vec3{})
	if dir == (mgl64.Vec3{}) {
		return Hit{}, false
	}
	return s.Sweep(shape, pose, dir.Mul(maxDistance), filter)
}

func (s *Space) Overlaps(shape Capsule, pose Pose, filter Filter) []Penetration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Penetration
	s.candidates(shape.Bounds(pose).Expand(queryMargin), filter, func(id EntityID, c Collider) {
		d, q := closestOnCapsule(c, shape, pose)
		if d >= 0 {
			return
		}
		out = append(out, Penetration{Entity: id, Normal: c.Normal(q), Depth: -d})
	})
	return out
}
