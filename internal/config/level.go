package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/Versifine/stride/internal/physics"
	"github.com/go-gl/mathgl/mgl64"
)

// LevelConfig is the static collision geometry and spawn points of a run.
type LevelConfig struct {
	Boxes   []BoxConfig    `yaml:"boxes"`
	Planes  []PlaneConfig  `yaml:"planes"`
	Spheres []SphereConfig `yaml:"spheres"`
	Voxels  *VoxelConfig   `yaml:"voxels"`
	Spawns  []SpawnConfig  `yaml:"spawns"`
}

type BoxConfig struct {
	Min        [3]float64 `yaml:"min"`
	Max        [3]float64 `yaml:"max"`
	ForceSlide bool       `yaml:"force_slide"`
}

type PlaneConfig struct {
	Point      [3]float64 `yaml:"point"`
	Normal     [3]float64 `yaml:"normal"`
	ForceSlide bool       `yaml:"force_slide"`
}

type SphereConfig struct {
	Center     [3]float64 `yaml:"center"`
	Radius     float64    `yaml:"radius"`
	ForceSlide bool       `yaml:"force_slide"`
}

type VoxelConfig struct {
	Origin   [3]float64 `yaml:"origin"`
	CellSize float64    `yaml:"cell_size"`
	// Regions are inclusive cell ranges filled solid.
	Regions    []RegionConfig `yaml:"regions"`
	Cells      [][3]int       `yaml:"cells"`
	ForceSlide bool           `yaml:"force_slide"`
}

type RegionConfig struct {
	Min [3]int `yaml:"min"`
	Max [3]int `yaml:"max"`
}

type SpawnConfig struct {
	Name     string     `yaml:"name"`
	Position [3]float64 `yaml:"position"`
	Look     [3]float64 `yaml:"look"`
}

// Spawn is a resolved spawn point.
type Spawn struct {
	Name     string
	Position mgl64.Vec3
	Look     mgl64.Vec3
}

func vec(a [3]float64) mgl64.Vec3 {
	return mgl64.Vec3{a[0], a[1], a[2]}
}

func finite(a [3]float64) bool {
	for _, v := range a {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (l LevelConfig) Validate() error {
	var errs []error
	for i, b := range l.Boxes {
		if !finite(b.Min) || !finite(b.Max) {
			errs = append(errs, fmt.Errorf("level.boxes[%d]: coordinates must be finite", i))
			continue
		}
		for axis := 0; axis < 3; axis++ {
			if b.Min[axis] > b.Max[axis] {
				errs = append(errs, fmt.Errorf("level.boxes[%d]: min %v exceeds max %v", i, b.Min, b.Max))
				break
			}
		}
	}
	for i, p := range l.Planes {
		if !finite(p.Point) || !finite(p.Normal) {
			errs = append(errs, fmt.Errorf("level.planes[%d]: coordinates must be finite", i))
			continue
		}
		if vec(p.Normal).Len() == 0 {
			errs = append(errs, fmt.Errorf("level.planes[%d]: normal must be non-zero", i))
		}
	}
	for i, s := range l.Spheres {
		if !finite(s.Center) || !(s.Radius > 0) || math.IsInf(s.Radius, 0) {
			errs = append(errs, fmt.Errorf("level.spheres[%d]: need a finite center and positive radius", i))
		}
	}
	if v := l.Voxels; v != nil {
		if !finite(v.Origin) || v.CellSize < 0 || math.IsNaN(v.CellSize) {
			errs = append(errs, errors.New("level.voxels: need a finite origin and non-negative cell_size"))
		}
		for i, r := range v.Regions {
			for axis := 0; axis < 3; axis++ {
				if r.Min[axis] > r.Max[axis] {
					errs = append(errs, fmt.Errorf("level.voxels.regions[%d]: min %v exceeds max %v", i, r.Min, r.Max))
					break
				}
			}
		}
	}
	seen := make(map[string]bool, len(l.Spawns))
	for i, s := range l.Spawns {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("level.spawns[%d]: name is required", i))
		} else if seen[s.Name] {
			errs = append(errs, fmt.Errorf("level.spawns[%d]: duplicate name %q", i, s.Name))
		}
		seen[s.Name] = true
		if !finite(s.Position) || !finite(s.Look) {
			errs = append(errs, fmt.Errorf("level.spawns[%d]: coordinates must be finite", i))
		}
	}
	return errors.Join(errs...)
}

// Build adds the level's colliders to space and returns its spawn points.
// A level without spawns yields a single "player" spawn at the origin.
func (l LevelConfig) Build(space *physics.Space) ([]Spawn, error) {
	if space == nil {
		return nil, errors.New("space is nil")
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	tag := func(id physics.EntityID, on bool) {
		if on {
			space.SetForcesSlide(id, true)
		}
	}
	for _, b := range l.Boxes {
		tag(space.AddBox(vec(b.Min), vec(b.Max)), b.ForceSlide)
	}
	for _, p := range l.Planes {
		tag(space.AddPlane(vec(p.Point), vec(p.Normal)), p.ForceSlide)
	}
	for _, s := range l.Spheres {
		tag(space.AddSphere(vec(s.Center), s.Radius), s.ForceSlide)
	}
	if v := l.Voxels; v != nil {
		store := physics.NewMapBlockStore()
		for _, r := range v.Regions {
			store.Fill(r.Min[0], r.Min[1], r.Min[2], r.Max[0], r.Max[1], r.Max[2])
		}
		for _, c := range v.Cells {
			store.SetSolid(c[0], c[1], c[2], true)
		}
		tag(space.AddGrid(physics.Grid{Store: store, Origin: vec(v.Origin), CellSize: v.CellSize}), v.ForceSlide)
	}

	if len(l.Spawns) == 0 {
		return []Spawn{{Name: "player", Look: mgl64.Vec3{0, 0, 1}}}, nil
	}
	spawns := make([]Spawn, 0, len(l.Spawns))
	for _, s := range l.Spawns {
		look := vec(s.Look)
		if look.Len() == 0 {
			look = mgl64.Vec3{0, 0, 1}
		}
		spawns = append(spawns, Spawn{Name: s.Name, Position: vec(s.Position), Look: look})
	}
	return spawns, nil
}
