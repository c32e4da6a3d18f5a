package physics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// BlockStore reports solid unit cells of a voxel grid.
type BlockStore interface {
	IsSolid(x, y, z int) bool
}

// Grid exposes a BlockStore as unit boxes, scaled by CellSize and shifted by
// Origin. All cells share the grid's entity id.
type Grid struct {
	Store    BlockStore
	Origin   mgl64.Vec3
	CellSize float64
}

func (g Grid) cellSize() float64 {
	if g.CellSize <= 0 {
		return 1
	}
	return g.CellSize
}

func (g Grid) cellBox(x, y, z int) Box {
	s := g.cellSize()
	min := g.Origin.Add(mgl64.Vec3{float64(x) * s, float64(y) * s, float64(z) * s})
	return Box{Min: min, Max: min.Add(mgl64.Vec3{s, s, s})}
}

// cells calls fn for every solid cell overlapping area. It stops early when
// fn returns false.
func (g Grid) cells(area AABB, fn func(Box) bool) {
	if g.Store == nil {
		return
	}
	s := g.cellSize()
	local := AABB{Min: area.Min.Sub(g.Origin).Mul(1 / s), Max: area.Max.Sub(g.Origin).Mul(1 / s)}

	minX := floorForMin(local.Min[0])
	maxX := floorForMax(local.Max[0])
	minY := floorForMin(local.Min[1])
	maxY := floorForMax(local.Max[1])
	minZ := floorForMin(local.Min[2])
	maxZ := floorForMax(local.Max[2])

	count := (maxX - minX + 1) * (maxY - minY + 1) * (maxZ - minZ + 1)
	if count <= 0 || count > maxGridCells {
		return
	}

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			for z := minZ; z <= maxZ; z++ {
				if !g.Store.IsSolid(x, y, z) {
					continue
				}
				if !fn(g.cellBox(x, y, z)) {
					return
				}
			}
		}
	}
}

func floorForMin(v float64) int {
	return int(math.Floor(v + CollisionAxisTolerance))
}

func floorForMax(v float64) int {
	return int(math.Floor(v - CollisionAxisTolerance))
}

// MapBlockStore is an in-memory BlockStore, mostly used for level files and
// tests.
type MapBlockStore struct {
	solid map[[3]int]bool
}

func NewMapBlockStore() *MapBlockStore {
	return &MapBlockStore{solid: make(map[[3]int]bool)}
}

func (m *MapBlockStore) IsSolid(x, y, z int) bool {
	return m.solid[[3]int{x, y, z}]
}

func (m *MapBlockStore) SetSolid(x, y, z int, solid bool) {
	if solid {
		m.solid[[3]int{x, y, z}] = true
		return
	}
	delete(m.solid, [3]int{x, y, z})
}

// Fill marks every cell in the inclusive range solid.
func (m *MapBlockStore) Fill(minX, minY, minZ, maxX, maxY, maxZ int) {
	for x := minX; x <= maxX; x++ {
		for y := minY; y <= maxY; y++ {
			for z := minZ; z <= maxZ; z++ {
				m.solid[[3]int{x, y, z}] = true
			}
		}
	}
}

func (m *MapBlockStore) Len() int {
	return len(m.solid)
}
