package world

import (
	"testing"

	"github.com/Versifine/stride/internal/physics"
	"github.com/go-gl/mathgl/mgl64"
)

var _ physics.BlockStore = (*ChunkStore)(nil)

func TestChunkStore_SetAndGet(t *testing.T) {
	cs := NewChunkStore()

	if !cs.SetSolid(1, 2, 3, true) {
		t.Fatalf("SetSolid() = false, want changed")
	}
	if cs.SetSolid(1, 2, 3, true) {
		t.Fatalf("second SetSolid() = true, want unchanged")
	}
	if !cs.IsSolid(1, 2, 3) {
		t.Fatalf("IsSolid(1,2,3) = false, want true")
	}
	if cs.IsSolid(1, 2, 4) {
		t.Fatalf("IsSolid(1,2,4) = true, want false")
	}
}

func TestChunkStore_NegativeCoordinates(t *testing.T) {
	cs := NewChunkStore()
	cells := [][3]int{{-1, -1, -1}, {-16, 0, -17}, {-17, -33, 15}}
	for _, c := range cells {
		cs.SetSolid(c[0], c[1], c[2], true)
	}
	for _, c := range cells {
		if !cs.IsSolid(c[0], c[1], c[2]) {
			t.Fatalf("IsSolid(%v) = false, want true", c)
		}
	}
	// 相邻但跨越 section 边界的方块不受影响
	if cs.IsSolid(0, 0, 0) || cs.IsSolid(-15, 0, -17) {
		t.Fatalf("neighbouring cells reported solid")
	}
	if got := cs.LoadedSectionCount(); got != 3 {
		t.Fatalf("LoadedSectionCount() = %d, want 3", got)
	}
}

func TestChunkStore_FillAndClear(t *testing.T) {
	cs := NewChunkStore()
	if got := cs.Fill(0, 0, 0, 15, 0, 15); got != 256 {
		t.Fatalf("Fill() = %d, want 256", got)
	}
	if got := cs.SolidCount(); got != 256 {
		t.Fatalf("SolidCount() = %d, want 256", got)
	}
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			cs.SetSolid(x, 0, z, false)
		}
	}
	if got := cs.LoadedSectionCount(); got != 0 {
		t.Fatalf("LoadedSectionCount() = %d, want emptied section dropped", got)
	}
	if cs.SetSolid(100, 100, 100, false) {
		t.Fatalf("clearing an unloaded cell reported a change")
	}
}

func TestChunkStore_UnloadSection(t *testing.T) {
	cs := NewChunkStore()
	cs.SetSolid(-1, 5, 20, true)
	cs.UnloadSection(SectionPos{X: -1, Y: 0, Z: 1})
	if cs.IsSolid(-1, 5, 20) {
		t.Fatalf("IsSolid() = true after UnloadSection")
	}
}

func TestChunkStore_BacksGrid(t *testing.T) {
	cs := NewChunkStore()
	cs.Fill(-2, -1, -2, 2, -1, 2)
	space := physics.NewSpace()
	grid := space.AddGrid(physics.Grid{Store: cs})

	capsule := physics.CapsuleFromHeight(0.2, 1.0)
	hit, ok := space.Sweep(capsule, physics.NewPose(mgl64.Vec3{0.5, 2, 0.5}, mgl64.QuatIdent()), mgl64.Vec3{0, -3, 0}, physics.Filter{})
	if !ok || hit.Entity != grid {
		t.Fatalf("Sweep() = (%+v, %t), want grid %d", hit, ok, grid)
	}
}
