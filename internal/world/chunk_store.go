package world

import "sync"

const (
	SectionSize      = 16
	BlocksPerSection = SectionSize * SectionSize * SectionSize
)

// SectionPos addresses one 16x16x16 section of cells.
type SectionPos struct {
	X, Y, Z int32
}

type section struct {
	solid [BlocksPerSection]bool
	count int
}

// ChunkStore is a sparse, sectioned voxel store that can be edited while
// characters are querying it. It satisfies physics.BlockStore.
type ChunkStore struct {
	mu       sync.RWMutex
	sections map[SectionPos]*section
}

func NewChunkStore() *ChunkStore {
	return &ChunkStore{sections: make(map[SectionPos]*section)}
}

func locate(x, y, z int) (SectionPos, int) {
	pos := SectionPos{X: int32(floorDiv16(x)), Y: int32(floorDiv16(y)), Z: int32(floorDiv16(z))}
	index := floorMod16(y)*SectionSize*SectionSize + floorMod16(z)*SectionSize + floorMod16(x)
	return pos, index
}

// SetSolid reports whether the cell changed.
func (cs *ChunkStore) SetSolid(x, y, z int, solid bool) bool {
	pos, index := locate(x, y, z)

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.sections == nil {
		cs.sections = make(map[SectionPos]*section)
	}
	sec, ok := cs.sections[pos]
	if !ok {
		if !solid {
			return false
		}
		sec = &section{}
		cs.sections[pos] = sec
	}
	if sec.solid[index] == solid {
		return false
	}
	sec.solid[index] = solid
	if solid {
		sec.count++
	} else {
		sec.count--
	}
	// Drop emptied sections so the store stays sparse.
	if sec.count == 0 {
		delete(cs.sections, pos)
	}
	return true
}

// Fill marks every cell in the inclusive range solid and returns how many
// changed.
func (cs *ChunkStore) Fill(minX, minY, minZ, maxX, maxY, maxZ int) int {
	changed := 0
	for y := minY; y <= maxY; y++ {
		for z := minZ; z <= maxZ; z++ {
			for x := minX; x <= maxX; x++ {
				if cs.SetSolid(x, y, z, true) {
					changed++
				}
			}
		}
	}
	return changed
}

func (cs *ChunkStore) IsSolid(x, y, z int) bool {
	pos, index := locate(x, y, z)

	cs.mu.RLock()
	defer cs.mu.RUnlock()
	sec, ok := cs.sections[pos]
	if !ok {
		return false
	}
	return sec.solid[index]
}

func (cs *ChunkStore) UnloadSection(pos SectionPos) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	delete(cs.sections, pos)
}

func (cs *ChunkStore) LoadedSectionCount() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return len(cs.sections)
}

// SolidCount is the number of solid cells across all sections.
func (cs *ChunkStore) SolidCount() int {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	n := 0
	for _, sec := range cs.sections {
		n += sec.count
	}
	return n
}

func floorDiv16(v int) int {
	q := v / 16
	if v < 0 && v%16 != 0 {
		q--
	}
	return q
}

func floorMod16(v int) int {
	m := v % 16
	if m < 0 {
		m += 16
	}
	return m
}
