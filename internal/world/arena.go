// Package world hosts the characters of one run: the collision space they
// share, their latest inputs and the fixed-step update that advances them.
package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/Versifine/stride/internal/character"
	"github.com/Versifine/stride/internal/event"
	"github.com/Versifine/stride/internal/movement"
	"github.com/Versifine/stride/internal/physics"
	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnknownHandle = errors.New("unknown character handle")
	ErrDuplicateName = errors.New("character name already in use")
)

// Handle identifies a spawned character for the lifetime of the arena.
type Handle uint32

type member struct {
	char  *character.Character
	input movement.Input
}

// Arena owns a physics space plus every character moving through it. All
// methods are safe for concurrent use.
type Arena struct {
	mu      sync.RWMutex
	space   *physics.Space
	terrain *ChunkStore
	opts    character.Options
	bus     *event.Bus
	log     *slog.Logger
	workers int

	members map[Handle]*member
	names   map[string]Handle
	order   []Handle
	next    Handle
	tick    uint64
}

// NewArena wraps space. An editable voxel layer is added to it so terrain
// can change while the run is live.
func NewArena(space *physics.Space, opts character.Options, bus *event.Bus, log *slog.Logger) (*Arena, error) {
	if space == nil {
		return nil, errors.New("space is nil")
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	terrain := NewChunkStore()
	space.AddGrid(physics.Grid{Store: terrain})
	return &Arena{
		space:   space,
		terrain: terrain,
		opts:    opts,
		bus:     bus,
		log:     log,
		workers: 1,
		members: make(map[Handle]*member),
		names:   make(map[string]Handle),
	}, nil
}

// SetWorkers bounds how many characters are stepped in parallel.
func (a *Arena) SetWorkers(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.workers = max(n, 1)
}

func (a *Arena) Space() *physics.Space { return a.space }

func (a *Arena) Terrain() *ChunkStore { return a.terrain }

func (a *Arena) Spawn(name string, pos, look mgl64.Vec3) (Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.names[name]; ok {
		return 0, fmt.Errorf("%w: %s", ErrDuplicateName, name)
	}
	c, err := character.New(name, pos, a.opts, character.Env{
		Caster: a.space,
		Tags:   a.space,
		Self:   a.space.Reserve(),
		Bus:    a.bus,
		Logger: a.log,
	})
	if err != nil {
		return 0, err
	}
	if look.Len() > 0 {
		c.Look = look
	}

	a.next++
	h := a.next
	a.members[h] = &member{char: c}
	a.names[name] = h
	a.order = append(a.order, h)
	a.log.Info("Character spawned", "character", name, "handle", h, "x", pos.X(), "y", pos.Y(), "z", pos.Z())
	return h, nil
}

func (a *Arena) Despawn(h Handle) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.members[h]
	if !ok {
		return false
	}
	delete(a.members, h)
	delete(a.names, m.char.Name())
	a.order = slices.DeleteFunc(a.order, func(o Handle) bool { return o == h })
	a.log.Info("Character despawned", "character", m.char.Name(), "handle", h)
	return true
}

func (a *Arena) Lookup(name string) (Handle, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	h, ok := a.names[name]
	return h, ok
}

func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.members)
}

func (a *Arena) Tick() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tick
}

// SetInput replaces the held input used for h on the following ticks.
func (a *Arena) SetInput(h Handle, in movement.Input) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.members[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	m.input = in
	return nil
}

func (a *Arena) Teleport(h Handle, pos mgl64.Vec3) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.members[h]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownHandle, h)
	}
	m.char.Teleport(pos)
	return nil
}

// Retune applies new tuning to every character and to later spawns. Nothing
// changes if any character rejects it.
func (a *Arena) Retune(table *movement.Table, params movement.Params) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	opts := a.opts
	opts.Table = table
	opts.Params = params
	if err := opts.Validate(); err != nil {
		return err
	}
	for _, h := range a.order {
		if err := a.members[h].char.Retune(table, params); err != nil {
			return fmt.Errorf("retune %s: %w", a.members[h].char.Name(), err)
		}
	}
	a.opts.Table = table
	a.opts.Params = params
	return nil
}

// Step advances every character by dt seconds. Characters only collide with
// the static space, so they are stepped independently.
func (a *Arena) Step(ctx context.Context, dt float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for _, h := range a.order {
		m := a.members[h]
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := m.char.Step(m.input, dt); err != nil {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	a.tick++
	return nil
}

// Snapshot returns every character's state in spawn order.
func (a *Arena) Snapshot() []character.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]character.Snapshot, 0, len(a.order))
	for _, h := range a.order {
		out = append(out, a.members[h].char.Snapshot())
	}
	return out
}

func (a *Arena) SnapshotOf(h Handle) (character.Snapshot, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.members[h]
	if !ok {
		return character.Snapshot{}, false
	}
	return m.char.Snapshot(), true
}

func (a *Arena) String() string {
	snaps := a.Snapshot()
	parts := make([]string, 0, len(snaps))
	for _, s := range snaps {
		parts = append(parts, s.String())
	}
	return fmt.Sprintf("Arena [Tick: %d] | [Characters(%d): %s]", a.Tick(), len(snaps), strings.Join(parts, "; "))
}
