package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Versifine/stride/internal/config"
	"github.com/Versifine/stride/internal/debug"
	"github.com/Versifine/stride/internal/event"
	"github.com/Versifine/stride/internal/movement"
	"github.com/Versifine/stride/internal/physics"
	"github.com/Versifine/stride/internal/script"
	"github.com/Versifine/stride/internal/world"
	"golang.org/x/sync/errgroup"
)

const eventLogCapacity = 256

type options struct {
	configPath string
	console    bool
	script     string
	// ticks < 0 defers to the config.
	ticks int
	fast  bool
	watch bool
}

type scripted struct {
	handle world.Handle
	driver *script.Driver
}

// run builds the arena described by cfg and drives it until the tick budget
// is spent or ctx ends.
func run(ctx context.Context, cfg *config.Config, opts options, log *slog.Logger) (*world.Arena, error) {
	space := physics.NewSpace()
	spawns, err := cfg.Level.Build(space)
	if err != nil {
		return nil, fmt.Errorf("build level: %w", err)
	}
	charOpts, err := cfg.CharacterOptions()
	if err != nil {
		return nil, err
	}

	bus := event.NewBus()
	defer bus.Wait()
	subscribeLogging(bus, log)
	events := event.NewLog(eventLogCapacity)
	events.Attach(bus, event.EventStateChange, event.EventJump, event.EventLand, event.EventConfigReload)

	arena, err := world.NewArena(space, charOpts, bus, log.With("component", "world"))
	if err != nil {
		return nil, err
	}
	arena.SetWorkers(cfg.Simulation.Workers)

	handles := make([]world.Handle, 0, len(spawns))
	for _, s := range spawns {
		h, err := arena.Spawn(s.Name, s.Position, s.Look)
		if err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}

	scriptPath := cfg.Simulation.InputScript
	if opts.script != "" {
		scriptPath = opts.script
	}
	var drivers []scripted
	if scriptPath != "" {
		driver, err := script.Load(scriptPath)
		if err != nil {
			return nil, err
		}
		for i, h := range handles {
			if opts.console && i == 0 {
				continue
			}
			drivers = append(drivers, scripted{handle: h, driver: driver.Clone()})
		}
		log.Info("Input script loaded", "script", scriptPath, "characters", len(drivers))
	}

	ticks := cfg.Simulation.Ticks
	if opts.ticks >= 0 {
		ticks = opts.ticks
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return loop(ctx, arena, drivers, cfg, ticks, opts.fast)
	})

	if opts.console && len(handles) > 0 {
		console := debug.NewConsole(arena, handles[0])
		console.SetEventLog(events)
		g.Go(func() error {
			defer cancel()
			return console.Start(ctx)
		})
	}

	if opts.watch && opts.configPath != "" {
		w, err := config.NewWatcher(opts.configPath)
		if err != nil {
			log.Warn("Config watch unavailable", "path", opts.configPath, "error", err)
		} else {
			defer w.Close()
			g.Go(func() error {
				err := w.Reloads(ctx, func(next *config.Config, err error) {
					reload(arena, bus, log, opts.configPath, next, err)
				})
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		}
	}

	err = g.Wait()
	bus.Wait()
	if events.HasUrgent() {
		log.Warn("Config reloads were rejected during the run")
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return arena, err
	}
	return arena, nil
}

func loop(ctx context.Context, arena *world.Arena, drivers []scripted, cfg *config.Config, ticks int, fast bool) error {
	dt := cfg.TickSeconds()
	var ticker *time.Ticker
	if !fast {
		ticker = time.NewTicker(cfg.TickDuration())
		defer ticker.Stop()
	}

	for n := 0; ticks == 0 || n < ticks; n++ {
		if ticker != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		for _, d := range drivers {
			snap, ok := arena.SnapshotOf(d.handle)
			if !ok {
				continue
			}
			in, err := d.driver.Input(ctx, snap, dt)
			if err != nil {
				return err
			}
			if err := arena.SetInput(d.handle, in); err != nil {
				return err
			}
		}
		if err := arena.Step(ctx, dt); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	return nil
}

// reload applies a changed config's tuning. Geometry and capsule changes
// need a restart.
func reload(arena *world.Arena, bus *event.Bus, log *slog.Logger, path string, next *config.Config, err error) {
	if err == nil {
		var table *movement.Table
		table, err = next.Table()
		if err == nil {
			err = arena.Retune(table, next.Params())
		}
	}
	if err != nil {
		log.Warn("Config reload rejected, keeping previous tuning", "path", path, "error", err)
	} else {
		log.Info("Config reloaded", "path", path)
	}
	bus.Publish(event.EventConfigReload, event.ConfigReloadEvent{Path: path, Err: err})
}

func subscribeLogging(bus *event.Bus, log *slog.Logger) {
	bus.Subscribe(event.EventStateChange, func(raw any) {
		evt := raw.(event.StateChangeEvent)
		log.Debug("State change", "character", evt.Character, "tick", evt.Tick, "from", evt.From, "to", evt.To)
	})
	bus.Subscribe(event.EventJump, func(raw any) {
		evt := raw.(event.JumpEvent)
		log.Info("Jump", "character", evt.Character, "tick", evt.Tick, "kind", evt.Kind, "impulse", evt.Impulse)
	})
	bus.Subscribe(event.EventLand, func(raw any) {
		evt := raw.(event.LandEvent)
		log.Info("Land", "character", evt.Character, "tick", evt.Tick, "impact", evt.ImpactSpeed)
	})
}
