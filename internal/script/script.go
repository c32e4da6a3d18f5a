// Package script drives characters from tengo scripts. A script defines
//
//	input := func(ctx, mem) { return {move_x: 0, move_y: 1, jump: false} }
//
// and is called once per tick. ctx describes the character, mem is a map the
// script owns across ticks.
package script

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Versifine/stride/internal/character"
	"github.com/Versifine/stride/internal/movement"
	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/go-gl/mathgl/mgl64"
)

const dispatchScript = `
if __phase == "tick" {
	__out = input(__ctx, __memory)
}
`

// Driver is a compiled input script bound to one character. It is not safe
// for concurrent use; Clone one per character.
type Driver struct {
	name     string
	compiled *tengo.Compiled
	memory   *tengo.Map
}

func Load(path string) (*Driver, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", path, err)
	}
	return New(path, src)
}

// New compiles src and checks that it defines an input function.
func New(name string, src []byte) (*Driver, error) {
	s := tengo.NewScript([]byte(string(src) + "\n" + dispatchScript))
	_ = s.Add("__phase", "")
	_ = s.Add("__ctx", map[string]any{})
	_ = s.Add("__memory", map[string]any{})
	_ = s.Add("__out", map[string]any{})
	s.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	compiled, err := s.Compile()
	if err != nil {
		return nil, fmt.Errorf("compile script %s: %w", name, err)
	}
	d := &Driver{
		name:     name,
		compiled: compiled,
		memory:   &tengo.Map{Value: map[string]tengo.Object{}},
	}
	if err := d.run(context.Background(), "load", map[string]any{}); err != nil {
		return nil, fmt.Errorf("script %s: %w", name, err)
	}
	switch compiled.Get("input").Object().(type) {
	case *tengo.CompiledFunction, *tengo.UserFunction:
	default:
		return nil, fmt.Errorf("script %s: global 'input' must be a function", name)
	}
	return d, nil
}

func (d *Driver) Name() string { return d.name }

// Clone returns an independent driver with fresh memory.
func (d *Driver) Clone() *Driver {
	return &Driver{
		name:     d.name,
		compiled: d.compiled.Clone(),
		memory:   &tengo.Map{Value: map[string]tengo.Object{}},
	}
}

func (d *Driver) run(ctx context.Context, phase string, sctx map[string]any) error {
	if err := d.compiled.Set("__phase", phase); err != nil {
		return err
	}
	if err := d.compiled.Set("__ctx", sctx); err != nil {
		return err
	}
	if err := d.compiled.Set("__memory", d.memory); err != nil {
		return err
	}
	if err := d.compiled.Set("__out", tengo.UndefinedValue); err != nil {
		return err
	}
	return d.compiled.RunContext(ctx)
}

// Input runs the script for the character described by snap.
func (d *Driver) Input(ctx context.Context, snap character.Snapshot, dt float64) (movement.Input, error) {
	if d == nil || d.compiled == nil {
		return movement.Input{}, fmt.Errorf("nil script driver")
	}
	if err := d.run(ctx, "tick", scriptContext(snap, dt)); err != nil {
		return movement.Input{}, fmt.Errorf("script %s: %w", d.name, err)
	}
	out := d.compiled.Get("__out")
	if out.IsUndefined() {
		return movement.Input{}, nil
	}
	raw, ok := out.Value().(map[string]any)
	if !ok {
		return movement.Input{}, fmt.Errorf("script %s: input must return a map, got %s", d.name, out.ValueType())
	}
	return decodeInput(raw)
}

func scriptContext(s character.Snapshot, dt float64) map[string]any {
	return map[string]any{
		"name":     s.Name,
		"tick":     int64(s.Tick),
		"time":     float64(s.Tick) * dt,
		"dt":       dt,
		"state":    s.State.Leaf().String(),
		"grounded": s.Grounded,
		"speed":    s.Speed(),
		"yaw":      s.Yaw,
		"pos":      vecToArray(s.Position),
		"vel":      vecToArray(s.Velocity),
	}
}

func vecToArray(v mgl64.Vec3) []any {
	return []any{v.X(), v.Y(), v.Z()}
}

func decodeInput(raw map[string]any) (movement.Input, error) {
	var in movement.Input
	for key, v := range raw {
		var err error
		switch strings.ToLower(key) {
		case "move_x":
			in.Move[0], err = number(key, v)
		case "move_y":
			in.Move[1], err = number(key, v)
		case "jump":
			in.Jump, err = boolean(key, v)
		case "crouch":
			in.Crouch, err = boolean(key, v)
		case "look":
			in.Look, err = vector(key, v)
		default:
			err = fmt.Errorf("unknown input field %q", key)
		}
		if err != nil {
			return movement.Input{}, err
		}
	}
	return in, nil
}

func number(key string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%s must be a number, got %T", key, v)
	}
}

func boolean(key string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%s must be a bool, got %T", key, v)
	}
	return b, nil
}

func vector(key string, v any) (mgl64.Vec3, error) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 3 {
		return mgl64.Vec3{}, fmt.Errorf("%s must be an array of 3 numbers", key)
	}
	var out mgl64.Vec3
	for i, item := range arr {
		f, err := number(key, item)
		if err != nil {
			return mgl64.Vec3{}, err
		}
		out[i] = f
	}
	return out, nil
}
