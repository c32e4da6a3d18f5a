package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/Versifine/stride/internal/body"
	"github.com/Versifine/stride/internal/character"
	"github.com/Versifine/stride/internal/movement"
	"github.com/Versifine/stride/internal/physics"
	"github.com/Versifine/stride/internal/slide"
	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Simulation SimulationConfig          `yaml:"simulation"`
	Character  CharacterConfig           `yaml:"character"`
	Movement   map[string]TuningOverride `yaml:"movement"`
	Level      LevelConfig               `yaml:"level"`
	Logging    LoggingConfig             `yaml:"logging"`
}

type SimulationConfig struct {
	TickRate int `yaml:"tick_rate"`
	// Ticks stops the runner after that many ticks; 0 runs until interrupted.
	Ticks       int    `yaml:"ticks"`
	Workers     int    `yaml:"workers"`
	InputScript string `yaml:"input_script"`
}

type CharacterConfig struct {
	Radius         float64    `yaml:"radius"`
	Height         float64    `yaml:"height"`
	Up             [3]float64 `yaml:"up"`
	MaxDotVariance float64    `yaml:"max_dot_variance"`
	// SnapDistance of 0 disables ground snapping.
	SnapDistance            float64 `yaml:"snap_distance"`
	SkinWidth               float64 `yaml:"skin_width"`
	Iterations              int     `yaml:"iterations"`
	Epsilon                 float64 `yaml:"epsilon"`
	DepenetrationIterations int     `yaml:"depenetration_iterations"`

	SlideEnterSpeed      float64 `yaml:"slide_enter_speed"`
	SlideExitSpeed       float64 `yaml:"slide_exit_speed"`
	ForceSlideMinSpeedSq float64 `yaml:"force_slide_min_speed_sq"`
	CoyoteTime           float64 `yaml:"coyote_time"`
	VerticalDamping      float64 `yaml:"vertical_damping"`
	JumpDuration         float64 `yaml:"jump_duration"`
	JumpLock             float64 `yaml:"jump_lock"`
	OverspeedMargin      float64 `yaml:"overspeed_margin"`
	MinInputSq           float64 `yaml:"min_input_sq"`
	FacingMinSpeedSq     float64 `yaml:"facing_min_speed_sq"`
}

// TuningOverride replaces only the fields it sets on a state's default row.
type TuningOverride struct {
	MaxSpeed     *float64 `yaml:"max_speed"`
	Acceleration *float64 `yaml:"acceleration"`
	RotationRate *float64 `yaml:"rotation_rate"`
	GravityUp    *float64 `yaml:"gravity_up"`
	GravityDown  *float64 `yaml:"gravity_down"`
	Terminal     *float64 `yaml:"terminal"`
	JumpImpulse  *float64 `yaml:"jump_impulse"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

func Default() *Config {
	p := movement.DefaultParams()
	return &Config{
		Simulation: SimulationConfig{TickRate: 60, Workers: 1},
		Character: CharacterConfig{
			Radius:                  physics.DefaultCapsuleRadius,
			Height:                  physics.DefaultCapsuleHeight,
			Up:                      [3]float64{0, 1, 0},
			MaxDotVariance:          body.DefaultMaxDotVariance,
			SnapDistance:            body.DefaultSnapDistance,
			SkinWidth:               slide.DefaultSkinWidth,
			Iterations:              slide.DefaultIterations,
			Epsilon:                 slide.DefaultEpsilon,
			DepenetrationIterations: slide.DefaultDepenetrationIterations,
			SlideEnterSpeed:         p.SlideEnterSpeed,
			SlideExitSpeed:          p.SlideExitSpeed,
			ForceSlideMinSpeedSq:    p.ForceSlideMinSpeedSq,
			CoyoteTime:              p.CoyoteTime,
			VerticalDamping:         p.VerticalDamping,
			JumpDuration:            p.JumpDuration,
			JumpLock:                p.JumpLock,
			OverspeedMargin:         p.OverspeedMargin,
			MinInputSq:              p.MinInputSq,
			FacingMinSpeedSq:        p.FacingMinSpeedSq,
		},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Simulation.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("simulation.tick_rate must be positive, got %d", c.Simulation.TickRate))
	}
	if c.Simulation.Ticks < 0 {
		errs = append(errs, fmt.Errorf("simulation.ticks must not be negative, got %d", c.Simulation.Ticks))
	}
	if c.Simulation.Workers <= 0 {
		errs = append(errs, fmt.Errorf("simulation.workers must be positive, got %d", c.Simulation.Workers))
	}

	ch := c.Character
	if !(ch.Radius > 0) {
		errs = append(errs, fmt.Errorf("character.radius must be positive, got %v", ch.Radius))
	}
	if !(ch.Height > 0) {
		errs = append(errs, fmt.Errorf("character.height must be positive, got %v", ch.Height))
	}
	if up := vec(ch.Up); !(up.Len() > 0) {
		errs = append(errs, errors.New("character.up must be non-zero"))
	}
	if ch.SnapDistance < 0 || math.IsNaN(ch.SnapDistance) {
		errs = append(errs, fmt.Errorf("character.snap_distance must not be negative, got %v", ch.SnapDistance))
	}
	if ch.SkinWidth < 0 || math.IsNaN(ch.SkinWidth) {
		errs = append(errs, fmt.Errorf("character.skin_width must not be negative, got %v", ch.SkinWidth))
	}
	if ch.Iterations <= 0 {
		errs = append(errs, fmt.Errorf("character.iterations must be positive, got %d", ch.Iterations))
	}
	if ch.DepenetrationIterations < 0 {
		errs = append(errs, fmt.Errorf("character.depenetration_iterations must not be negative, got %d", ch.DepenetrationIterations))
	}
	if err := c.Params().Validate(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Table(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Level.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Config) TickDuration() time.Duration {
	return time.Second / time.Duration(c.Simulation.TickRate)
}

// TickSeconds is the fixed simulation step.
func (c *Config) TickSeconds() float64 {
	return 1 / float64(c.Simulation.TickRate)
}

func (c *Config) Params() movement.Params {
	ch := c.Character
	return movement.Params{
		SlideEnterSpeed:      ch.SlideEnterSpeed,
		SlideExitSpeed:       ch.SlideExitSpeed,
		ForceSlideMinSpeedSq: ch.ForceSlideMinSpeedSq,
		CoyoteTime:           ch.CoyoteTime,
		VerticalDamping:      ch.VerticalDamping,
		JumpDuration:         ch.JumpDuration,
		JumpLock:             ch.JumpLock,
		OverspeedMargin:      ch.OverspeedMargin,
		MinInputSq:           ch.MinInputSq,
		FacingMinSpeedSq:     ch.FacingMinSpeedSq,
	}
}

// Table applies the movement overrides to the default table.
func (c *Config) Table() (*movement.Table, error) {
	rows := movement.DefaultTable().Rows()
	for name, o := range c.Movement {
		leaf, err := movement.ParseLeaf(name)
		if err != nil {
			return nil, fmt.Errorf("movement: %w", err)
		}
		rows[leaf] = o.apply(rows[leaf])
	}
	return movement.NewTable(rows)
}

func (o TuningOverride) apply(row movement.Tuning) movement.Tuning {
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&row.Stats.MaxSpeed, o.MaxSpeed)
	set(&row.Stats.Acceleration, o.Acceleration)
	set(&row.Stats.RotationRate, o.RotationRate)
	set(&row.Gravity.Up, o.GravityUp)
	set(&row.Gravity.Down, o.GravityDown)
	set(&row.Gravity.Terminal, o.Terminal)
	set(&row.JumpImpulse, o.JumpImpulse)
	return row
}

func (c *Config) Capsule() physics.Capsule {
	return physics.CapsuleFromHeight(c.Character.Radius, c.Character.Height)
}

func (c *Config) Up() mgl64.Vec3 {
	return vec(c.Character.Up).Normalize()
}

func (c *Config) SlideConfig() slide.Config {
	return slide.Config{
		Iterations:              c.Character.Iterations,
		SkinWidth:               c.Character.SkinWidth,
		Epsilon:                 c.Character.Epsilon,
		DepenetrationIterations: c.Character.DepenetrationIterations,
	}
}

// Snap returns nil when snapping is disabled.
func (c *Config) Snap() *body.GroundSnap {
	if c.Character.SnapDistance <= 0 {
		return nil
	}
	return &body.GroundSnap{Distance: c.Character.SnapDistance}
}

// CharacterOptions bundles everything a character is built from.
func (c *Config) CharacterOptions() (character.Options, error) {
	table, err := c.Table()
	if err != nil {
		return character.Options{}, err
	}
	return character.Options{
		Shape:          c.Capsule(),
		Up:             c.Up(),
		MaxDotVariance: c.Character.MaxDotVariance,
		Snap:           c.Snap(),
		Slide:          c.SlideConfig(),
		Params:         c.Params(),
		Table:          table,
	}, nil
}
