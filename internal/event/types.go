package event

const (
	EventStateChange  = "movement.state"
	EventJump         = "movement.jump"
	EventLand         = "movement.land"
	EventConfigReload = "config.reload"
)

// StateChangeEvent is published when a character's leaf state changes
// during a tick. States use the tuning table names.
type StateChangeEvent struct {
	Character string
	Tick      uint64
	From      string
	To        string
}

type JumpEvent struct {
	Character string
	Tick      uint64
	Kind      string
	Impulse   float64
}

// LandEvent carries the vertical speed the character had before touching
// down, for landing animations and sounds.
type LandEvent struct {
	Character   string
	Tick        uint64
	ImpactSpeed float64
	Normal      [3]float64
}

type ConfigReloadEvent struct {
	Path string
	Err  error
}
