package movement

import (
	"errors"
	"testing"
)

func TestTransitionGuardedByStuckTimer(t *testing.T) {
	m := NewMachine()
	m.Lock(0.05)

	prev, err := m.Transition(AirborneState(Falling))
	if !errors.Is(err, ErrStateLocked) {
		t.Fatalf("Transition() error = %v, want ErrStateLocked", err)
	}
	var te *TransitionError
	if !errors.As(err, &te) || te.Attempted != AirborneState(Falling) {
		t.Fatalf("Transition() error = %#v, want TransitionError for falling", err)
	}
	if m.State != GroundedState(Moving) || prev != GroundedState(Moving) {
		t.Fatalf("state = %s (prev %s), want unchanged moving", m.State, prev)
	}

	m.Tick(0.05, DefaultParams().CoyoteTime)
	prev, err = m.Transition(AirborneState(Falling))
	if err != nil {
		t.Fatalf("Transition() after lock expired error = %v", err)
	}
	if prev != GroundedState(Moving) || m.State != AirborneState(Falling) {
		t.Fatalf("Transition() = %s -> %s, want moving -> falling", prev, m.State)
	}
}

func TestSetIgnoresLock(t *testing.T) {
	m := NewMachine()
	m.Lock(1)
	prev := m.Set(AirborneState(Dive))
	if prev != GroundedState(Moving) || m.State != AirborneState(Dive) {
		t.Fatalf("Set() = %s -> %s, want moving -> dive", prev, m.State)
	}
}

func TestLockKeepsLongest(t *testing.T) {
	m := NewMachine()
	m.Lock(0.3)
	m.Lock(0.1)
	if m.StuckTimer != 0.3 {
		t.Fatalf("StuckTimer = %v, want 0.3", m.StuckTimer)
	}
}

func TestTick(t *testing.T) {
	m := Machine{State: AirborneState(Falling), CoyoteTimer: 0.01, StuckTimer: 0.02}
	m.Tick(0.1, 0.25)
	if m.CoyoteTimer != 0 || m.StuckTimer != 0 {
		t.Fatalf("timers = (%v, %v), want clamped to 0", m.CoyoteTimer, m.StuckTimer)
	}

	m.Set(GroundedState(Crouched))
	m.Tick(0.1, 0.25)
	if m.CoyoteTimer != 0.25 {
		t.Fatalf("CoyoteTimer = %v, want refreshed to 0.25 while grounded", m.CoyoteTimer)
	}
}

func TestJumpOutcomes(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		name     string
		state    State
		coyote   float64
		wantKind JumpKind
		wantErr  error
	}{
		{name: "moving", state: GroundedState(Moving), wantKind: JumpNormal},
		{name: "sliding", state: GroundedState(Sliding), wantKind: JumpNormal},
		{name: "crouched", state: GroundedState(Crouched), wantKind: JumpCrouch},
		{name: "dive", state: AirborneState(Dive), wantKind: JumpDive},
		{name: "late jump from glide", state: AirborneState(Glide), coyote: 0.1, wantKind: JumpNormal},
		{name: "falling without coyote", state: AirborneState(Falling), wantErr: ErrNoCoyoteTime},
		{name: "already jumping", state: JumpState(NewJump(JumpNormal, 0.1)), wantErr: ErrNoCoyoteTime},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Machine{State: tt.state, CoyoteTimer: tt.coyote}
			jump, err := m.Jump(p)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Jump() error = %v, want %v", err, tt.wantErr)
				}
				if m.State != tt.state {
					t.Fatalf("state = %s, want unchanged %s", m.State, tt.state)
				}
				return
			}
			if err != nil {
				t.Fatalf("Jump() error = %v", err)
			}
			if jump.Kind != tt.wantKind || jump.TimeLeft != p.JumpDuration {
				t.Fatalf("Jump() = %+v, want %s(%v)", jump, tt.wantKind, p.JumpDuration)
			}
			if m.State != JumpState(jump) {
				t.Fatalf("state = %s, want %s", m.State, JumpState(jump))
			}
			if m.CoyoteTimer != 0 {
				t.Fatalf("CoyoteTimer = %v, want 0 after jump", m.CoyoteTimer)
			}
			if m.StuckTimer != p.JumpLock {
				t.Fatalf("StuckTimer = %v, want %v", m.StuckTimer, p.JumpLock)
			}
		})
	}
}

func TestJumpCoyoteBoundary(t *testing.T) {
	p := DefaultParams()

	m := Machine{State: AirborneState(Falling), CoyoteTimer: 0.001}
	jump, err := m.Jump(p)
	if err != nil {
		t.Fatalf("Jump() at coyote 0.001 error = %v", err)
	}
	if jump.Kind != JumpNormal || m.CoyoteTimer != 0 {
		t.Fatalf("Jump() = %+v coyote=%v, want normal jump and coyote 0", jump, m.CoyoteTimer)
	}

	m = Machine{State: AirborneState(Falling), CoyoteTimer: 0}
	if _, err := m.Jump(p); !errors.Is(err, ErrNoCoyoteTime) {
		t.Fatalf("Jump() at coyote 0 error = %v, want ErrNoCoyoteTime", err)
	}
	if m.State != AirborneState(Falling) {
		t.Fatalf("state = %s, want falling", m.State)
	}
}

func TestJumpWhileLocked(t *testing.T) {
	m := NewMachine()
	m.Lock(0.1)
	_, err := m.Jump(DefaultParams())
	if !errors.Is(err, ErrCannotJump) || !errors.Is(err, ErrStateLocked) {
		t.Fatalf("Jump() error = %v, want ErrCannotJump wrapping ErrStateLocked", err)
	}
	if m.State != GroundedState(Moving) {
		t.Fatalf("state = %s, want moving", m.State)
	}
}

func TestUpdateJump(t *testing.T) {
	const dt = 1.0 / 60

	t.Run("timer expiry ignores input and lock", func(t *testing.T) {
		m := Machine{State: JumpState(NewJump(JumpNormal, 0.01)), StuckTimer: 1}
		if err := m.UpdateJump(dt, true, 3); err != nil {
			t.Fatalf("UpdateJump() error = %v", err)
		}
		if m.State != AirborneState(Falling) {
			t.Fatalf("state = %s, want falling", m.State)
		}
	})

	t.Run("held and rising keeps jumping", func(t *testing.T) {
		m := Machine{State: JumpState(NewJump(JumpCrouch, 0.2))}
		if err := m.UpdateJump(dt, true, 3); err != nil {
			t.Fatalf("UpdateJump() error = %v", err)
		}
		if !m.State.IsJumping() || m.State.Jump.Kind != JumpCrouch {
			t.Fatalf("state = %s, want crouch jump", m.State)
		}
		approxEqual(t, m.State.Jump.TimeLeft, 0.2-dt, 1e-12, "TimeLeft")
	})

	t.Run("release during lock is rejected", func(t *testing.T) {
		m := Machine{State: JumpState(NewJump(JumpNormal, 0.2)), StuckTimer: 0.05}
		if err := m.UpdateJump(dt, false, 3); !errors.Is(err, ErrStateLocked) {
			t.Fatalf("UpdateJump() error = %v, want ErrStateLocked", err)
		}
		if !m.State.IsJumping() {
			t.Fatalf("state = %s, want still jumping", m.State)
		}
	})

	t.Run("descending ends jump", func(t *testing.T) {
		m := Machine{State: JumpState(NewJump(JumpDive, 0.2))}
		if err := m.UpdateJump(dt, true, -0.1); err != nil {
			t.Fatalf("UpdateJump() error = %v", err)
		}
		if m.State != AirborneState(Falling) {
			t.Fatalf("state = %s, want falling", m.State)
		}
	})

	t.Run("not jumping is a no-op", func(t *testing.T) {
		m := Machine{State: AirborneState(Glide)}
		if err := m.UpdateJump(dt, false, -1); err != nil {
			t.Fatalf("UpdateJump() error = %v", err)
		}
		if m.State != AirborneState(Glide) {
			t.Fatalf("state = %s, want glide", m.State)
		}
	})
}

func TestSyncGround(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		grounded bool
		want     State
	}{
		{name: "walked off ledge", state: GroundedState(Sliding), grounded: false, want: AirborneState(Falling)},
		{name: "landed", state: AirborneState(Dive), grounded: true, want: GroundedState(Moving)},
		{name: "still grounded", state: GroundedState(Crouched), grounded: true, want: GroundedState(Crouched)},
		{name: "still airborne", state: AirborneState(Glide), grounded: false, want: AirborneState(Glide)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Machine{State: tt.state}
			if err := m.SyncGround(tt.grounded); err != nil {
				t.Fatalf("SyncGround() error = %v", err)
			}
			if m.State != tt.want {
				t.Fatalf("state = %s, want %s", m.State, tt.want)
			}
		})
	}
}

func TestSyncGroundLockedJumpSurvivesFloorContact(t *testing.T) {
	m := NewMachine()
	if _, err := m.Jump(DefaultParams()); err != nil {
		t.Fatalf("Jump() error = %v", err)
	}
	if err := m.SyncGround(true); !errors.Is(err, ErrStateLocked) {
		t.Fatalf("SyncGround() error = %v, want ErrStateLocked", err)
	}
	if !m.State.IsJumping() {
		t.Fatalf("state = %s, want jumping", m.State)
	}
}
