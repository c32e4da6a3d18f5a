package debug

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Versifine/stride/internal/character"
	"github.com/Versifine/stride/internal/event"
	"github.com/Versifine/stride/internal/movement"
	"github.com/Versifine/stride/internal/world"
	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/term"
)

const (
	defaultTickInterval = 50 * time.Millisecond
	defaultMovePulse    = 180 * time.Millisecond
	yawStep             = 5.0
)

// Controller is the part of the arena the console drives.
type Controller interface {
	SetInput(h world.Handle, in movement.Input) error
	SnapshotOf(h world.Handle) (character.Snapshot, bool)
	Teleport(h world.Handle, pos mgl64.Vec3) error
	Terrain() *world.ChunkStore
	String() string
}

type keyState struct {
	forward, backward, left, right bool
	jump, crouch                   bool
	// yaw in degrees, 0 looks down +Z.
	yaw float64
}

// Console is a raw-mode terminal that steers one character.
type Console struct {
	arena        Controller
	handle       world.Handle
	events       *event.Log
	out          io.Writer
	tickInterval time.Duration
	movePulse    time.Duration

	mu            sync.Mutex
	keys          keyState
	forwardUntil  time.Time
	backwardUntil time.Time
	leftUntil     time.Time
	rightUntil    time.Time
	commandMode   bool
	commandBuf    []rune
	statusWidth   int
}

func NewConsole(arena Controller, handle world.Handle) *Console {
	return &Console{
		arena:        arena,
		handle:       handle,
		out:          os.Stdout,
		tickInterval: defaultTickInterval,
		movePulse:    defaultMovePulse,
	}
}

// SetEventLog enables the :events command.
func (c *Console) SetEventLog(l *event.Log) {
	c.events = l
}

func (c *Console) Start(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("console is nil")
	}
	if c.arena == nil {
		return fmt.Errorf("console arena is nil")
	}
	if _, ok := c.arena.SnapshotOf(c.handle); !ok {
		return fmt.Errorf("console character %d not found", c.handle)
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("set terminal raw mode: %w", err)
	}
	defer func() {
		_ = term.Restore(fd, oldState)
		fmt.Fprint(c.out, "\r\n")
	}()

	fmt.Fprint(c.out, "[debug] console started (W/A/S/D pulse, Space jump, C crouch, arrows, X, :)\r\n")
	c.renderStatusLine()

	go c.tickLoop(ctx)

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		b, err := reader.ReadByte()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read console input: %w", err)
		}
		c.handleKey(reader, b)
	}
}

func (c *Console) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.push(time.Now()); err != nil {
				slog.Debug("debug input rejected", "error", err)
			}
			c.renderStatusLine()
		}
	}
}

// push hands the current key state to the arena.
func (c *Console) push(now time.Time) error {
	return c.arena.SetInput(c.handle, c.input(now))
}

func (c *Console) handleKey(reader *bufio.Reader, b byte) {
	if c.isCommandMode() {
		c.handleCommandByte(b)
		return
	}

	switch b {
	case ':':
		c.enterCommandMode()
		return
	case 'w', 'W':
		c.pulse(&c.keys.forward, &c.forwardUntil, &c.keys.backward, &c.backwardUntil)
	case 's', 'S':
		c.pulse(&c.keys.backward, &c.backwardUntil, &c.keys.forward, &c.forwardUntil)
	case 'a', 'A':
		c.pulse(&c.keys.left, &c.leftUntil, &c.keys.right, &c.rightUntil)
	case 'd', 'D':
		c.pulse(&c.keys.right, &c.rightUntil, &c.keys.left, &c.leftUntil)
	case ' ':
		c.toggle(func(k *keyState) { k.jump = !k.jump })
	case 'c', 'C':
		c.toggle(func(k *keyState) { k.crouch = !k.crouch })
	case 'x', 'X':
		c.clearInput()
	case 27: // ESC + arrow sequence
		if reader == nil {
			return
		}
		next, err := reader.ReadByte()
		if err != nil || next != '[' {
			return
		}
		arrow, err := reader.ReadByte()
		if err != nil {
			return
		}
		switch arrow {
		case 'D': // left
			c.adjustYaw(-yawStep)
		case 'C': // right
			c.adjustYaw(yawStep)
		}
	}
	c.renderStatusLine()
}

func (c *Console) enterCommandMode() {
	c.mu.Lock()
	c.commandMode = true
	c.commandBuf = c.commandBuf[:0]
	c.mu.Unlock()
	fmt.Fprint(c.out, "\r\n:")
}

func (c *Console) handleCommandByte(b byte) {
	switch b {
	case 13, 10: // Enter
		c.mu.Lock()
		cmd := strings.TrimSpace(string(c.commandBuf))
		c.commandMode = false
		c.commandBuf = c.commandBuf[:0]
		c.mu.Unlock()

		fmt.Fprint(c.out, "\r\n")
		if cmd != "" {
			c.executeCommand(cmd)
		}
		c.renderStatusLine()
		return
	case 27: // ESC cancel command mode
		c.mu.Lock()
		c.commandMode = false
		c.commandBuf = c.commandBuf[:0]
		c.mu.Unlock()
		fmt.Fprint(c.out, "\r\n[debug] command cancelled\r\n")
		c.renderStatusLine()
		return
	case 8, 127: // Backspace
		c.mu.Lock()
		if len(c.commandBuf) > 0 {
			c.commandBuf = c.commandBuf[:len(c.commandBuf)-1]
		}
		buf := string(c.commandBuf)
		c.mu.Unlock()
		fmt.Fprintf(c.out, "\r:%s ", buf)
		fmt.Fprintf(c.out, "\r:%s", buf)
		return
	default:
		if b < 32 || b > 126 {
			return
		}
		c.mu.Lock()
		c.commandBuf = append(c.commandBuf, rune(b))
		buf := string(c.commandBuf)
		c.mu.Unlock()
		fmt.Fprintf(c.out, "\r:%s", buf)
	}
}

func (c *Console) executeCommand(cmd string) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return
	}

	switch parts[0] {
	case "help":
		c.printHelp()
	case "state":
		s, ok := c.arena.SnapshotOf(c.handle)
		if !ok {
			fmt.Fprint(c.out, "[debug] character is gone\r\n")
			return
		}
		fmt.Fprintf(c.out, "[debug] %s state=%s coyote=%.3f stuck=%.3f slide=%t normal=(%.2f,%.2f,%.2f)\r\n",
			s.Name, s.State, s.CoyoteTimer, s.StuckTimer, s.ForceSlide,
			s.LastNormal.X(), s.LastNormal.Y(), s.LastNormal.Z(),
		)
	case "snap":
		fmt.Fprintf(c.out, "[debug] %s\r\n", c.arena.String())
	case "tp":
		if len(parts) != 4 {
			fmt.Fprint(c.out, "[debug] usage: :tp <x> <y> <z>\r\n")
			return
		}
		pos, ok := parseVec(parts[1:])
		if !ok {
			fmt.Fprint(c.out, "[debug] invalid tp args\r\n")
			return
		}
		if err := c.arena.Teleport(c.handle, pos); err != nil {
			fmt.Fprintf(c.out, "[debug] tp failed: %v\r\n", err)
			return
		}
		fmt.Fprintf(c.out, "[debug] tp to (%.3f, %.3f, %.3f)\r\n", pos.X(), pos.Y(), pos.Z())
	case "block":
		c.handleBlockCommand(parts)
	case "events":
		c.handleEventsCommand(parts)
	case "look":
		if len(parts) != 4 {
			fmt.Fprint(c.out, "[debug] usage: :look <x> <y> <z>\r\n")
			return
		}
		target, ok := parseVec(parts[1:])
		if !ok {
			fmt.Fprint(c.out, "[debug] invalid look args\r\n")
			return
		}
		c.lookAt(target)
		fmt.Fprintf(c.out, "[debug] look at (%.3f, %.3f, %.3f)\r\n", target.X(), target.Y(), target.Z())
	default:
		fmt.Fprintf(c.out, "[debug] unknown command: %s\r\n", parts[0])
	}
}

func (c *Console) handleBlockCommand(parts []string) {
	if len(parts) != 4 && len(parts) != 5 {
		fmt.Fprint(c.out, "[debug] usage: :block <x> <y> <z> [on|off]\r\n")
		return
	}
	x, err1 := strconv.Atoi(parts[1])
	y, err2 := strconv.Atoi(parts[2])
	z, err3 := strconv.Atoi(parts[3])
	if err1 != nil || err2 != nil || err3 != nil {
		fmt.Fprint(c.out, "[debug] invalid block args\r\n")
		return
	}
	terrain := c.arena.Terrain()
	if len(parts) == 4 {
		fmt.Fprintf(c.out, "[debug] block (%d,%d,%d): solid=%t\r\n", x, y, z, terrain.IsSolid(x, y, z))
		return
	}
	var solid bool
	switch parts[4] {
	case "on":
		solid = true
	case "off":
	default:
		fmt.Fprint(c.out, "[debug] block state must be on or off\r\n")
		return
	}
	changed := terrain.SetSolid(x, y, z, solid)
	fmt.Fprintf(c.out, "[debug] block (%d,%d,%d): solid=%t changed=%t\r\n", x, y, z, solid, changed)
}

func (c *Console) handleEventsCommand(parts []string) {
	if c.events == nil {
		fmt.Fprint(c.out, "[debug] no event log attached\r\n")
		return
	}
	n := 10
	if len(parts) == 2 {
		v, err := strconv.Atoi(parts[1])
		if err != nil || v <= 0 {
			fmt.Fprint(c.out, "[debug] usage: :events [count]\r\n")
			return
		}
		n = v
	}
	records := c.events.Recent(n)
	if len(records) == 0 {
		fmt.Fprint(c.out, "[debug] no events yet\r\n")
		return
	}
	for _, rec := range records {
		fmt.Fprintf(c.out, "[debug] %s\r\n", rec)
	}
}

func (c *Console) lookAt(target mgl64.Vec3) {
	s, ok := c.arena.SnapshotOf(c.handle)
	if !ok {
		return
	}
	d := target.Sub(s.Position)
	if d.X() == 0 && d.Z() == 0 {
		return
	}
	yaw := math.Atan2(d.X(), d.Z()) * 180 / math.Pi

	c.mu.Lock()
	c.keys.yaw = normalizeYaw(yaw)
	c.mu.Unlock()
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, "[debug] keys:\r\n")
	fmt.Fprint(c.out, "  W/S/A/D: pulse movement (~180ms)\r\n")
	fmt.Fprint(c.out, "  Space: toggle jump\r\n")
	fmt.Fprint(c.out, "  C: toggle crouch\r\n")
	fmt.Fprint(c.out, "  Arrow Left/Right: yaw +/-5\r\n")
	fmt.Fprint(c.out, "  X: clear all input\r\n")
	fmt.Fprint(c.out, "  : enter command mode\r\n")
	fmt.Fprint(c.out, "[debug] commands:\r\n")
	fmt.Fprint(c.out, "  :look <x> <y> <z>\r\n")
	fmt.Fprint(c.out, "  :block <x> <y> <z> [on|off]\r\n")
	fmt.Fprint(c.out, "  :tp <x> <y> <z>\r\n")
	fmt.Fprint(c.out, "  :events [count]\r\n")
	fmt.Fprint(c.out, "  :state\r\n")
	fmt.Fprint(c.out, "  :snap\r\n")
	fmt.Fprint(c.out, "  :help\r\n")
}

func (c *Console) renderStatusLine() {
	c.mu.Lock()
	if c.commandMode {
		c.mu.Unlock()
		return
	}
	keys := c.keys
	width := c.statusWidth
	c.mu.Unlock()

	s, _ := c.arena.SnapshotOf(c.handle)
	line := fmt.Sprintf(
		"[FWD:%s JMP:%s CRH:%s | YAW:%.1f | %s | X:%.2f Y:%.2f Z:%.2f spd:%.2f ground:%t]",
		boolLabel(keys.forward),
		boolLabel(keys.jump),
		boolLabel(keys.crouch),
		keys.yaw,
		s.State.Leaf(),
		s.Position.X(),
		s.Position.Y(),
		s.Position.Z(),
		s.Speed(),
		s.Grounded,
	)

	padding := ""
	if width > len(line) {
		padding = strings.Repeat(" ", width-len(line))
	}
	fmt.Fprintf(c.out, "\r%s%s", line, padding)

	c.mu.Lock()
	if len(line) > c.statusWidth {
		c.statusWidth = len(line)
	}
	c.mu.Unlock()
}

func (c *Console) toggle(update func(*keyState)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	update(&c.keys)
}

func (c *Console) adjustYaw(delta float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys.yaw = normalizeYaw(c.keys.yaw + delta)
}

// input converts held keys into a character input, expiring stale pulses.
func (c *Console) input(now time.Time) movement.Input {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyMovementPulseLocked(now)

	var move mgl64.Vec2
	if c.keys.forward {
		move[1]++
	}
	if c.keys.backward {
		move[1]--
	}
	if c.keys.right {
		move[0]++
	}
	if c.keys.left {
		move[0]--
	}
	rad := c.keys.yaw * math.Pi / 180
	return movement.Input{
		Move:   move,
		Jump:   c.keys.jump,
		Crouch: c.keys.crouch,
		Look:   mgl64.Vec3{math.Sin(rad), 0, math.Cos(rad)},
	}
}

func (c *Console) isCommandMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.commandMode
}

func boolLabel(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func normalizeYaw(yaw float64) float64 {
	for yaw <= -180 {
		yaw += 360
	}
	for yaw > 180 {
		yaw -= 360
	}
	return yaw
}

func parseVec(parts []string) (mgl64.Vec3, bool) {
	var v mgl64.Vec3
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return mgl64.Vec3{}, false
		}
		v[i] = f
	}
	return v, true
}

// pulse holds one direction for movePulse and cancels its opposite.
func (c *Console) pulse(on *bool, until *time.Time, opposite *bool, oppositeUntil *time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	*on = true
	*until = time.Now().Add(c.movePulse)
	*opposite = false
	*oppositeUntil = time.Time{}
}

func (c *Console) applyMovementPulseLocked(now time.Time) {
	expire := func(on *bool, until *time.Time) {
		if !until.IsZero() && !now.Before(*until) {
			*on = false
			*until = time.Time{}
		}
	}
	expire(&c.keys.forward, &c.forwardUntil)
	expire(&c.keys.backward, &c.backwardUntil)
	expire(&c.keys.left, &c.leftUntil)
	expire(&c.keys.right, &c.rightUntil)
}

func (c *Console) clearInput() {
	c.mu.Lock()
	yaw := c.keys.yaw
	c.keys = keyState{yaw: yaw}
	c.forwardUntil = time.Time{}
	c.backwardUntil = time.Time{}
	c.leftUntil = time.Time{}
	c.rightUntil = time.Time{}
	c.mu.Unlock()
}
