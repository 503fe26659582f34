// Package headless is a window-less front-end. Input comes from a script of
// per-frame events and the screen is kept in memory so it can be printed as text.
package headless

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kapitanov/chip8vm/internal/emulator"
	"github.com/kapitanov/chip8vm/internal/vm"
)

type EventKind uint8

const (
	KeyDown EventKind = iota
	KeyUp
	Command
	Quit
	Reboot
)

// Event happens when the front-end reads input for the given frame.
type Event struct {
	Frame   int
	Kind    EventKind
	Key     vm.Key
	Command emulator.Command
}

type HAL struct {
	events []Event
	frame  int
	draws  int
	gfx    [vm.ScreenSize]uint8
}

func New(events []Event) *HAL {
	return &HAL{events: events}
}

// ParseScript parses comma separated FRAME=ACTION entries. ACTION is a hex key
// to press, -KEY to release it, or one of quit, reboot, pause, step and dump.
// For example "10=5,12=-5,60=quit".
func ParseScript(script string) ([]Event, error) {
	var events []Event

	for _, entry := range strings.Split(script, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		frameText, action, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid script entry %q: expected FRAME=ACTION", entry)
		}

		frame, err := strconv.Atoi(frameText)
		if err != nil || frame < 0 {
			return nil, fmt.Errorf("invalid frame in script entry %q", entry)
		}

		ev, err := parseAction(action)
		if err != nil {
			return nil, fmt.Errorf("invalid script entry %q: %w", entry, err)
		}
		ev.Frame = frame
		events = append(events, ev)
	}

	return events, nil
}

func parseAction(action string) (Event, error) {
	switch strings.ToLower(action) {
	case "quit":
		return Event{Kind: Quit}, nil
	case "reboot":
		return Event{Kind: Reboot}, nil
	case "pause":
		return Event{Kind: Command, Command: emulator.CommandPause}, nil
	case "step":
		return Event{Kind: Command, Command: emulator.CommandStep}, nil
	case "dump":
		return Event{Kind: Command, Command: emulator.CommandDump}, nil
	}

	kind := KeyDown
	if rest, ok := strings.CutPrefix(action, "-"); ok {
		kind = KeyUp
		action = rest
	}

	key, err := strconv.ParseUint(action, 16, 8)
	if err != nil || key >= vm.KeyCount {
		return Event{}, fmt.Errorf("unknown action %q", action)
	}

	return Event{Kind: kind, Key: vm.Key(key)}, nil
}

func (h *HAL) ReadInput(in emulator.Input) error {
	frame := h.frame
	h.frame++

	for _, ev := range h.events {
		if ev.Frame != frame {
			continue
		}

		switch ev.Kind {
		case KeyDown:
			in.KeyDown(ev.Key)
		case KeyUp:
			in.KeyUp(ev.Key)
		case Command:
			in.Command(ev.Command)
		case Quit:
			return emulator.ErrQuit
		case Reboot:
			return emulator.ErrReboot
		}
	}

	return nil
}

func (h *HAL) Draw(gfx []uint8) error {
	copy(h.gfx[:], gfx)
	h.draws++
	return nil
}

func (h *HAL) WaitForNextFrame() error {
	return nil
}

// Draws returns how many times the screen was redrawn.
func (h *HAL) Draws() int {
	return h.draws
}

// Render returns the last drawn screen, one line per row.
func (h *HAL) Render() string {
	var sb strings.Builder
	sb.Grow((vm.ScreenWidth + 1) * vm.ScreenHeight * 3)

	for y := 0; y < vm.ScreenHeight; y++ {
		for x := 0; x < vm.ScreenWidth; x++ {
			if h.gfx[y*vm.ScreenWidth+x] != 0 {
				sb.WriteRune('█')
			} else {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}
