// Package config holds the run configuration of the emulator and binds it to
// command line flags.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/kapitanov/chip8vm/internal/emulator"
	"github.com/kapitanov/chip8vm/internal/headless"
	"github.com/kapitanov/chip8vm/internal/vm"
	"github.com/spf13/pflag"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Verbose bool

	Scale          int
	CyclesPerFrame int
	FrameRate      int
	Seed           uint64

	Headless  bool
	MaxFrames int
	Keys      string

	HaltPolicy  string
	Paused      bool
	ReleaseKeys bool

	WrapSprites        bool
	ResetCollisionFlag bool
	MaskIndex          bool

	Foreground string
	Background string
}

func Default() *Config {
	return &Config{
		Scale:          16,
		CyclesPerFrame: 10,
		FrameRate:      60,
		HaltPolicy:     string(emulator.HaltIdle),
		ReleaseKeys:    true,
		Foreground:     "#bea700",
		Background:     "#000000",
	}
}

// BindFlags registers a flag for every field. Values already in c are the defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&c.Verbose, "verbose", "v", c.Verbose, "enable verbose logging")

	fs.IntVar(&c.Scale, "scale", c.Scale, "window pixels per screen pixel")
	fs.IntVar(&c.CyclesPerFrame, "cycles-per-frame", c.CyclesPerFrame, "instructions executed per frame")
	fs.IntVar(&c.FrameRate, "frame-rate", c.FrameRate, "frames per second, timers tick once per frame")
	fs.Uint64Var(&c.Seed, "seed", c.Seed, "seed for the random number instruction, 0 picks a random seed")

	fs.BoolVar(&c.Headless, "headless", c.Headless, "run without a window and print the final screen")
	fs.IntVar(&c.MaxFrames, "max-frames", c.MaxFrames, "stop after this many frames, 0 runs until quit")
	fs.StringVar(&c.Keys, "keys", c.Keys, `headless input script, e.g. "10=5,12=-5,60=quit"`)

	fs.StringVar(&c.HaltPolicy, "halt-policy", c.HaltPolicy, "what to do when an instruction fails: stop or idle")
	fs.BoolVar(&c.Paused, "paused", c.Paused, "start paused")
	fs.BoolVar(&c.ReleaseKeys, "release-keys", c.ReleaseKeys, "release keypad keys on key up")

	fs.BoolVar(&c.WrapSprites, "quirk-wrap", c.WrapSprites, "wrap sprites around the screen edges instead of clipping")
	fs.BoolVar(&c.ResetCollisionFlag, "quirk-reset-vf", c.ResetCollisionFlag, "reset VF before every sprite draw")
	fs.BoolVar(&c.MaskIndex, "quirk-mask-index", c.MaskIndex, "mask the index register to 12 bits")

	fs.StringVar(&c.Foreground, "fg", c.Foreground, "foreground color as #rrggbb")
	fs.StringVar(&c.Background, "bg", c.Background, "background color as #rrggbb")
}

func (c *Config) Validate() error {
	var errs []error

	if c.Scale <= 0 {
		errs = append(errs, fmt.Errorf("scale must be positive, got %d", c.Scale))
	}
	if c.CyclesPerFrame <= 0 {
		errs = append(errs, fmt.Errorf("cycles-per-frame must be positive, got %d", c.CyclesPerFrame))
	}
	if c.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("frame-rate must be positive, got %d", c.FrameRate))
	}
	if c.MaxFrames < 0 {
		errs = append(errs, fmt.Errorf("max-frames must not be negative, got %d", c.MaxFrames))
	}
	if !c.Headless && c.Keys != "" {
		errs = append(errs, errors.New("keys is only used in headless mode"))
	}
	if c.Headless {
		events, err := headless.ParseScript(c.Keys)
		if err != nil {
			errs = append(errs, fmt.Errorf("keys: %w", err))
		} else if c.MaxFrames == 0 && !quits(events) {
			errs = append(errs, errors.New("headless mode needs max-frames or a quit in the key script"))
		}
	}

	switch emulator.HaltPolicy(c.HaltPolicy) {
	case emulator.HaltStop, emulator.HaltIdle:
	default:
		errs = append(errs, fmt.Errorf("unknown halt-policy %q", c.HaltPolicy))
	}

	if _, err := ParseColor(c.Foreground); err != nil {
		errs = append(errs, fmt.Errorf("fg: %w", err))
	}
	if _, err := ParseColor(c.Background); err != nil {
		errs = append(errs, fmt.Errorf("bg: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

func quits(events []headless.Event) bool {
	for _, ev := range events {
		if ev.Kind == headless.Quit {
			return true
		}
	}
	return false
}

func (c *Config) Quirks() vm.Quirks {
	return vm.Quirks{
		WrapSprites:        c.WrapSprites,
		ResetCollisionFlag: c.ResetCollisionFlag,
		MaskIndex:          c.MaskIndex,
	}
}

func (c *Config) EmulatorOptions() emulator.Options {
	return emulator.Options{
		CyclesPerFrame: c.CyclesPerFrame,
		MaxFrames:      c.MaxFrames,
		HaltPolicy:     emulator.HaltPolicy(c.HaltPolicy),
		ReleaseKeys:    c.ReleaseKeys,
		Paused:         c.Paused,
	}
}

// Colors returns the foreground and background colors as 0xRRGGBB.
// Call Validate first.
func (c *Config) Colors() (fg, bg uint32) {
	fg, _ = ParseColor(c.Foreground)
	bg, _ = ParseColor(c.Background)
	return fg, bg
}

// ParseColor parses "#rrggbb" or "rrggbb".
func ParseColor(s string) (uint32, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return 0, fmt.Errorf("invalid color %q", s)
	}

	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid color %q", s)
	}
	return uint32(v), nil
}
