// Package emulator drives a CHIP-8 machine: it steps the engine, paces the timers
// and connects the machine to a front-end.
package emulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kapitanov/chip8vm/internal/vm"
)

var (
	ErrReboot = errors.New("reboot")
	ErrQuit   = errors.New("quit")
)

// Command is a host request that is not a keypad event.
type Command uint8

const (
	CommandPause Command = iota + 1 // toggles pause
	CommandStep                     // executes one instruction while paused
	CommandDump                     // logs the machine state
)

func (c Command) String() string {
	switch c {
	case CommandPause:
		return "pause"
	case CommandStep:
		return "step"
	case CommandDump:
		return "dump"
	default:
		return fmt.Sprintf("command(%d)", uint8(c))
	}
}

// Input receives the events a front-end reads.
type Input interface {
	KeyDown(key vm.Key)
	KeyUp(key vm.Key)
	Command(cmd Command)
}

// HAL is a front-end. ReadInput may return ErrQuit or ErrReboot.
type HAL interface {
	ReadInput(in Input) error
	Draw(gfx []uint8) error
	WaitForNextFrame() error
}

// HaltPolicy decides what happens when an instruction fails.
type HaltPolicy string

const (
	// HaltStop ends Run with the execution error.
	HaltStop HaltPolicy = "stop"
	// HaltIdle keeps the front-end alive until quit or reboot.
	HaltIdle HaltPolicy = "idle"
)

type Options struct {
	CyclesPerFrame int // instructions executed per frame
	MaxFrames      int // zero runs until quit
	HaltPolicy     HaltPolicy
	ReleaseKeys    bool // forward key-up events to the machine
	Paused         bool // start paused
}

type Emulator struct {
	machine *vm.VM
	hal     HAL
	opts    Options
	logger  *slog.Logger

	paused  bool
	stepReq bool
	looped  bool
	halted  error
	frames  int
}

func New(machine *vm.VM, hal HAL, opts Options) *Emulator {
	if opts.CyclesPerFrame <= 0 {
		opts.CyclesPerFrame = 1
	}
	if opts.HaltPolicy == "" {
		opts.HaltPolicy = HaltIdle
	}

	return &Emulator{
		machine: machine,
		hal:     hal,
		opts:    opts,
		logger:  slog.Default(),
		paused:  opts.Paused,
	}
}

// Frames returns the number of frames run so far.
func (e *Emulator) Frames() int {
	return e.frames
}

// Halted returns the error the machine stopped on, if any.
func (e *Emulator) Halted() error {
	return e.halted
}

// Run executes frames until the front-end quits, the context is done,
// MaxFrames is reached or, with HaltStop, an instruction fails.
func (e *Emulator) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := e.runFrame()
		switch {
		case errors.Is(err, ErrQuit):
			e.logger.Info("quit requested", "frames", e.frames)
			return nil

		case errors.Is(err, ErrReboot):
			e.reboot()
			continue

		case err != nil:
			return err
		}

		if e.opts.MaxFrames > 0 && e.frames >= e.opts.MaxFrames {
			e.logger.Info("frame limit reached", "frames", e.frames)
			return nil
		}

		if err := e.hal.WaitForNextFrame(); err != nil {
			return err
		}
	}
}

func (e *Emulator) runFrame() error {
	if err := e.hal.ReadInput(e); err != nil {
		return err
	}

	if e.running() {
		single := e.paused
		if err := e.runCycles(); err != nil {
			return err
		}
		if !single {
			e.machine.TickTimers()
		}
	}

	if e.machine.TakeDrawFlag() {
		gfx := e.machine.Frame()
		if err := e.hal.Draw(gfx[:]); err != nil {
			return err
		}
	}

	e.frames++
	return nil
}

func (e *Emulator) running() bool {
	if e.halted != nil || e.looped {
		return false
	}
	return !e.paused || e.stepReq
}

func (e *Emulator) runCycles() error {
	cycles := e.opts.CyclesPerFrame
	if e.paused {
		cycles = 1
		e.stepReq = false
	}

	for i := 0; i < cycles; i++ {
		pc := e.machine.PC()

		if err := e.machine.Step(); err != nil {
			return e.halt(err)
		}

		if e.machine.State() == vm.AwaitingKeypress {
			return nil
		}

		if e.machine.PC() == pc {
			e.logger.Info("program looped", "pc", fmt.Sprintf("0x%04x", pc))
			e.looped = true
			return nil
		}
	}

	return nil
}

func (e *Emulator) halt(err error) error {
	attrs := []any{"err", err}

	var execErr *vm.ExecError
	if errors.As(err, &execErr) {
		attrs = append(attrs,
			"pc", fmt.Sprintf("0x%04x", execErr.PC),
			"opcode", fmt.Sprintf("0x%04x", execErr.Opcode),
		)
	}
	e.logger.Error("execution halted", attrs...)

	if e.opts.HaltPolicy == HaltStop {
		return err
	}

	e.halted = err
	return nil
}

func (e *Emulator) reboot() {
	e.logger.Info("reboot")
	e.machine.Reset()
	e.halted = nil
	e.looped = false
	e.stepReq = false
}

// Dump logs the current machine state.
func (e *Emulator) Dump() {
	s := e.machine.Snapshot()
	e.logger.Info("snapshot",
		"pc", fmt.Sprintf("0x%04x", s.PC),
		"instr", fmt.Sprintf("0x%04x %s", s.Instruction, vm.Disassemble(s.Instruction)),
		"i", fmt.Sprintf("0x%04x", s.Index),
		"sp", s.SP,
		"stack", fmt.Sprintf("% x", s.Stack[:s.SP]),
		"v", fmt.Sprintf("% x", s.Registers[:]),
		"dt", s.DelayTimer,
		"st", s.SoundTimer,
		"state", s.State.String(),
	)
}

func (e *Emulator) KeyDown(key vm.Key) {
	if err := e.machine.InjectKey(key); err != nil {
		e.logger.Warn("key ignored", "err", err)
	}
}

func (e *Emulator) KeyUp(key vm.Key) {
	if !e.opts.ReleaseKeys {
		return
	}
	if err := e.machine.ReleaseKey(key); err != nil {
		e.logger.Warn("key ignored", "err", err)
	}
}

func (e *Emulator) Command(cmd Command) {
	e.logger.Debug("command", "cmd", cmd.String())

	switch cmd {
	case CommandPause:
		e.paused = !e.paused
		e.stepReq = false
	case CommandStep:
		if e.paused {
			e.stepReq = true
		}
	case CommandDump:
		e.Dump()
	}
}
