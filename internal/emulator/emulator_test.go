package emulator

import (
	"context"
	"errors"
	"testing"

	"github.com/kapitanov/chip8vm/internal/vm"
	"github.com/retroenv/retrogolib/assert"
)

// fakeHAL runs one input callback per frame.
type fakeHAL struct {
	inputs []func(in Input) error
	frame  int
	draws  int
	waits  int
	gfx    []uint8
}

func (h *fakeHAL) ReadInput(in Input) error {
	frame := h.frame
	h.frame++
	if frame < len(h.inputs) && h.inputs[frame] != nil {
		return h.inputs[frame](in)
	}
	return nil
}

func (h *fakeHAL) Draw(gfx []uint8) error {
	h.gfx = append(h.gfx[:0], gfx...)
	h.draws++
	return nil
}

func (h *fakeHAL) WaitForNextFrame() error {
	h.waits++
	return nil
}

func newMachine(t *testing.T, program ...byte) *vm.VM {
	t.Helper()

	machine, err := vm.New(program, vm.WithSeed(1))
	assert.NoError(t, err)
	return machine
}

func TestRunMaxFrames(t *testing.T) {
	t.Parallel()

	// V0 += 1 forever
	machine := newMachine(t, 0x70, 0x01, 0x12, 0x00)
	hal := &fakeHAL{}
	e := New(machine, hal, Options{CyclesPerFrame: 4, MaxFrames: 3})

	assert.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 3, e.Frames())
	assert.Equal(t, 2, hal.waits)
	assert.Equal(t, uint8(6), machine.Register(0))
	assert.Equal(t, 1, hal.draws)
}

func TestRunQuit(t *testing.T) {
	t.Parallel()

	machine := newMachine(t, 0x70, 0x01, 0x12, 0x00)
	hal := &fakeHAL{inputs: []func(Input) error{
		nil,
		func(Input) error { return ErrQuit },
	}}
	e := New(machine, hal, Options{CyclesPerFrame: 2})

	assert.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 1, e.Frames())
	assert.Equal(t, uint8(1), machine.Register(0))
}

func TestRunContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(newMachine(t, 0x12, 0x00), &fakeHAL{}, Options{})
	assert.True(t, errors.Is(e.Run(ctx), context.Canceled))
}

func TestHaltStop(t *testing.T) {
	t.Parallel()

	machine := newMachine(t, 0x60, 0x01, 0x01, 0x23)
	e := New(machine, &fakeHAL{}, Options{CyclesPerFrame: 10, HaltPolicy: HaltStop})

	err := e.Run(context.Background())
	var unsupported *vm.UnsupportedOpcodeError
	assert.True(t, errors.As(err, &unsupported))

	var execErr *vm.ExecError
	assert.True(t, errors.As(err, &execErr))
	assert.Equal(t, uint16(0x202), execErr.PC)
}

func TestHaltIdle(t *testing.T) {
	t.Parallel()

	machine := newMachine(t, 0x60, 0x01, 0x00, 0xEE)
	e := New(machine, &fakeHAL{}, Options{CyclesPerFrame: 10, MaxFrames: 5})

	assert.NoError(t, e.Run(context.Background()))
	assert.Equal(t, 5, e.Frames())
	assert.True(t, errors.Is(e.Halted(), vm.ErrStackUnderflow))
	assert.Equal(t, uint16(0x202), machine.PC())
}

func TestRebootClearsHalt(t *testing.T) {
	t.Parallel()

	machine := newMachine(t, 0x70, 0x01, 0x00, 0xEE)
	hal := &fakeHAL{inputs: []func(Input) error{
		nil,
		func(Input) error { return ErrReboot },
	}}
	e := New(machine, hal, Options{CyclesPerFrame: 10, MaxFrames: 2})

	assert.NoError(t, e.Run(context.Background()))
	assert.True(t, errors.Is(e.Halted(), vm.ErrStackUnderflow))
	assert.Equal(t, uint8(1), machine.Register(0))
}

func TestProgramLooped(t *testing.T) {
	t.Parallel()

	// 0x200 V0 += 1, 0x202 jump to itself
	machine := newMachine(t, 0x70, 0x01, 0x12, 0x02)
	e := New(machine, &fakeHAL{}, Options{CyclesPerFrame: 10, MaxFrames: 3})

	assert.NoError(t, e.Run(context.Background()))
	assert.Equal(t, uint8(1), machine.Register(0))
	assert.Equal(t, uint16(0x202), machine.PC())
	assert.NoError(t, e.Halted())
}

func TestTimersTickPerFrame(t *testing.T) {
	t.Parallel()

	// DT = 10, then spin
	machine := newMachine(t, 0x60, 0x0A, 0xF0, 0x15, 0x71, 0x01, 0x12, 0x04)
	e := New(machine, &fakeHAL{}, Options{CyclesPerFrame: 2, MaxFrames: 4})

	assert.NoError(t, e.Run(context.Background()))
	assert.Equal(t, uint8(6), machine.DelayTimer())
}

func TestKeyWait(t *testing.T) {
	t.Parallel()

	// wait for a key into V3, then V4 = 1
	machine := newMachine(t, 0xF3, 0x0A, 0x64, 0x01, 0x12, 0x04)
	hal := &fakeHAL{inputs: []func(Input) error{
		nil,
		nil,
		func(in Input) error {
			in.KeyDown(vm.Key7)
			return nil
		},
	}}
	e := New(machine, hal, Options{CyclesPerFrame: 1, MaxFrames: 4})

	assert.NoError(t, e.Run(context.Background()))
	assert.Equal(t, uint8(7), machine.Register(3))
	assert.Equal(t, uint8(1), machine.Register(4))
}

func TestKeyRelease(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		releaseKeys bool
		pressed     bool
	}{
		{"release forwarded", true, false},
		{"release ignored", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			machine := newMachine(t, 0x12, 0x00)
			hal := &fakeHAL{inputs: []func(Input) error{
				func(in Input) error {
					in.KeyDown(vm.KeyC)
					in.KeyUp(vm.KeyC)
					return nil
				},
			}}
			e := New(machine, hal, Options{MaxFrames: 1, ReleaseKeys: tt.releaseKeys})

			assert.NoError(t, e.Run(context.Background()))
			assert.Equal(t, tt.pressed, machine.KeyPressed(vm.KeyC))
		})
	}
}

func TestPauseAndStep(t *testing.T) {
	t.Parallel()

	machine := newMachine(t, 0x70, 0x01, 0x70, 0x01, 0x70, 0x01, 0x12, 0x06)
	step := func(in Input) error {
		in.Command(CommandStep)
		return nil
	}
	hal := &fakeHAL{inputs: []func(Input) error{nil, step, nil, step}}
	e := New(machine, hal, Options{CyclesPerFrame: 10, MaxFrames: 4, Paused: true})

	assert.NoError(t, e.Run(context.Background()))
	assert.Equal(t, uint8(2), machine.Register(0))
	assert.Equal(t, uint16(0x204), machine.PC())

	// resume
	hal.inputs = append(hal.inputs, func(in Input) error {
		in.Command(CommandPause)
		in.Command(CommandDump)
		return nil
	})
	e.opts.MaxFrames = 5
	assert.NoError(t, e.Run(context.Background()))
	assert.Equal(t, uint8(3), machine.Register(0))
}

func TestCommandString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pause", CommandPause.String())
	assert.Equal(t, "step", CommandStep.String())
	assert.Equal(t, "dump", CommandDump.String())
	assert.Equal(t, "command(9)", Command(9).String())
}
