package vm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
)

const (
	MemorySize    = 4096
	StackSize     = 16
	RegisterCount = 16
	ScreenWidth   = 64
	ScreenHeight  = 32
	ScreenSize    = ScreenWidth * ScreenHeight
	KeyCount      = 16

	ProgramStart    = uint16(0x200)
	InstructionSize = 2

	// MaxProgramSize is the room left for a ROM between ProgramStart and the end of memory.
	MaxProgramSize = MemorySize - int(ProgramStart)

	flagRegister = 0x0F
)

// State is the engine's execution state.
type State uint8

const (
	Running State = iota
	AwaitingKeypress
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case AwaitingKeypress:
		return "awaiting-keypress"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Quirks selects dialect-specific behaviour. The zero value is the default dialect:
// sprites are clipped, VF is sticky across draws and the index register is 16 bits wide.
type Quirks struct {
	// WrapSprites wraps sprite pixels around the screen edges instead of
	// aborting the draw at the first pixel that falls outside the screen.
	WrapSprites bool

	// ResetCollisionFlag clears VF before every draw.
	ResetCollisionFlag bool

	// MaskIndex keeps the result of BNNN and FX1E within 12 bits.
	MaskIndex bool
}

// VM is the complete machine state together with the engine that mutates it.
// It is not safe for concurrent use.
type VM struct {
	memory    [MemorySize]uint8    // Memory (4k)
	registers [RegisterCount]uint8 // V registers (V0-VF)

	stack [StackSize]uint16 // Stack
	sp    uint8             // Stack pointer

	pc    uint16 // Program counter
	index uint16 // Index register

	delayTimer uint8 // Delay timer
	soundTimer uint8 // Sound timer

	gfx      [ScreenSize]uint8 // Graphics buffer
	keypad   [KeyCount]bool    // Keypad
	drawFlag bool              // Indicates a draw has occurred

	awaitingKey bool
	awaitedReg  uint8

	program []byte
	rng     *rand.Rand
	quirks  Quirks
	logger  *slog.Logger
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithRand sets the random source used by CXNN.
func WithRand(r *rand.Rand) Option {
	return func(vm *VM) {
		vm.rng = r
	}
}

// WithSeed seeds the random source used by CXNN.
func WithSeed(seed uint64) Option {
	return WithRand(rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)))
}

func WithQuirks(q Quirks) Option {
	return func(vm *VM) {
		vm.quirks = q
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(vm *VM) {
		vm.logger = logger
	}
}

// New creates a machine with the program loaded at ProgramStart.
func New(program []byte, opts ...Option) (*VM, error) {
	if len(program) > MaxProgramSize {
		return nil, fmt.Errorf("%w: %d bytes, at most %d fit", ErrOversizedROM, len(program), MaxProgramSize)
	}

	vm := &VM{
		program: append([]byte(nil), program...),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.rng == nil {
		vm.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	vm.Reset()
	return vm, nil
}

// Reset restores the state the machine had right after New.
func (vm *VM) Reset() {
	vm.pc = ProgramStart
	vm.index = 0
	vm.sp = 0
	vm.awaitingKey = false
	vm.awaitedReg = 0

	clear(vm.gfx[:])
	vm.drawFlag = true

	vm.logger.Debug("clear stack", "n", len(vm.stack))
	clear(vm.stack[:])

	vm.logger.Debug("clear keypad", "n", len(vm.keypad))
	clear(vm.keypad[:])

	vm.logger.Debug("clear registers", "n", len(vm.registers))
	clear(vm.registers[:])

	vm.logger.Debug("clear memory", "n", len(vm.memory))
	clear(vm.memory[:])

	vm.logger.Debug("load font", "at", fmt.Sprintf("0x%04x", 0), "n", len(chip8Font))
	copy(vm.memory[0:], chip8Font)

	vm.logger.Info("load program", "at", fmt.Sprintf("0x%04x", ProgramStart), "n", len(vm.program))
	copy(vm.memory[ProgramStart:], vm.program)

	vm.delayTimer = 0
	vm.soundTimer = 0
}

// Step executes one instruction. It does nothing while the machine awaits a keypress.
// A failing instruction leaves the program counter at its own address.
func (vm *VM) Step() error {
	if vm.awaitingKey {
		return nil
	}

	pc := vm.pc
	op, err := vm.fetchOpcode()
	if err != nil {
		return &ExecError{PC: pc, Err: err}
	}

	vm.pc += InstructionSize

	if err := vm.executeOpcode(op); err != nil {
		vm.pc = pc
		return &ExecError{PC: pc, Opcode: uint16(op), Err: err}
	}

	return nil
}

func (vm *VM) fetchOpcode() (opcode, error) {
	if int(vm.pc)+1 >= MemorySize {
		return 0, &AddressError{Addr: uint32(vm.pc) + 1}
	}

	hi := vm.memory[vm.pc]
	lo := vm.memory[vm.pc+1]

	return opcode(uint16(hi)<<8 | uint16(lo)), nil // Op code is two bytes
}

func (vm *VM) executeOpcode(op opcode) error {
	instr := decode(op)

	if vm.logger.Enabled(context.Background(), slog.LevelDebug) {
		vm.logger.Debug(
			"exec",
			"pc", fmt.Sprintf("0x%04x", vm.pc-InstructionSize),
			"opcode", fmt.Sprintf("0x%04x", uint16(op)),
			"instr", instr.Name(op),
		)
	}

	return instr.Execute(vm, op)
}

// TickTimers decrements the delay and sound timers once. The caller decides the cadence.
func (vm *VM) TickTimers() {
	if vm.delayTimer > 0 {
		vm.delayTimer--
	}
	if vm.soundTimer > 0 {
		vm.soundTimer--
	}
}

// State reports whether the machine runs or waits for a key.
func (vm *VM) State() State {
	if vm.awaitingKey {
		return AwaitingKeypress
	}
	return Running
}

// TakeDrawFlag reports whether the framebuffer changed since the previous call.
func (vm *VM) TakeDrawFlag() bool {
	f := vm.drawFlag
	vm.drawFlag = false
	return f
}
