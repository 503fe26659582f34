package vm

import "fmt"

// Snapshot is a copy of the machine state for renderers and debuggers.
type Snapshot struct {
	Registers   [RegisterCount]uint8
	Index       uint16
	DelayTimer  uint8
	SoundTimer  uint8
	PC          uint16
	Stack       [StackSize]uint16
	SP          uint8
	Instruction uint16 // word at PC, zero when PC points past memory
	State       State
	AwaitedReg  uint8
	Frame       [ScreenSize]uint8
}

func (vm *VM) Snapshot() Snapshot {
	s := Snapshot{
		Registers:  vm.registers,
		Index:      vm.index,
		DelayTimer: vm.delayTimer,
		SoundTimer: vm.soundTimer,
		PC:         vm.pc,
		Stack:      vm.stack,
		SP:         vm.sp,
		State:      vm.State(),
		AwaitedReg: vm.awaitedReg,
		Frame:      vm.gfx,
	}
	if op, err := vm.fetchOpcode(); err == nil {
		s.Instruction = uint16(op)
	}
	return s
}

// String formats the registers on a single line for the debug dump.
func (s Snapshot) String() string {
	return fmt.Sprintf("pc=0x%04x op=0x%04x (%s) i=0x%04x sp=%d dt=%d st=%d v=% x state=%s",
		s.PC, s.Instruction, Disassemble(s.Instruction), s.Index, s.SP, s.DelayTimer, s.SoundTimer, s.Registers[:], s.State)
}

// Frame returns a copy of the framebuffer, row-major, one byte per pixel.
func (vm *VM) Frame() [ScreenSize]uint8 {
	return vm.gfx
}

// Pixel reports whether the pixel at (x, y) is lit.
func (vm *VM) Pixel(x, y int) bool {
	if x < 0 || y < 0 || x >= ScreenWidth || y >= ScreenHeight {
		return false
	}
	return vm.gfx[y*ScreenWidth+x] != 0
}

func (vm *VM) Register(x uint8) uint8 {
	return vm.registers[x&0xF]
}

func (vm *VM) SetRegister(x, value uint8) {
	vm.registers[x&0xF] = value
}

func (vm *VM) Index() uint16 {
	return vm.index
}

func (vm *VM) PC() uint16 {
	return vm.pc
}

func (vm *VM) SP() uint8 {
	return vm.sp
}

func (vm *VM) DelayTimer() uint8 {
	return vm.delayTimer
}

func (vm *VM) SoundTimer() uint8 {
	return vm.soundTimer
}

// Memory returns the byte at addr, or zero past the end of memory.
func (vm *VM) Memory(addr uint16) uint8 {
	if int(addr) >= MemorySize {
		return 0
	}
	return vm.memory[addr]
}
