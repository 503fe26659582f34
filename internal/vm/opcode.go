package vm

import (
	"fmt"
)

// opcode is a raw 16-bit instruction word.
type opcode uint16

func (op opcode) nibbles() [4]uint8 {
	return [4]uint8{
		uint8(op>>12) & 0xF,
		uint8(op>>8) & 0xF,
		uint8(op>>4) & 0xF,
		uint8(op) & 0xF,
	}
}

func (op opcode) x() uint8    { return uint8(op>>8) & 0xF }
func (op opcode) y() uint8    { return uint8(op>>4) & 0xF }
func (op opcode) n() uint8    { return uint8(op) & 0xF }
func (op opcode) nn() uint8   { return uint8(op) }
func (op opcode) nnn() uint16 { return uint16(op) & 0x0FFF }

type instruction struct {
	Name    func(op opcode) string
	Execute func(vm *VM, op opcode) error
}

// Disassemble returns the mnemonic of an instruction word.
func Disassemble(word uint16) string {
	op := opcode(word)
	return decode(op).Name(op)
}

func decode(op opcode) instruction {
	n := op.nibbles()

	switch n[0] {
	case 0x0:
		switch {
		case n[1] == 0x0 && n[2] == 0xE && n[3] == 0x0:
			// 00E0 - Clear screen
			return clsInstruction

		case n[1] == 0x0 && n[2] == 0xE && n[3] == 0xE:
			// 00EE - Return from subroutine
			return rtsInstruction
		}

		// 0NNN - Machine code routine, not supported

	case 0x1:
		// 1NNN - Jumps to address NNN
		return jmpInstruction

	case 0x2:
		// 2NNN - Calls subroutine at NNN
		return jsrInstruction

	case 0x3:
		// 3XNN - Skips the next instruction if VX equals NN
		return skeq1Instruction

	case 0x4:
		// 4XNN - Skips the next instruction if VX does not equal NN
		return skne1Instruction

	case 0x5:
		// 5XY0 - Skips the next instruction if VX equals VY
		return skeq2Instruction

	case 0x6:
		// 6XNN - Sets VX to NN
		return mov1Instruction

	case 0x7:
		// 7XNN - Adds NN to VX, no carry
		return add1Instruction

	case 0x8:
		switch n[3] {
		case 0x0:
			return mov2Instruction
		case 0x1:
			return orInstruction
		case 0x2:
			return andInstruction
		case 0x3:
			return xorInstruction
		case 0x4:
			// 8XY4 - VF is the carry
			return add2Instruction
		case 0x5:
			// 8XY5 - VF is 1 when there's no borrow
			return subInstruction
		case 0x6:
			// 8XY6 - VF is the bit shifted out
			return shrInstruction
		case 0x7:
			// 8XY7 - VX = VY - VX, VF is 1 when there's no borrow
			return rsbInstruction
		case 0xE:
			// 8XYE - VF is the bit shifted out
			return shlInstruction
		}

	case 0x9:
		// 9XY0 - Skips the next instruction if VX doesn't equal VY
		return skne2Instruction

	case 0xA:
		// ANNN - Sets I to the address NNN
		return mviInstruction

	case 0xB:
		// BNNN - Sets I to NNN plus V0
		return mviV0Instruction

	case 0xC:
		// CXNN - Sets VX to a random number, masked by NN
		return randInstruction

	case 0xD:
		// DXYN - Draws an 8xN sprite from I at (VX, VY)
		return spriteInstruction

	case 0xE:
		switch {
		case n[2] == 0x9 && n[3] == 0xE:
			return skprInstruction
		case n[2] == 0xA && n[3] == 0x1:
			return skupInstruction
		}

	case 0xF:
		switch uint8(op) {
		case 0x07:
			return gdelayInstruction
		case 0x0A:
			return keyInstruction
		case 0x15:
			return sdelayInstruction
		case 0x18:
			return ssoundInstruction
		case 0x1E:
			return adiInstruction
		case 0x29:
			return fontInstruction
		case 0x33:
			return bcdInstruction
		case 0x55:
			return strInstruction
		case 0x65:
			return ldrInstruction
		}
	}

	return unknownInstruction
}

// checkRange fails when any of the n bytes starting at addr lies outside memory.
func checkRange(addr uint16, n int) error {
	if n <= 0 {
		return nil
	}
	last := uint32(addr) + uint32(n) - 1
	if last >= MemorySize {
		return &AddressError{Addr: last}
	}
	return nil
}

func (vm *VM) skipIf(cond bool) {
	if cond {
		vm.pc += InstructionSize
	}
}

func (vm *VM) setIndex(v uint16) {
	if vm.quirks.MaskIndex {
		v &= 0x0FFF
	}
	vm.index = v
}

var (
	// 00E0	cls	Clear the screen
	clsInstruction = instruction{
		Name: func(op opcode) string {
			return "cls"
		},
		Execute: func(vm *VM, op opcode) error {
			clear(vm.gfx[:])
			vm.drawFlag = true
			return nil
		},
	}

	// 00EE	rts	return from subroutine call
	rtsInstruction = instruction{
		Name: func(op opcode) string {
			return "rts"
		},
		Execute: func(vm *VM, op opcode) error {
			if vm.sp == 0 {
				return ErrStackUnderflow
			}
			vm.sp--
			vm.pc = vm.stack[vm.sp]
			return nil
		},
	}

	// 1xxx	jmp xxx	jump to address xxx
	jmpInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("jmp 0x%03x", op.nnn())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.pc = op.nnn()
			return nil
		},
	}

	// 2xxx	jsr xxx	jump to subroutine at address xxx
	jsrInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("jsr 0x%03x", op.nnn())
		},
		Execute: func(vm *VM, op opcode) error {
			if int(vm.sp) >= StackSize {
				return ErrStackOverflow
			}
			vm.stack[vm.sp] = vm.pc
			vm.sp++
			vm.pc = op.nnn()
			return nil
		},
	}

	// 3rxx	skeq vr,xx	skip if register r = constant
	skeq1Instruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("skeq v%x, %d", op.x(), op.nn())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.skipIf(vm.registers[op.x()] == op.nn())
			return nil
		},
	}

	// 4rxx	skne vr,xx	skip if register r <> constant
	skne1Instruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("skne v%x, %d", op.x(), op.nn())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.skipIf(vm.registers[op.x()] != op.nn())
			return nil
		},
	}

	// 5ry0	skeq vr,vy	skip if register r = register y
	skeq2Instruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("skeq v%x, v%x", op.x(), op.y())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.skipIf(vm.registers[op.x()] == vm.registers[op.y()])
			return nil
		},
	}

	// 6rxx	mov vr,xx	move constant to register r
	mov1Instruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("mov v%x, %d", op.x(), op.nn())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.registers[op.x()] = op.nn()
			return nil
		},
	}

	// 7rxx	add vr,xx	add constant to register r	No carry generated
	add1Instruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("add v%x, %d", op.x(), op.nn())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.registers[op.x()] += op.nn()
			return nil
		},
	}

	// 8ry0	mov vr,vy	move register vy into vr
	mov2Instruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("mov v%x, v%x", op.x(), op.y())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.registers[op.x()] = vm.registers[op.y()]
			return nil
		},
	}

	// 8ry1	or rx,ry	or register vy into register vx
	orInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("or v%x, v%x", op.x(), op.y())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.registers[op.x()] |= vm.registers[op.y()]
			return nil
		},
	}

	// 8ry2	and rx,ry	and register vy into register vx
	andInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("and v%x, v%x", op.x(), op.y())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.registers[op.x()] &= vm.registers[op.y()]
			return nil
		},
	}

	// 8ry3	xor rx,ry	exclusive or register ry into register rx
	xorInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("xor v%x, v%x", op.x(), op.y())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.registers[op.x()] ^= vm.registers[op.y()]
			return nil
		},
	}

	// 8ry4	add vr,vy	add register vy to vr,carry in vf
	add2Instruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("add v%x, v%x", op.x(), op.y())
		},
		Execute: func(vm *VM, op opcode) error {
			x := vm.registers[op.x()]
			y := vm.registers[op.y()]
			sum := uint16(x) + uint16(y)

			vm.registers[op.x()] = uint8(sum)
			vm.registers[flagRegister] = uint8(sum >> 8)
			return nil
		},
	}

	// 8ry5	sub vr,vy	subtract register vy from vr, vf set to 0 if borrows
	subInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("sub v%x, v%x", op.x(), op.y())
		},
		Execute: func(vm *VM, op opcode) error {
			x := vm.registers[op.x()]
			y := vm.registers[op.y()]

			vm.registers[op.x()] = x - y
			vm.registers[flagRegister] = boolToFlag(x >= y)
			return nil
		},
	}

	// 8r06	shr vr	shift register vr right, bit 0 goes into register vf
	shrInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("shr v%x", op.x())
		},
		Execute: func(vm *VM, op opcode) error {
			x := vm.registers[op.x()]

			vm.registers[op.x()] = x >> 1
			vm.registers[flagRegister] = x & 0x1
			return nil
		},
	}

	// 8ry7	rsb vr,vy	subtract register vr from register vy, result in vr, vf set to 0 if borrows
	rsbInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("rsb v%x, v%x", op.x(), op.y())
		},
		Execute: func(vm *VM, op opcode) error {
			x := vm.registers[op.x()]
			y := vm.registers[op.y()]

			vm.registers[op.x()] = y - x
			vm.registers[flagRegister] = boolToFlag(y >= x)
			return nil
		},
	}

	// 8r0e	shl vr	shift register vr left, bit 7 goes into register vf
	shlInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("shl v%x", op.x())
		},
		Execute: func(vm *VM, op opcode) error {
			x := vm.registers[op.x()]

			vm.registers[op.x()] = x << 1
			vm.registers[flagRegister] = (x >> 7) & 0x1
			return nil
		},
	}

	// 9ry0	skne rx,ry	skip if register rx <> register ry
	skne2Instruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("skne v%x, v%x", op.x(), op.y())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.skipIf(vm.registers[op.x()] != vm.registers[op.y()])
			return nil
		},
	}

	// axxx	mvi xxx	Load index register with constant xxx
	mviInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("mvi 0x%03x", op.nnn())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.index = op.nnn()
			return nil
		},
	}

	// bxxx	mvi xxx+v0	Load index register with constant xxx plus register v0
	mviV0Instruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("mvi 0x%03x+v0", op.nnn())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.setIndex(op.nnn() + uint16(vm.registers[0]))
			return nil
		},
	}

	// crxx	rand vr,xx	vr = random byte and xx
	randInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("rand v%x, 0x%02x", op.x(), op.nn())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.registers[op.x()] = uint8(vm.rng.UintN(256)) & op.nn()
			return nil
		},
	}

	// sprite rx,ry,s	Draw sprite at screen location rx,ry height s
	// Sprites are read from memory at the index register, 8 bits wide.
	// Drawing toggles pixels; vf is set to 1 if a lit pixel gets cleared.
	spriteInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("sprite v%x, v%x, %d", op.x(), op.y(), op.n())
		},
		Execute: func(vm *VM, op opcode) error {
			height := int(op.n())
			if err := checkRange(vm.index, height); err != nil {
				return err
			}

			var rows []uint8
			if height > 0 {
				rows = vm.memory[int(vm.index) : int(vm.index)+height]
			}

			vm.drawSprite(int(vm.registers[op.x()]), int(vm.registers[op.y()]), rows)
			return nil
		},
	}

	// ek9e	skpr k	skip if key (register rk) pressed
	skprInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("skpr v%x", op.x())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.skipIf(vm.KeyPressed(Key(vm.registers[op.x()])))
			return nil
		},
	}

	// eka1	skup k	skip if key (register rk) not pressed
	skupInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("skup v%x", op.x())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.skipIf(!vm.KeyPressed(Key(vm.registers[op.x()])))
			return nil
		},
	}

	// fr07	gdelay vr	get delay timer into vr
	gdelayInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("gdelay v%x", op.x())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.registers[op.x()] = vm.delayTimer
			return nil
		},
	}

	// fr0a	key vr	wait for keypress, put key in register vr
	keyInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("key v%x", op.x())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.awaitingKey = true
			vm.awaitedReg = op.x()
			return nil
		},
	}

	// fr15	sdelay vr	set the delay timer to vr
	sdelayInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("sdelay v%x", op.x())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.delayTimer = vm.registers[op.x()]
			return nil
		},
	}

	// fr18	ssound vr	set the sound timer to vr
	ssoundInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("ssound v%x", op.x())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.soundTimer = vm.registers[op.x()]
			return nil
		},
	}

	// fr1e	adi vr	add register vr to the index register
	adiInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("adi v%x", op.x())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.setIndex(vm.index + uint16(vm.registers[op.x()]))
			return nil
		},
	}

	// fr29	font vr	point I to the sprite for hexadecimal character in vr	Sprite is 5 bytes high
	fontInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("font v%x", op.x())
		},
		Execute: func(vm *VM, op opcode) error {
			vm.index = uint16(vm.registers[op.x()]) * FontGlyphSize
			return nil
		},
	}

	// fr33	bcd vr	store the bcd representation of register vr at location I,I+1,I+2	Doesn't change I
	bcdInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("bcd v%x", op.x())
		},
		Execute: func(vm *VM, op opcode) error {
			if err := checkRange(vm.index, 3); err != nil {
				return err
			}

			x := vm.registers[op.x()]
			vm.memory[vm.index] = x / 100 % 10
			vm.memory[vm.index+1] = x / 10 % 10
			vm.memory[vm.index+2] = x % 10
			return nil
		},
	}

	// fr55	str v0-vr	store registers v0-vr at location I onwards	Doesn't change I
	strInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("str v0-v%x", op.x())
		},
		Execute: func(vm *VM, op opcode) error {
			n := int(op.x()) + 1
			if err := checkRange(vm.index, n); err != nil {
				return err
			}

			copy(vm.memory[int(vm.index):], vm.registers[:n])
			return nil
		},
	}

	// fr65	ldr v0-vr	load registers v0-vr from location I onwards	Doesn't change I
	ldrInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("ldr v0-v%x", op.x())
		},
		Execute: func(vm *VM, op opcode) error {
			n := int(op.x()) + 1
			if err := checkRange(vm.index, n); err != nil {
				return err
			}

			copy(vm.registers[:n], vm.memory[int(vm.index):])
			return nil
		},
	}

	unknownInstruction = instruction{
		Name: func(op opcode) string {
			return fmt.Sprintf("unknown 0x%04X", uint16(op))
		},
		Execute: func(vm *VM, op opcode) error {
			return &UnsupportedOpcodeError{Opcode: uint16(op)}
		},
	}
)

func boolToFlag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
