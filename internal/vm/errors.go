package vm

import (
	"errors"
	"fmt"
)

var (
	ErrStackOverflow  = errors.New("stack overflow")
	ErrStackUnderflow = errors.New("stack underflow")
	ErrOversizedROM   = errors.New("rom does not fit into memory")
	ErrInvalidKey     = errors.New("invalid key")
)

// UnsupportedOpcodeError is returned for opcodes that do not decode to an instruction,
// including the 0NNN machine-code call.
type UnsupportedOpcodeError struct {
	Opcode uint16
}

func (e *UnsupportedOpcodeError) Error() string {
	n := e.Nibbles()
	return fmt.Sprintf("unsupported opcode 0x%04X (nibbles %X %X %X %X)", e.Opcode, n[0], n[1], n[2], n[3])
}

// Nibbles returns the four 4-bit fields of the opcode, most significant first.
func (e *UnsupportedOpcodeError) Nibbles() [4]uint8 {
	return opcode(e.Opcode).nibbles()
}

// AddressError is returned when an instruction touches memory past the last byte.
type AddressError struct {
	Addr uint32
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("memory address 0x%04X out of range", e.Addr)
}

// ExecError reports the instruction a step failed on.
type ExecError struct {
	PC     uint16
	Opcode uint16
	Err    error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("execution halted at 0x%04x (opcode 0x%04X): %v", e.PC, e.Opcode, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
