package vm

import "fmt"

type Key uint8

const (
	Key0 = Key(iota)
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
)

func (k Key) String() string {
	return fmt.Sprintf("%X", uint8(k))
}

// InjectKey marks the key as pressed. When the machine awaits a keypress the key
// is stored in the awaited register and execution resumes.
func (vm *VM) InjectKey(key Key) error {
	if key >= KeyCount {
		return fmt.Errorf("%w: %d", ErrInvalidKey, key)
	}

	vm.keypad[key] = true

	if vm.awaitingKey {
		vm.registers[vm.awaitedReg] = uint8(key)
		vm.awaitingKey = false
		vm.logger.Debug("key wait resumed", "key", key.String(), "register", fmt.Sprintf("v%x", vm.awaitedReg))
	}

	return nil
}

// ReleaseKey marks the key as not pressed. The machine never releases keys by itself.
func (vm *VM) ReleaseKey(key Key) error {
	if key >= KeyCount {
		return fmt.Errorf("%w: %d", ErrInvalidKey, key)
	}

	vm.keypad[key] = false
	return nil
}

// KeyPressed reports the latched state of the key.
func (vm *VM) KeyPressed(key Key) bool {
	return key < KeyCount && vm.keypad[key]
}
