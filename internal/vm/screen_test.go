package vm

import (
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func litPixels(vm *VM) int {
	n := 0
	for _, p := range vm.Frame() {
		if p != 0 {
			n++
		}
	}
	return n
}

func TestDrawCollision(t *testing.T) {
	t.Parallel()

	// I = 0x300, 0x300 holds 0xFF, draw 8x1 at (V0, V1) twice
	vm := newTestVM(t, 0x60FF, 0xA300, 0xF055, 0x6004, 0x6103, 0xD011, 0xD011)
	stepN(t, vm, 6)

	for x := 4; x < 12; x++ {
		assert.True(t, vm.Pixel(x, 3))
	}
	assert.Equal(t, 8, litPixels(vm))
	assert.Equal(t, uint8(0), vm.Register(0xF))
	assert.True(t, vm.TakeDrawFlag())

	stepN(t, vm, 1)
	assert.Equal(t, 0, litPixels(vm))
	assert.Equal(t, uint8(1), vm.Register(0xF))
}

func TestDrawCollisionFlagIsSticky(t *testing.T) {
	t.Parallel()

	vm := newTestVM(t, 0xD015)
	vm.SetRegister(0xF, 1)
	stepN(t, vm, 1)

	// the glyph for 0 draws onto an empty screen, VF keeps its prior value
	assert.Equal(t, uint8(1), vm.Register(0xF))
	assert.Equal(t, 14, litPixels(vm))
}

func TestDrawResetCollisionFlagQuirk(t *testing.T) {
	t.Parallel()

	vm, err := New([]byte{0xD0, 0x15}, WithQuirks(Quirks{ResetCollisionFlag: true}))
	assert.NoError(t, err)
	vm.SetRegister(0xF, 1)

	stepN(t, vm, 1)
	assert.Equal(t, uint8(0), vm.Register(0xF))
}

func TestDrawFontGlyph(t *testing.T) {
	t.Parallel()

	// glyph 1 is 0x20 0x60 0x20 0x20 0x70
	vm := newTestVM(t, 0x6201, 0xF229, 0xD015)
	stepN(t, vm, 3)

	assert.True(t, vm.Pixel(2, 0))
	assert.True(t, vm.Pixel(1, 1))
	assert.True(t, vm.Pixel(2, 1))
	assert.True(t, vm.Pixel(1, 4))
	assert.True(t, vm.Pixel(3, 4))
	assert.False(t, vm.Pixel(0, 0))
	assert.Equal(t, 8, litPixels(vm))
}

func TestDrawClipsAtRightEdge(t *testing.T) {
	t.Parallel()

	// two rows of 0xFF at x=60: the first row reaches column 64 and aborts the draw
	vm := newTestVM(t, 0x60FF, 0x61FF, 0xA300, 0xF155, 0x603C, 0x6100, 0xD012)
	stepN(t, vm, 7)

	for x := 60; x < ScreenWidth; x++ {
		assert.True(t, vm.Pixel(x, 0))
	}
	assert.False(t, vm.Pixel(0, 1))
	assert.False(t, vm.Pixel(60, 1))
	assert.Equal(t, 4, litPixels(vm))
}

func TestDrawClipsAtBottomEdge(t *testing.T) {
	t.Parallel()

	vm := newTestVM(t, 0x6000, 0x611F, 0xD015)
	stepN(t, vm, 3)

	// only the first row of glyph 0 fits
	assert.Equal(t, 4, litPixels(vm))
	assert.True(t, vm.Pixel(0, 31))
	assert.False(t, vm.Pixel(0, 0))
}

func TestDrawWrapQuirk(t *testing.T) {
	t.Parallel()

	program := []byte{0x60, 0x3E, 0x61, 0x1F, 0xD0, 0x12}
	vm, err := New(program, WithQuirks(Quirks{WrapSprites: true}))
	assert.NoError(t, err)
	stepN(t, vm, 3)

	// glyph 0 rows 0xF0 and 0x90 at (62, 31)
	assert.True(t, vm.Pixel(62, 31))
	assert.True(t, vm.Pixel(63, 31))
	assert.True(t, vm.Pixel(0, 31))
	assert.True(t, vm.Pixel(1, 31))
	assert.True(t, vm.Pixel(62, 0))
	assert.True(t, vm.Pixel(1, 0))
	assert.False(t, vm.Pixel(63, 0))
	assert.Equal(t, 6, litPixels(vm))
}

func TestDrawSpritePastMemory(t *testing.T) {
	t.Parallel()

	vm := newTestVM(t, 0xAFFE, 0xD003)
	stepN(t, vm, 1)

	var addrErr *AddressError
	assert.True(t, errors.As(vm.Step(), &addrErr))
	assert.Equal(t, 0, litPixels(vm))
}

func TestDrawZeroHeight(t *testing.T) {
	t.Parallel()

	vm := newTestVM(t, 0xD010)
	vm.index = 0xFFFF
	stepN(t, vm, 1)
	assert.Equal(t, 0, litPixels(vm))
}

func TestClearScreen(t *testing.T) {
	t.Parallel()

	vm := newTestVM(t, 0xD015, 0x00E0)
	stepN(t, vm, 1)
	assert.True(t, litPixels(vm) > 0)
	vm.TakeDrawFlag()

	stepN(t, vm, 1)
	assert.Equal(t, 0, litPixels(vm))
	assert.True(t, vm.TakeDrawFlag())
}
