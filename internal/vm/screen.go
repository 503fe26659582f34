package vm

const spriteWidth = 8

// drawSprite XORs the rows onto the screen with the top-left corner at (x, y).
// Without the WrapSprites quirk the first pixel outside the screen ends the draw.
func (vm *VM) drawSprite(x, y int, rows []uint8) {
	if vm.quirks.ResetCollisionFlag {
		vm.registers[flagRegister] = 0
	}

	collision := false
	vm.drawFlag = true

draw:
	for dy, row := range rows {
		for dx := 0; dx < spriteWidth; dx++ {
			px, py, ok := vm.screenCoords(x+dx, y+dy)
			if !ok {
				break draw
			}

			if row&(0x80>>dx) == 0 {
				continue
			}

			addr := py*ScreenWidth + px
			if vm.gfx[addr] != 0 {
				collision = true
			}
			vm.gfx[addr] ^= 1
		}
	}

	if collision {
		vm.registers[flagRegister] = 1
	}
}

func (vm *VM) screenCoords(x, y int) (int, int, bool) {
	if vm.quirks.WrapSprites {
		return x % ScreenWidth, y % ScreenHeight, true
	}
	if x >= ScreenWidth || y >= ScreenHeight {
		return 0, 0, false
	}
	return x, y, true
}
