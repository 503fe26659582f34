// Package hal is the SDL2 front-end: a window showing the screen and the
// keyboard mapped onto the keypad. Every SDL call runs on the main thread.
package hal

import (
	"fmt"
	"log/slog"
	"time"
	"unsafe"

	"github.com/faiface/mainthread"
	"github.com/kapitanov/chip8vm/internal/emulator"
	"github.com/kapitanov/chip8vm/internal/vm"
	"github.com/veandco/go-sdl2/sdl"
)

type Options struct {
	Scale      int
	FrameRate  int
	Foreground uint32 // 0xRRGGBB
	Background uint32 // 0xRRGGBB
}

type HAL struct {
	window          *sdl.Window
	renderer        *sdl.Renderer
	texture         *sdl.Texture
	backBuffer      []uint32
	backBufferPitch int

	fg, bg    uint32
	frameTime time.Duration
	nextFrame time.Time
	pending   []event
}

// event is an input event polled on the main thread and delivered on the
// emulator goroutine.
type event struct {
	down bool
	key  vm.Key
	cmd  emulator.Command
	err  error
}

// Physical                Logical
// ================        =================
// | 1 | 2 | 3 | 4 |       | 1 | 2 | 3 | C |
// | q | w | e | r |       | 4 | 5 | 6 | D |
// | a | s | d | f |  <=>  | 7 | 8 | 9 | E |
// | z | x | c | v |       | A | 0 | B | F |
// ================        =================
var keyMap = map[sdl.Scancode]vm.Key{
	sdl.SCANCODE_1: vm.Key1, sdl.SCANCODE_2: vm.Key2, sdl.SCANCODE_3: vm.Key3, sdl.SCANCODE_4: vm.KeyC,
	sdl.SCANCODE_Q: vm.Key4, sdl.SCANCODE_W: vm.Key5, sdl.SCANCODE_E: vm.Key6, sdl.SCANCODE_R: vm.KeyD,
	sdl.SCANCODE_A: vm.Key7, sdl.SCANCODE_S: vm.Key8, sdl.SCANCODE_D: vm.Key9, sdl.SCANCODE_F: vm.KeyE,
	sdl.SCANCODE_Z: vm.KeyA, sdl.SCANCODE_X: vm.Key0, sdl.SCANCODE_C: vm.KeyB, sdl.SCANCODE_V: vm.KeyF,
}

var commandMap = map[sdl.Scancode]emulator.Command{
	sdl.SCANCODE_SPACE: emulator.CommandPause,
	sdl.SCANCODE_N:     emulator.CommandStep,
	sdl.SCANCODE_F1:    emulator.CommandDump,
}

// New opens the window. It must be called from a function run by mainthread.Run.
func New(opts Options) (*HAL, error) {
	h := &HAL{
		backBuffer:      make([]uint32, vm.ScreenSize),
		backBufferPitch: vm.ScreenWidth * int(unsafe.Sizeof(uint32(0))),
		fg:              opts.Foreground,
		bg:              opts.Background,
		frameTime:       time.Second / time.Duration(opts.FrameRate),
	}

	width := int32(vm.ScreenWidth * opts.Scale)
	height := int32(vm.ScreenHeight * opts.Scale)

	err := mainthread.CallErr(func() error {
		return h.init(width, height)
	})
	if err != nil {
		h.Shutdown()
		return nil, err
	}

	h.nextFrame = time.Now().Add(h.frameTime)
	return h, nil
}

func (h *HAL) init(width, height int32) error {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return fmt.Errorf("failed to init sdl: %w", err)
	}

	var err error
	h.window, err = sdl.CreateWindow("CHIP-8", sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED, width, height, sdl.WINDOW_SHOWN)
	if err != nil {
		return fmt.Errorf("failed to create sdl window: %w", err)
	}
	slog.Debug("hal: create window", "width", width, "height", height)

	h.renderer, err = sdl.CreateRenderer(h.window, -1, sdl.RENDERER_ACCELERATED)
	if err != nil {
		return fmt.Errorf("failed to create sdl renderer: %w", err)
	}
	if err = h.renderer.SetLogicalSize(width, height); err != nil {
		return fmt.Errorf("failed to resize sdl renderer: %w", err)
	}
	slog.Debug("hal: create renderer")

	h.texture, err = h.renderer.CreateTexture(sdl.PIXELFORMAT_ARGB8888, sdl.TEXTUREACCESS_STREAMING, vm.ScreenWidth, vm.ScreenHeight)
	if err != nil {
		return fmt.Errorf("failed to create sdl texture: %w", err)
	}
	slog.Debug("hal: create texture")

	return nil
}

func (h *HAL) Shutdown() {
	mainthread.Call(func() {
		if h.texture != nil {
			if err := h.texture.Destroy(); err != nil {
				slog.Error("failed to destroy sdl texture", "err", err)
			}
		}

		if h.renderer != nil {
			if err := h.renderer.Destroy(); err != nil {
				slog.Error("failed to destroy sdl renderer", "err", err)
			}
		}

		if h.window != nil {
			if err := h.window.Destroy(); err != nil {
				slog.Error("failed to destroy sdl window", "err", err)
			}
		}

		sdl.Quit()
	})
}

func (h *HAL) ReadInput(in emulator.Input) error {
	h.pending = h.pending[:0]
	mainthread.Call(h.poll)

	for _, ev := range h.pending {
		switch {
		case ev.err != nil:
			return ev.err
		case ev.cmd != 0:
			in.Command(ev.cmd)
		case ev.down:
			in.KeyDown(ev.key)
		default:
			in.KeyUp(ev.key)
		}
	}

	return nil
}

func (h *HAL) poll() {
	for e := sdl.PollEvent(); e != nil; e = sdl.PollEvent() {
		switch e.GetType() {
		case sdl.QUIT:
			slog.Debug("hal: exit requested")
			h.pending = append(h.pending, event{err: emulator.ErrQuit})

		case sdl.KEYDOWN:
			h.keyDown(e.(*sdl.KeyboardEvent))

		case sdl.KEYUP:
			ke := e.(*sdl.KeyboardEvent)
			if key, ok := keyMap[ke.Keysym.Scancode]; ok {
				h.pending = append(h.pending, event{key: key})
			}
		}
	}
}

func (h *HAL) keyDown(e *sdl.KeyboardEvent) {
	code := e.Keysym.Scancode

	if key, ok := keyMap[code]; ok {
		h.pending = append(h.pending, event{down: true, key: key})
		return
	}

	if e.Repeat != 0 {
		return
	}

	switch code {
	case sdl.SCANCODE_ESCAPE:
		h.pending = append(h.pending, event{err: emulator.ErrQuit})
	case sdl.SCANCODE_BACKSPACE:
		h.pending = append(h.pending, event{err: emulator.ErrReboot})
	default:
		if cmd, ok := commandMap[code]; ok {
			h.pending = append(h.pending, event{cmd: cmd})
		}
	}
}

func (h *HAL) Draw(gfx []uint8) error {
	for i, p := range gfx {
		color := h.bg
		if p != 0 {
			color = h.fg
		}
		h.backBuffer[i] = 0xff000000 | color
	}

	return mainthread.CallErr(func() error {
		backBufferPtr := unsafe.Pointer(&h.backBuffer[0])
		if err := h.texture.Update(nil, backBufferPtr, h.backBufferPitch); err != nil {
			return fmt.Errorf("failed to update sdl texture: %w", err)
		}

		if err := h.renderer.Clear(); err != nil {
			return fmt.Errorf("failed to clear sdl renderer: %w", err)
		}

		if err := h.renderer.Copy(h.texture, nil, nil); err != nil {
			return fmt.Errorf("failed to copy sdl texture to renderer: %w", err)
		}

		h.renderer.Present()
		return nil
	})
}

// WaitForNextFrame sleeps until the next frame is due. A late frame does not
// try to catch up.
func (h *HAL) WaitForNextFrame() error {
	now := time.Now()
	if wait := h.nextFrame.Sub(now); wait > 0 {
		time.Sleep(wait)
		h.nextFrame = h.nextFrame.Add(h.frameTime)
	} else {
		h.nextFrame = now.Add(h.frameTime)
	}
	return nil
}
