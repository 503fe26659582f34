// Package rom loads raw CHIP-8 program images.
package rom

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kapitanov/chip8vm/internal/vm"
)

// ReadError is returned when the ROM source is missing or unreadable.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("unable to read rom: %v", e.Err)
	}
	return fmt.Sprintf("unable to read rom %q: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Load reads the ROM file at path.
func Load(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	bs, err := Read(f)
	if err != nil {
		var readErr *ReadError
		if errors.As(err, &readErr) {
			readErr.Path = path
		}
		return nil, err
	}

	slog.Debug("rom loaded", "path", path, "n", len(bs))
	return bs, nil
}

// Read reads a ROM image and rejects images that do not fit into memory.
func Read(r io.Reader) ([]byte, error) {
	bs, err := io.ReadAll(io.LimitReader(r, int64(vm.MaxProgramSize)+1))
	if err != nil {
		return nil, &ReadError{Err: err}
	}

	if len(bs) > vm.MaxProgramSize {
		return nil, fmt.Errorf("%w: more than %d bytes", vm.ErrOversizedROM, vm.MaxProgramSize)
	}

	return bs, nil
}
