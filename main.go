package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/faiface/mainthread"
	"github.com/kapitanov/chip8vm/internal/config"
	"github.com/kapitanov/chip8vm/internal/emulator"
	"github.com/kapitanov/chip8vm/internal/hal"
	"github.com/kapitanov/chip8vm/internal/headless"
	"github.com/kapitanov/chip8vm/internal/rom"
	"github.com/kapitanov/chip8vm/internal/vm"
	"github.com/spf13/cobra"
)

func main() {
	cfg := config.Default()

	cmd := &cobra.Command{
		Use:           fmt.Sprintf("%s PATH_TO_ROM_FILE", filepath.Base(os.Args[0])),
		Short:         "Run emulator",
		Args:          cobra.ExactArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cfg.BindFlags(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		loggerOpts := &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}
		if cfg.Verbose {
			loggerOpts.Level = slog.LevelDebug
		}

		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, loggerOpts)))

		if err := cfg.Validate(); err != nil {
			return err
		}

		program, err := rom.Load(args[0])
		if err != nil {
			return err
		}

		machine, err := newMachine(cfg, program)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Headless {
			err = runHeadless(ctx, cfg, machine)
		} else {
			err = runWindow(ctx, cfg, machine)
		}

		if errors.Is(err, context.Canceled) {
			slog.Info("interrupted")
			return nil
		}
		return err
	}

	cmd.SetArgs(os.Args[1:])

	var err error
	mainthread.Run(func() {
		err = cmd.Execute()
	})

	if err != nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func newMachine(cfg *config.Config, program []byte) (*vm.VM, error) {
	opts := []vm.Option{
		vm.WithQuirks(cfg.Quirks()),
		vm.WithLogger(slog.Default()),
	}
	if cfg.Seed != 0 {
		opts = append(opts, vm.WithSeed(cfg.Seed))
	}

	machine, err := vm.New(program, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load program: %w", err)
	}
	return machine, nil
}

func runWindow(ctx context.Context, cfg *config.Config, machine *vm.VM) error {
	fg, bg := cfg.Colors()
	h, err := hal.New(hal.Options{
		Scale:      cfg.Scale,
		FrameRate:  cfg.FrameRate,
		Foreground: fg,
		Background: bg,
	})
	if err != nil {
		return fmt.Errorf("unable to initialize hal: %w", err)
	}
	defer h.Shutdown()

	return emulator.New(machine, h, cfg.EmulatorOptions()).Run(ctx)
}

func runHeadless(ctx context.Context, cfg *config.Config, machine *vm.VM) error {
	events, err := headless.ParseScript(cfg.Keys)
	if err != nil {
		return fmt.Errorf("unable to parse key script: %w", err)
	}

	h := headless.New(events)
	emu := emulator.New(machine, h, cfg.EmulatorOptions())

	runErr := emu.Run(ctx)

	fmt.Print(h.Render())
	emu.Dump()
	slog.Info("headless run finished", "frames", emu.Frames(), "draws", h.Draws())

	return runErr
}
