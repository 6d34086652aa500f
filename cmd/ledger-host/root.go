package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/reglet-dev/ledger-guest/host"
)

var ErrMissingSubcommand = errors.New("must specify a subcommand")

var (
	wasmPath  string
	logLevel  string
	scanLimit int
	executor  *host.Executor
	guest     *host.Guest
	rootCmd   = &cobra.Command{
		Use:           "ledger-host",
		Short:         "Drive a ledger guest module",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return ErrMissingSubcommand
		},
	}
)

func init() {
	rootCmd.AddCommand(
		dispatchCmd,
		creditCmd,
		applyCmd,
		debitCmd,
		describeCmd,
	)

	rootCmd.PersistentFlags().StringVar(
		&wasmPath,
		"wasm",
		"ledger.wasm",
		"path to the guest module",
	)

	rootCmd.PersistentFlags().StringVar(
		&logLevel,
		"log-level",
		"info",
		"minimum level of host and guest log lines (debug, info, warn, error)",
	)

	rootCmd.PersistentFlags().IntVar(
		&scanLimit,
		"scan-limit",
		host.DefaultScanLimit,
		"maximum bytes scanned for the terminator of a guest result",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err != nil {
			return fmt.Errorf("invalid --log-level: %w", err)
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		wasmBytes, err := os.ReadFile(wasmPath)
		if err != nil {
			return fmt.Errorf("failed to read guest module: %w", err)
		}

		ctx := cmd.Context()
		executor, err = host.NewExecutor(ctx, host.WithLogger(logger), host.WithScanLimit(scanLimit))
		if err != nil {
			return err
		}
		guest, err = executor.Load(ctx, wasmBytes)
		if err != nil {
			_ = executor.Close(ctx)
			executor = nil
			return err
		}
		return nil
	}

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, _ []string) error {
		if executor == nil {
			return nil
		}
		return executor.Close(cmd.Context())
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}
