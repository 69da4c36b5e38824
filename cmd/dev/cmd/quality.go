package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

func TestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Run unit tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := test.Test(); err != nil {
				return fmt.Errorf("failed to run tests: %w", err)
			}
			return nil
		},
	}
}

func LintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint",
		Short: "Run linting",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := test.Lint(); err != nil {
				return fmt.Errorf("failed to run linting: %w", err)
			}
			return nil
		},
	}
}

// smoke runs the cli against the simulated bus, no hardware needed
var smoke = [][]string{
	{"--adapter", "sim", "thermo", "read"},
	{"--adapter", "sim", "thermo", "read", "--raw"},
	{"--adapter", "sim", "--unit", "K", "thermo", "read", "--yaml"},
	{"--adapter", "sim", "thermo", "discover"},
	{"--adapter", "sim", "thermo", "address", "get"},
	{"--adapter", "sim", "thermo", "address", "write", "--yes", "--verify", "0x33"},
}

// runSmoke runs every smoke case with the given cli invocation.
func runSmoke(ctx context.Context, cli ...string) error {
	for _, a := range smoke {
		slog.Info("smoke test", "args", a)
		run := exec.CommandContext(ctx, cli[0], slices.Concat(cli[1:], a)...)
		run.Stdout = os.Stdout
		run.Stderr = os.Stderr
		if err := run.Run(); err != nil {
			return fmt.Errorf("smoke test %v failed: %w", a, err)
		}
	}
	return nil
}

func IntegrationTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "integration-test",
		Short: "Run integration testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := test.Integ(); err != nil {
				return fmt.Errorf("failed to run integration testing: %w", err)
			}
			skip, err := cmd.Flags().GetBool("no-smoke")
			if err != nil {
				return fmt.Errorf("could not get no-smoke flag: %w", err)
			}
			if skip {
				return nil
			}
			return runSmoke(cmd.Context(), "go", "run", "./cmd/irsensors")
		},
	}
	cmd.Flags().Bool("no-smoke", false, "skip cli runs against the simulated bus")
	return cmd
}
