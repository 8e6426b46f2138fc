package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vertextoedge/cydia-mirror/internal/config"
)

const version = "0.3.0"

// Exit statuses
const (
	exitOK      = 0
	exitFatal   = 1
	exitBadArgs = 2
)

// usageError marks failures caused by the command line rather than the run
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Stdout, os.Stderr)
	err := cmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err, os.Stderr))
}

func exitCode(err error, stderr io.Writer) int {
	if err == nil {
		return exitOK
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)

	var ue *usageError
	if errors.As(err, &ue) || config.IsInvalid(err) {
		return exitBadArgs
	}
	return exitFatal
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cydia-mirror <repo-url> <save-dir>",
		Short:   "mirror a Cydia/APT repository to a local directory",
		Version: version,
		Long: `Downloads the Release file and package index of a Cydia repository,
then every package the index lists, into save-dir. Files whose checksum
already matches are skipped, so a mirror can be refreshed in place.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(2)(cmd, args); err != nil {
				return &usageError{err}
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath, cmd.Flags(), args[0], args[1])
			if err != nil {
				return err
			}
			return runMirror(cmd.Context(), cfg, out)
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})

	config.RegisterFlags(cmd.Flags())
	cmd.AddCommand(newHistoryCmd(out))

	return cmd
}
