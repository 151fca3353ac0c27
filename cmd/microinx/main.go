// Command microinx runs the deterministic insight pipeline from the command
// line, as a local HTTP/gRPC service, or as a one-shot demo.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

// #region main
func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "ERROR:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return 1
	}
	return 0
}

// #endregion main

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "microinx",
		Short:         "Deterministic pattern insights with a fail-closed release",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "microinx.yaml", "path to YAML config (missing file uses defaults)")

	root.AddCommand(
		newRunCmd(&configPath),
		newVerifyCmd(&configPath),
		newServeCmd(&configPath),
		newDemoCmd(&configPath),
		newReplayCmd(&configPath),
		newInspectCmd(&configPath),
	)
	return root
}
