// Command manifestinx is the authoring tool for releases and packs: it
// validates packs, builds the template catalog from markdown and pins
// release manifests.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/OneInX/Manifest-InX/internal/assets"
	"github.com/OneInX/Manifest-InX/internal/canon"
	"github.com/OneInX/Manifest-InX/internal/catalog"
	"github.com/OneInX/Manifest-InX/internal/pack"
	"github.com/OneInX/Manifest-InX/internal/release"
)

type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// errSilent ends a command with a code after it has printed its own output.
var errSilent = errors.New("")

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
		var ee *exitError
		if errors.As(err, &ee) {
			if !errors.Is(ee.err, errSilent) {
				fmt.Fprintln(stderr, "ERROR:", ee.err)
			}
			return ee.code
		}
		fmt.Fprintln(stderr, "ERROR:", err)
		return 1
	}
	return 0
}

// #endregion main

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "manifestinx",
		Short:         "Release and pack tooling for MicroInX",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newPackCmd(), newCatalogCmd(), newReleaseCmd())
	return root
}

// #region pack

func newPackCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "pack", Short: "Pack system utilities"}
	cmd.AddCommand(newPackValidateCmd())
	return cmd
}

func newPackValidateCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Validate a local pack",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep := pack.Validate(args[0])
			out := cmd.OutOrStdout()
			if asJSON {
				b, err := canon.JSON(rep)
				if err != nil {
					return err
				}
				if _, err := out.Write(b); err != nil {
					return err
				}
			} else if rep.OK {
				fmt.Fprintln(out, "OK")
			} else {
				fmt.Fprintln(out, "FAIL")
				for _, is := range rep.Issues {
					loc := ""
					if is.Path != "" {
						loc = " [" + is.Path + "]"
					}
					fmt.Fprintf(out, "- %s%s: %s\n", is.Code, loc, is.Message)
				}
			}
			if !rep.OK {
				return &exitError{code: 2, err: errSilent}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit a JSON report")
	return cmd
}

// #endregion pack

// #region catalog

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "catalog", Short: "Template catalog utilities"}
	cmd.AddCommand(newCatalogBuildCmd())
	return cmd
}

func newCatalogBuildCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "build <markdown>",
		Short: "Build the canonical template catalog from the template library markdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			md, err := os.ReadFile(args[0])
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			b, err := catalog.BuildJSON(string(md))
			if err != nil {
				return &exitError{code: 2, err: fmt.Errorf("%s: %w", args[0], err)}
			}
			// The built bytes must load as a catalog before they are written.
			if _, err := catalog.Load(b); err != nil {
				return &exitError{code: 2, err: err}
			}
			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			return os.WriteFile(output, b, 0o644)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	return cmd
}

// #endregion catalog

// #region release

func newReleaseCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "release", Short: "Release manifest utilities"}
	cmd.AddCommand(newReleasePinCmd(), newReleaseVerifyCmd())
	return cmd
}

func newReleasePinCmd() *cobra.Command {
	var (
		baseDir   string
		layoutDir string
		version   string
		output    string
	)
	cmd := &cobra.Command{
		Use:   "pin [key...]",
		Short: "Hash release artifacts and write the manifest",
		Long: "Pins each key as found under --base (layout dir first, then flat).\n" +
			"Without keys the default release artifacts are pinned.",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys := args
			if len(keys) == 0 {
				keys = []string{assets.TemplatesKey, assets.RulesKey}
			}
			sort.Strings(keys)
			m, err := release.PinFiles(baseDir, layoutDir, keys, version)
			if err != nil {
				return &exitError{code: 2, err: err}
			}
			if output == "-" {
				b, err := m.MarshalCanonical()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(b)
				return err
			}
			if output == "" {
				output = filepath.Join(baseDir, assets.ManifestName)
			}
			if err := release.WriteManifest(output, m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "pinned %d file(s) to %s\n", len(keys), output)
			return nil
		},
	}
	cmd.Flags().StringVar(&baseDir, "base", ".", "base directory the keys resolve against")
	cmd.Flags().StringVar(&layoutDir, "layout", release.DefaultLayoutDir, "structured layout dir under --base")
	cmd.Flags().StringVar(&version, "version", "", "release version recorded in the manifest")
	cmd.Flags().StringVarP(&output, "output", "o", "", "manifest path (default <base>/"+assets.ManifestName+", - for stdout)")
	return cmd
}

func newReleaseVerifyCmd() *cobra.Command {
	var opts release.Options
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a release directory against its manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rel, err := release.Verify(opts)
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK release %s (manifest: %s)\n", rel.Version(), rel.ManifestSource)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.BaseDir, "base", "", "base directory (default: working directory)")
	cmd.Flags().StringVar(&opts.LayoutDir, "layout", release.DefaultLayoutDir, "structured layout dir under --base")
	cmd.Flags().StringVar(&opts.ManifestPath, "manifest", "", "explicit manifest path")
	return cmd
}

// #endregion release
