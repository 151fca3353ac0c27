package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OneInX/Manifest-InX/internal/canon"
)

// verifyReport is the --json output of verify. Fields are in key order.
type verifyReport struct {
	Artifacts      map[string]string `json:"artifacts"`
	ManifestPath   string            `json:"manifest_path,omitempty"`
	ManifestSource string            `json:"manifest_source"`
	OK             bool              `json:"ok"`
	Version        string            `json:"version"`
}

func newVerifyCmd(configPath *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the release manifest and template conformance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return exitWith(2, err)
			}
			defer a.close()

			e, err := a.openEngine()
			if err != nil {
				return exitWith(1, err)
			}
			rel := e.Release()
			out := cmd.OutOrStdout()

			if asJSON {
				rep := verifyReport{
					Artifacts:      make(map[string]string),
					ManifestPath:   rel.ManifestPath,
					ManifestSource: string(rel.ManifestSource),
					OK:             true,
					Version:        rel.Version(),
				}
				for _, key := range rel.Files() {
					rep.Artifacts[key] = string(rel.Source(key))
				}
				b, err := canon.JSON(rep)
				if err != nil {
					return err
				}
				_, err = out.Write(b)
				return err
			}

			fmt.Fprintf(out, "OK release %s (manifest: %s)\n", rel.Version(), rel.ManifestSource)
			for _, key := range rel.Files() {
				fmt.Fprintf(out, "  %s [%s]\n", key, rel.Source(key))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit a JSON report")
	return cmd
}
