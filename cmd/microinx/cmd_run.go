package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OneInX/Manifest-InX/internal/canon"
	"github.com/OneInX/Manifest-InX/internal/pipeline"
	"github.com/OneInX/Manifest-InX/internal/release"
)

func newRunCmd(configPath *string) *cobra.Command {
	var (
		asJSON bool
		lang   string
		source string
	)
	cmd := &cobra.Command{
		Use:   "run <text>",
		Short: "Verify the release and classify one input",
		Args:  cobra.ExactArgs(1),
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
			res, err := e.Run(cmd.Context(), pipeline.Request{Text: args[0], Lang: lang, Source: source})
			if err != nil {
				if errors.Is(err, release.ErrIntegrity) {
					return exitWith(1, err)
				}
				return err
			}

			out := cmd.OutOrStdout()
			if !asJSON {
				fmt.Fprintln(out, res.OutputText)
				return nil
			}
			b, err := canon.Compact(res.Response)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON {output_text, sdt, template_id}")
	cmd.Flags().StringVar(&lang, "lang", "auto", "input language tag (recorded only)")
	cmd.Flags().StringVar(&source, "source", "chat", "input source tag (recorded only)")
	return cmd
}
