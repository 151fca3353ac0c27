package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OneInX/Manifest-InX/internal/pipeline"
	"github.com/OneInX/Manifest-InX/internal/replay"
	"github.com/OneInX/Manifest-InX/internal/store"
)

func newReplayCmd(configPath *string) *cobra.Command {
	var fixturePath, dbPath string
	var limit int
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the golden fixture or recorded runs against the current release",
		Long: "Without flags the bundled golden fixture is replayed. --fixture replays another\n" +
			"fixture file, --db re-runs inputs recorded in an audit database.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fixturePath != "" && dbPath != "" {
				return exitWith(2, errors.New("replay: --fixture and --db are mutually exclusive"))
			}
			a, err := newApp(*configPath)
			if err != nil {
				return exitWith(2, err)
			}
			defer a.close()

			// Replays are not recorded.
			e, err := pipeline.Open(a.engineConfig(), pipeline.WithLogger(a.logger))
			a.logIntegrity(e, err)
			if err != nil {
				return exitWith(1, err)
			}

			var results []replay.ReplayResult
			if dbPath != "" {
				results, err = replayDB(cmd, e, dbPath, limit)
			} else {
				results, err = replayFixture(cmd, e, fixturePath)
			}
			if err != nil {
				return err
			}

			sum := printReplay(cmd.OutOrStdout(), results)
			if !sum.OK() {
				return exitWith(1, fmt.Errorf("replay: %d of %d cases diverged", sum.Divergences, sum.Total))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "path to a fixture JSON (default: bundled golden fixture)")
	cmd.Flags().StringVar(&dbPath, "db", "", "path to an audit database to replay recorded runs from")
	cmd.Flags().IntVar(&limit, "limit", 0, "with --db, replay only the N most recent runs (0 = all)")
	return cmd
}

func replayFixture(cmd *cobra.Command, e *pipeline.Engine, path string) ([]replay.ReplayResult, error) {
	f := replay.Golden()
	if path != "" {
		var err error
		if f, err = replay.LoadFixture(path); err != nil {
			return nil, exitWith(2, err)
		}
	}
	if f.ManifestVersion != "" && f.ManifestVersion != e.Version() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: fixture pinned to release %s, running %s\n", f.ManifestVersion, e.Version())
	}
	return replay.Replay(cmd.Context(), e, e.Gate(), f)
}

func replayDB(cmd *cobra.Command, e *pipeline.Engine, path string, limit int) ([]replay.ReplayResult, error) {
	st, err := store.NewStore(path)
	if err != nil {
		return nil, exitWith(2, fmt.Errorf("open db: %w", err))
	}
	defer st.Close()

	runs, err := st.ListRuns(limit)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, exitWith(2, errors.New("replay: no recorded runs found"))
	}
	return replay.ReplayRuns(cmd.Context(), e, runs)
}

// #region output

func printReplay(w io.Writer, results []replay.ReplayResult) replay.ReplaySummary {
	fmt.Fprintf(w, "%-38s| %-10s| %s\n", "Case", "Kind", "Result")
	fmt.Fprintf(w, "%-38s+%-10s+%s\n", strings.Repeat("-", 38), strings.Repeat("-", 11), strings.Repeat("-", 10))
	for _, r := range results {
		action := r.Action
		if r.VersionChanged {
			action += " (version changed)"
		}
		fmt.Fprintf(w, "%-38s| %-10s| %s\n", r.CaseID, r.Kind, action)
	}

	for _, r := range results {
		if r.Action == replay.ActionDiverged {
			fmt.Fprintf(w, "\n%s (-expected +actual):\n%s", r.CaseID, r.Diff)
		}
	}

	sum := replay.Summarize(results)
	fmt.Fprintf(w, "\nSummary: %d total, %d match, %d diverge", sum.Total, sum.Matches, sum.Divergences)
	if sum.VersionChanges > 0 {
		fmt.Fprintf(w, ", %d from another release", sum.VersionChanges)
	}
	fmt.Fprintln(w)
	return sum
}

// #endregion output
