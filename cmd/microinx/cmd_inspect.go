package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/OneInX/Manifest-InX/internal/canon"
	"github.com/OneInX/Manifest-InX/internal/store"
)

func newInspectCmd(configPath *string) *cobra.Command {
	var (
		dbPath string
		last   int
		runID  string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show recorded runs and release verifications from the audit database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				a, err := newApp(*configPath)
				if err != nil {
					return exitWith(2, err)
				}
				dbPath = a.cfg.Audit.DBPath
				a.close()
			}
			if dbPath == "" {
				return exitWith(2, errors.New("inspect: no audit database (set --db or audit.db_path)"))
			}

			st, err := store.NewStore(dbPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if runID != "" {
				return inspectRun(out, st, runID, asJSON)
			}
			return inspectList(out, st, last, asJSON)
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "path to the audit database (default: audit.db_path)")
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent runs and verifications")
	cmd.Flags().StringVar(&runID, "run", "", "show a single run in detail")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON instead of a table")
	return cmd
}

// #region list-mode

// runRow and integrityRow are the JSON shapes of inspect. Fields are in key order.
type runRow struct {
	Composite       string   `json:"composite,omitempty"`
	Confidence      float64  `json:"confidence"`
	CreatedAt       string   `json:"created_at"`
	Dominant        string   `json:"dominant"`
	InputSHA256     string   `json:"input_sha256"`
	InputText       string   `json:"input_text,omitempty"`
	Lang            string   `json:"lang,omitempty"`
	ManifestVersion string   `json:"manifest_version"`
	RunID           string   `json:"run_id"`
	SDTPass         bool     `json:"sdt_pass"`
	Secondary       string   `json:"secondary,omitempty"`
	Source          string   `json:"source,omitempty"`
	TemplateID      string   `json:"template_id"`
	Violations      []string `json:"violations"`
}

type integrityRow struct {
	CreatedAt       string `json:"created_at"`
	Key             string `json:"key,omitempty"`
	ManifestSource  string `json:"manifest_source,omitempty"`
	ManifestVersion string `json:"manifest_version,omitempty"`
	Outcome         string `json:"outcome"`
	Reason          string `json:"reason,omitempty"`
}

type inspectReport struct {
	Integrity []integrityRow `json:"integrity"`
	Runs      []runRow       `json:"runs"`
}

func toRunRow(rec store.RunRecord, withText bool) runRow {
	row := runRow{
		Composite:       rec.Composite,
		Confidence:      rec.Confidence,
		CreatedAt:       rec.CreatedAt.Format(time.RFC3339),
		Dominant:        rec.Dominant,
		InputSHA256:     rec.InputSHA256,
		Lang:            rec.Lang,
		ManifestVersion: rec.ManifestVersion,
		RunID:           rec.RunID,
		SDTPass:         rec.SDTPass,
		Secondary:       rec.Secondary,
		Source:          rec.Source,
		TemplateID:      rec.TemplateID,
		Violations:      rec.Violations,
	}
	if row.Violations == nil {
		row.Violations = []string{}
	}
	if withText {
		row.InputText = rec.InputText
	}
	return row
}

func inspectList(w io.Writer, st *store.Store, last int, asJSON bool) error {
	runs, err := st.ListRuns(last)
	if err != nil {
		return err
	}
	events, err := st.ListIntegrity(last)
	if err != nil {
		return err
	}

	rep := inspectReport{Integrity: []integrityRow{}, Runs: make([]runRow, 0, len(runs))}
	for _, rec := range runs {
		rep.Runs = append(rep.Runs, toRunRow(rec, false))
	}
	for _, ev := range events {
		rep.Integrity = append(rep.Integrity, integrityRow{
			CreatedAt:       ev.CreatedAt.Format(time.RFC3339),
			Key:             ev.Key,
			ManifestSource:  ev.ManifestSource,
			ManifestVersion: ev.ManifestVersion,
			Outcome:         ev.Outcome,
			Reason:          ev.Reason,
		})
	}

	if asJSON {
		b, err := canon.JSON(rep)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	}

	if len(rep.Runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
	} else {
		fmt.Fprintf(w, "%-36s  %-5s  %-9s  %-9s  %-10s  %4s  %-8s  %s\n",
			"Run", "Tmpl", "Dominant", "Secondary", "Composite", "SDT", "Release", "Created")
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", 112))
		for _, r := range rep.Runs {
			fmt.Fprintf(w, "%-36s  %-5s  %-9s  %-9s  %-10s  %4s  %-8s  %s\n",
				r.RunID, r.TemplateID, r.Dominant, dash(r.Secondary), dash(r.Composite),
				passMark(r.SDTPass), r.ManifestVersion, r.CreatedAt)
		}
	}

	fmt.Fprintln(w)
	if len(rep.Integrity) == 0 {
		fmt.Fprintln(w, "no verifications recorded")
		return nil
	}
	fmt.Fprintf(w, "%-9s  %-8s  %-9s  %-26s  %-24s  %s\n", "Outcome", "Release", "Manifest", "Reason", "Key", "Created")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 100))
	for _, r := range rep.Integrity {
		fmt.Fprintf(w, "%-9s  %-8s  %-9s  %-26s  %-24s  %s\n",
			r.Outcome, dash(r.ManifestVersion), dash(r.ManifestSource), dash(r.Reason), dash(r.Key), r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

func inspectRun(w io.Writer, st *store.Store, id string, asJSON bool) error {
	rec, err := st.GetRun(id)
	if err != nil {
		return err
	}
	row := toRunRow(rec, true)
	if asJSON {
		b, err := canon.JSON(row)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	}

	fmt.Fprintf(w, "Run:        %s\n", row.RunID)
	fmt.Fprintf(w, "Created:    %s\n", row.CreatedAt)
	fmt.Fprintf(w, "Release:    %s\n", row.ManifestVersion)
	fmt.Fprintf(w, "Input:      %q\n", row.InputText)
	fmt.Fprintf(w, "SHA-256:    %s\n", row.InputSHA256)
	fmt.Fprintf(w, "Lang/src:   %s / %s\n", dash(row.Lang), dash(row.Source))
	fmt.Fprintf(w, "Template:   %s\n", row.TemplateID)
	fmt.Fprintf(w, "Dominant:   %s\n", row.Dominant)
	fmt.Fprintf(w, "Secondary:  %s\n", dash(row.Secondary))
	fmt.Fprintf(w, "Composite:  %s\n", dash(row.Composite))
	fmt.Fprintf(w, "Confidence: %.4f\n", row.Confidence)
	fmt.Fprintf(w, "SDT:        %s\n", passMark(row.SDTPass))
	for _, v := range row.Violations {
		fmt.Fprintf(w, "  - %s\n", v)
	}
	return nil
}

// #endregion detail-mode

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func passMark(ok bool) string {
	if ok {
		return "pass"
	}
	return "FAIL"
}
