package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/nyc311-cli/internal/runlog"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List report run history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		runs, err := runlog.Open(ctx, cfg.RunLog.Driver, cfg.RunLog.DSN)
		if err != nil {
			return eris.Wrap(err, "runs")
		}
		defer runs.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		entries, err := runs.List(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs")
		}

		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		format, _ := cmd.Flags().GetString("format")
		return writeRuns(os.Stdout, format, entries)
	},
}

// writeRuns renders entries as a table, JSON or YAML.
func writeRuns(out io.Writer, format string, entries []runlog.Entry) error {
	switch format {
	case "", "table":
		formatRunsList(out, entries)
		return nil
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return eris.Wrap(err, "runs: encode yaml")
		}
		return enc.Close()
	default:
		return eris.Errorf("runs: unknown format %q (valid: table, json, yaml)", format)
	}
}

func init() {
	runsCmd.Flags().Int("limit", 50, "max number of runs to display")
	runsCmd.Flags().String("format", "table", "output format: table, json or yaml")
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a table of runs to out.
func formatRunsList(out io.Writer, entries []runlog.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tWINDOW\tTOP\tSTATUS\tROWS\tDROPPED\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t---\t------\t----\t-------\t-------\t--------")

	for _, e := range entries {
		dur := ""
		if e.CompletedAt != nil {
			dur = e.CompletedAt.Sub(e.StartedAt).Round(time.Second).String()
		}
		status := e.Status
		if e.Error != "" {
			msg := e.Error
			if len(msg) > 40 {
				msg = msg[:37] + "..."
			}
			status += ": " + msg
		}

		_, _ = fmt.Fprintf(w, "%s\t%s..%s\t%d\t%s\t%d\t%d\t%s\t%s\n",
			truncateID(e.ID),
			e.Start, e.End,
			e.TopN,
			status,
			e.Rows,
			len(e.Dropped),
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
