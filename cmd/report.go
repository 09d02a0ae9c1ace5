package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/nyc311-cli/internal/model"
	"github.com/sells-group/nyc311-cli/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Build a rolling top-N report",
	Long: `Build the top-N complaint report for every day from --start to --date.

Missing daily extracts are collected first. A window that was already
reported is not recomputed. Use --xlsx to also export the report as a
workbook.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		defer pushMetrics(ctx)

		w, err := parseWindowFlags(cmd, time.Now().UTC())
		if err != nil {
			return err
		}
		if err := w.Validate(); err != nil {
			return eris.Wrap(err, "report")
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Task.Run(ctx, w)
		if err != nil {
			return eris.Wrap(err, "report")
		}
		printResult(os.Stdout, res)

		xlsxPath, _ := cmd.Flags().GetString("xlsx")
		if xlsxPath == "" {
			return nil
		}
		rows := res.Rows
		if res.Skipped {
			if rows, err = env.Reports.ReadReport(ctx, w); err != nil {
				return eris.Wrap(err, "report: load for export")
			}
		}
		if err := report.SaveXLSX(xlsxPath, rows); err != nil {
			return err
		}
		fmt.Printf("Exported %d rows to %s\n", len(rows), xlsxPath)
		return nil
	},
}

// parseWindowFlags reads --start, --date and --top, applying config defaults.
func parseWindowFlags(cmd *cobra.Command, now time.Time) (model.Window, error) {
	dateStr, _ := cmd.Flags().GetString("date")
	startStr, _ := cmd.Flags().GetString("start")

	end, err := parseDay(dateStr, now)
	if err != nil {
		return model.Window{}, eris.Wrap(err, "report: --date")
	}
	if startStr == "" {
		startStr = cfg.Report.DefaultStart
	}
	start, err := model.ParseDay(startStr)
	if err != nil {
		return model.Window{}, eris.Wrap(err, "report: --start")
	}
	topN := cfg.Report.DefaultTopN
	if cmd.Flags().Changed("top") {
		topN, _ = cmd.Flags().GetInt("top")
	}
	return model.NewWindow(start, end, topN), nil
}

func printResult(out io.Writer, res *report.Result) {
	if res.Skipped {
		_, _ = fmt.Fprintf(out, "Window %s already done: %s\n", res.Window, res.ReportKey)
		return
	}
	_, _ = fmt.Fprintf(out, "Report %s: %d rows written to %s\n", res.Window, len(res.Rows), res.ReportKey)
	if len(res.Dropped) > 0 {
		_, _ = fmt.Fprintf(out, "Dropped %d day(s) with missing or unreadable extracts: %v\n", len(res.Dropped), res.Dropped)
	}
}

func init() {
	reportCmd.Flags().String("date", "", "last day of the window, YYYY-MM-DD (default today UTC)")
	reportCmd.Flags().String("start", "", "first day of the window, YYYY-MM-DD (default report.default_start)")
	reportCmd.Flags().Int("top", 0, "number of complaint types per scope, 1-100 (default report.default_top_n)")
	reportCmd.Flags().String("xlsx", "", "also export the report to this XLSX path")
	rootCmd.AddCommand(reportCmd)
}
