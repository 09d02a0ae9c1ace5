package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nyc311-cli/internal/model"
)

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect daily extracts",
	Long: `Fetch and persist the extract for one day, or for every day from --start to --date.

Days whose extract already exists are skipped. A failing day does not stop
the others; the command exits non-zero if any day failed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		defer pushMetrics(ctx)

		dateStr, _ := cmd.Flags().GetString("date")
		startStr, _ := cmd.Flags().GetString("start")

		end, err := parseDay(dateStr, time.Now().UTC())
		if err != nil {
			return eris.Wrap(err, "collect: --date")
		}
		start := end
		if startStr != "" {
			if start, err = model.ParseDay(startStr); err != nil {
				return eris.Wrap(err, "collect: --start")
			}
		}
		if end.Before(start) {
			return eris.Errorf("collect: --date %s is before --start %s", model.FormatDay(end), model.FormatDay(start))
		}

		env, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		days := model.Window{Start: start, End: end}.Days()
		zap.L().Info("collecting days",
			zap.String("command", "collect"),
			zap.String("start", model.FormatDay(start)),
			zap.String("end", model.FormatDay(end)),
			zap.Int("days", len(days)),
		)

		if err := env.Collector.Collect(ctx, days); err != nil {
			return eris.Wrap(err, "collect")
		}

		fmt.Printf("Collected %d day(s) %s..%s\n", len(days), model.FormatDay(start), model.FormatDay(end))
		return nil
	},
}

func init() {
	collectCmd.Flags().String("date", "", "day to collect, YYYY-MM-DD (default today UTC)")
	collectCmd.Flags().String("start", "", "first day of a range to collect, YYYY-MM-DD")
	rootCmd.AddCommand(collectCmd)
}
