package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/newthinker/swingsim/internal/app"
	"github.com/newthinker/swingsim/internal/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	runSource        string
	runTicker        string
	runDaily         string
	runIntraday      string
	runFrom          string
	runTo            string
	runConditionList string
	runFormats       string
	runOut           string
	runQuiet         bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation",
	Long: `Load market data, simulate the strategy and write the configured reports,
journal entry, archive artifacts and metrics. Flags override the config file.`,
	Args: cobra.NoArgs,
	RunE: runSimulation,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runSource, "source", "", "market data source (csv or yahoo)")
	f.StringVar(&runTicker, "ticker", "", "ticker symbol")
	f.StringVar(&runDaily, "daily", "", "daily bars CSV file")
	f.StringVar(&runIntraday, "intraday", "", "intraday bars CSV file")
	f.StringVar(&runFrom, "from", "", "first simulated date YYYY-MM-DD")
	f.StringVar(&runTo, "to", "", "last fetched date YYYY-MM-DD (remote sources)")
	f.StringVar(&runConditionList, "conditions", "", "comma-separated entry conditions")
	f.StringVar(&runFormats, "format", "", "comma-separated report formats (json,yaml,csv,text)")
	f.StringVar(&runOut, "out", "", "report directory")
	f.BoolVarP(&runQuiet, "quiet", "q", false, "do not print the summary")

	rootCmd.AddCommand(runCmd)
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Data.Source, runSource)
	set(&cfg.Data.Ticker, runTicker)
	set(&cfg.Data.Daily, runDaily)
	set(&cfg.Data.Intraday, runIntraday)
	set(&cfg.Data.Start, runFrom)
	set(&cfg.Data.End, runTo)
	set(&cfg.Report.Dir, runOut)
	if runConditionList != "" {
		cfg.Strategy.Conditions = splitList(runConditionList)
	}
	if runFormats != "" {
		cfg.Report.Formats = splitList(runFormats)
	}
	if runQuiet {
		cfg.Report.Summary = false
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out, err := app.New(cfg, log).Run(ctx)
	if err != nil {
		log.Error("run failed", zap.Error(err))
		return err
	}

	if cfg.Report.Summary {
		w := cmd.OutOrStdout()
		if err := report.WriteTradeSummary(w, out.Result.Positions); err != nil {
			return err
		}
		if err := report.WriteFinalSummary(w, out.Result); err != nil {
			return err
		}
	}
	for _, p := range out.Reports {
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", p)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
