package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/newthinker/swingsim/internal/app"
	"github.com/newthinker/swingsim/internal/storage/archive"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List journaled runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the trades of a journaled run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "List archived runs",
	Args:  cobra.NoArgs,
	RunE:  runArchiveList,
}

var historyTicker string

func init() {
	historyCmd.PersistentFlags().StringVar(&historyTicker, "ticker", "", "only runs of this ticker")
	archiveCmd.Flags().StringVar(&historyTicker, "ticker", "", "only runs of this ticker")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(archiveCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	j, err := app.New(cfg, log).OpenJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	runs, err := j.ListRuns(cmd.Context(), historyTicker)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tTICKER\tRECORDED\tPERIOD\tTRADES\tWIN RATE\tPROFIT\tLIQUIDITY")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s..%s\t%d\t%.2f%%\t$%s\t$%s\n",
			r.RunID, r.Ticker, r.RecordedAt.Format("2006-01-02 15:04"),
			r.StartDate.Format("2006-01-02"), r.EndDate.Format("2006-01-02"),
			r.TotalTrades, r.WinRate, r.TotalProfit.StringFixed(2), r.FinalLiquidity.StringFixed(2))
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	j, err := app.New(cfg, log).OpenJournal()
	if err != nil {
		return err
	}
	defer j.Close()

	ctx := cmd.Context()
	run, err := j.GetRun(ctx, args[0])
	if err != nil {
		return err
	}
	trades, err := j.ListTrades(ctx, run.RunID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run %s (%s) %s..%s\n\n", run.RunID, run.Ticker,
		run.StartDate.Format("2006-01-02"), run.EndDate.Format("2006-01-02"))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "POS\tENTRY\tPRICE\tSHARES\tPARTIAL\tEXIT\tPRICE\tREASON\tPROFIT\tRETURN")
	for _, t := range trades {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%s\t%s\t%s\t%.2f%%\n",
			t.Key, t.EntryDate.Format("2006-01-02"), t.EntryPrice.StringFixed(2), t.Shares,
			t.PartialShares, t.ExitDate.Format("2006-01-02 15:04"), t.ExitPrice.StringFixed(2),
			t.CloseReason, t.Profit.StringFixed(2), t.Return)
	}
	return w.Flush()
}

func runArchiveList(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := app.New(cfg, log).OpenArchive()
	if err != nil {
		return err
	}

	manifests, err := archive.NewRuns(store).List(cmd.Context(), historyTicker)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tTICKER\tCREATED\tARTIFACTS")
	for _, m := range manifests {
		names := make([]string, 0, len(m.Artifacts))
		for _, a := range m.Artifacts {
			names = append(names, a.Name)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.RunID, m.Ticker,
			m.CreatedAt.Format("2006-01-02 15:04"), strings.Join(names, ","))
	}
	return w.Flush()
}
