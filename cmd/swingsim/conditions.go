package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/newthinker/swingsim/internal/config"
	"github.com/newthinker/swingsim/internal/strategy"
	"github.com/spf13/cobra"
)

var conditionsCmd = &cobra.Command{
	Use:   "conditions",
	Short: "List entry conditions",
	Long:  "List the named entry conditions and mark the ones enabled in the configuration.",
	RunE:  runConditions,
}

func init() {
	rootCmd.AddCommand(conditionsCmd)
}

func runConditions(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	enabled := make(map[string]int, len(cfg.Strategy.Conditions))
	for i, name := range cfg.Strategy.Conditions {
		enabled[name] = i + 1
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tORDER\tDESCRIPTION")
	for _, c := range strategy.NewRegistry().All() {
		order := "-"
		if n, ok := enabled[c.Name()]; ok {
			order = fmt.Sprintf("%d", n)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", c.Name(), order, c.Description())
	}
	return w.Flush()
}
