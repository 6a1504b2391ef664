package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pkkmi/andikar-gate/config"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Show configured subscription tiers",
	Long: `Show the subscription tiers the gateway enforces.

Tiers come from the config file (or the built-in defaults) and define
per-request word limits, daily and monthly quotas, and call caps.

Examples:
  andikar-gate plans list`,
}

var plansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tiers",
	RunE:  runPlansList,
}

func init() {
	rootCmd.AddCommand(plansCmd)
	plansCmd.AddCommand(plansListCmd)
}

func runPlansList(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return err
	}

	catalog := cfg.Catalog()
	tiers := catalog.List()

	names := make([]string, 0, len(tiers))
	for name := range tiers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return tiers[names[i]].PriceCents < tiers[names[j]].PriceCents
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tWORDS/REQ\tDAILY\tMONTHLY\tCALLS/WINDOW\tPRICE\tFEATURES")
	for _, name := range names {
		t := tiers[name]
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t$%.2f\t%s\n",
			t.Name,
			t.WordLimit,
			limitLabel(t.DailyWordLimit),
			limitLabel(t.MonthlyWordLimit),
			t.MaxCallsPerWindow,
			float64(t.PriceCents)/100,
			strings.Join(t.Features, ","),
		)
	}
	w.Flush()

	fmt.Printf("\nDefault tier: %s\n", catalog.Default().Name)
	return nil
}

func limitLabel(n int) string {
	if n <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", n)
}
