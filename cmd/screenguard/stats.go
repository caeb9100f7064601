package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/goodtune/screenguard/internal/config"
	"github.com/goodtune/screenguard/internal/usage"
	"github.com/spf13/cobra"
)

var statsDays int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show today's usage and the daily history",
	Long: `Show today's per-app usage grouped by category, followed by one line per
day of history. Past days are served from storage once computed.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsDays, "days", 0, "Days of history to show, at most usage.retention_days (defaults to usage.history_days)")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	days, err := historyWindow(statsDays, svc.cfg.Usage)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	apps, err := svc.aggregator.Today(ctx, svc.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to aggregate today's usage: %w", err)
	}
	history, err := svc.history.Get(ctx, days)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	bold := color.New(color.Bold)

	var total int64
	for _, a := range apps {
		total += a.UsageMillis
	}

	fmt.Println()
	cyan.Println("TODAY")
	fmt.Printf("Total: ")
	bold.Println(usage.FormatDuration(total))
	fmt.Println()

	if len(apps) == 0 {
		fmt.Println("No usage recorded yet")
	} else {
		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "APP\tCATEGORY\tTIME")
		for _, a := range apps {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", a.DisplayName, a.Category, usage.FormatDuration(a.UsageMillis))
		}
		_ = tw.Flush()

		fmt.Println()
		cyan.Println("BY CATEGORY")
		for _, c := range categoryTotals(apps) {
			fmt.Printf("  %-14s %s\n", c.category, usage.FormatDuration(c.millis))
		}
	}

	fmt.Println()
	cyan.Printf("LAST %d DAYS\n", days)
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tDAY\tTIME\tAPPS\tMOST USED")
	for _, d := range history {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", d.DateLabel, d.DayLabel, usage.FormatDuration(d.TotalMillis), d.AppCount, d.MostUsedApp)
	}
	_ = tw.Flush()
	fmt.Println()
	return nil
}

// historyWindow resolves --days. Days past retention_days would be purged
// again by the nightly cleanup and re-queried on every call.
func historyWindow(requested int, cfg config.UsageConfig) (int, error) {
	if requested <= 0 {
		return cfg.HistoryDays, nil
	}
	if requested > cfg.RetentionDays {
		return 0, fmt.Errorf("--days %d exceeds usage.retention_days (%d)", requested, cfg.RetentionDays)
	}
	return requested, nil
}

type categoryTotal struct {
	category usage.Category
	millis   int64
}

func categoryTotals(apps []usage.AppUsageSummary) []categoryTotal {
	sums := make(map[usage.Category]int64)
	for _, a := range apps {
		sums[a.Category] += a.UsageMillis
	}

	out := make([]categoryTotal, 0, len(sums))
	for c, ms := range sums {
		out = append(out, categoryTotal{category: c, millis: ms})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].millis != out[j].millis {
			return out[i].millis > out[j].millis
		}
		return out[i].category < out[j].category
	})
	return out
}
