package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/goodtune/screenguard/internal/monitor"
	"github.com/goodtune/screenguard/internal/usage"
	"github.com/spf13/cobra"
)

var checkForeground string

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Evaluate the active limits once without acting",
	Long: `Run one monitor evaluation against the device and print, per active limit,
the minutes used today and whether ScreenGuard would warn or block. Nothing is
sent and no block screen is raised.`,
	Example: `  screenguard check
  screenguard check --foreground com.example.game`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkForeground, "foreground", "", "Assume this package is in the foreground instead of detecting it")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := cmd.Context()
	now := svc.clock.Now()

	foreground := checkForeground
	if foreground == "" {
		detector := monitor.NewForegroundDetector(svc.device, svc.cfg.Monitor.ForegroundWindow, quietLogger())
		foreground, err = detector.Current(ctx, now)
		if err != nil {
			return fmt.Errorf("failed to detect foreground app: %w", err)
		}
	}

	limits, err := svc.store.Limits().ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active limits: %w", err)
	}
	apps, err := svc.aggregator.Today(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to aggregate today's usage: %w", err)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("LIMIT CHECK")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Check Time: %s\n", now.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("Foreground: %s\n", foreground)
	if svc.cfg.Monitor.SelfPackage != "" && foreground == svc.cfg.Monitor.SelfPackage {
		yellow.Println("            → ScreenGuard itself is in the foreground; the monitor would skip this tick")
	}
	fmt.Println()

	if len(limits) == 0 {
		fmt.Println("No active limits")
		fmt.Println()
		return nil
	}

	for _, limit := range limits {
		var used int64
		if s, ok := usage.Find(apps, limit.PackageID); ok {
			used = s.UsageMillis
		}
		d := monitor.Evaluate(limit, used, foreground, svc.cfg.Monitor.WarningPercent)

		fmt.Printf("%s (%s)\n", monitor.AppName(limit), limit.PackageID)
		fmt.Printf("  Used:     %d of %d minutes (%.0f%%)\n", d.UsedMinutes, limit.LimitMinutes, d.Percent)
		cyan.Print("  Decision: ")
		switch {
		case d.Block:
			red.Println("BLOCK")
			fmt.Println("            → Block screen would be raised")
		case d.Exceeded:
			red.Println("EXCEEDED")
			fmt.Println("            → Blocked as soon as the app comes to the foreground")
		case d.Warn:
			yellow.Println("WARN")
			fmt.Printf("            → Pre-warning %s (sent at most once per daemon run)\n", monitor.WarningKey(limit, svc.cfg.Monitor.WarningPercent))
		default:
			green.Println("OK")
		}
		fmt.Println()
	}

	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	return nil
}
