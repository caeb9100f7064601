package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/screenguard/internal/appmeta"
	"github.com/goodtune/screenguard/internal/storage"
	"github.com/spf13/cobra"
)

var (
	limitName       string
	limitInactive   bool
	limitSkipDevice bool
	limitsActive    bool
)

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Manage daily app limits",
}

var limitsSetCmd = &cobra.Command{
	Use:   "set [flags] PACKAGE MINUTES",
	Short: "Create or replace the daily limit for an app",
	Example: `  screenguard limits set com.example.game 30
  screenguard limits set --name "Game" --skip-device com.example.game 45`,
	Args: cobra.ExactArgs(2),
	RunE: runLimitsSet,
}

var limitsRmCmd = &cobra.Command{
	Use:   "rm PACKAGE",
	Short: "Delete the limit for an app",
	Args:  cobra.ExactArgs(1),
	RunE:  runLimitsRm,
}

var limitsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List configured limits",
	Args:  cobra.NoArgs,
	RunE:  runLimitsLs,
}

var limitsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the limit list whenever it changes",
	Args:  cobra.NoArgs,
	RunE:  runLimitsWatch,
}

func init() {
	limitsSetCmd.Flags().StringVar(&limitName, "name", "", "Display name (defaults to the device's app label)")
	limitsSetCmd.Flags().BoolVar(&limitInactive, "inactive", false, "Store the limit without enforcing it")
	limitsSetCmd.Flags().BoolVar(&limitSkipDevice, "skip-device", false, "Do not check that the app is installed")
	limitsLsCmd.Flags().BoolVar(&limitsActive, "active", false, "Only list active limits")

	limitsCmd.AddCommand(limitsSetCmd)
	limitsCmd.AddCommand(limitsRmCmd)
	limitsCmd.AddCommand(limitsLsCmd)
	limitsCmd.AddCommand(limitsWatchCmd)
	rootCmd.AddCommand(limitsCmd)
}

func runLimitsSet(cmd *cobra.Command, args []string) error {
	packageID := args[0]
	minutes, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid minutes %q: %w", args[1], err)
	}

	svc, err := loadServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := cmd.Context()
	name := limitName
	if !limitSkipDevice {
		app, err := findInstalledApp(ctx, svc, packageID)
		if err != nil {
			return err
		}
		if name == "" {
			name = app.Label
		}
	}
	if name == "" {
		name = packageID
	}

	limit := storage.LimitRecord{
		PackageID:    packageID,
		DisplayName:  name,
		LimitMinutes: minutes,
		Active:       !limitInactive,
	}
	if err := svc.store.Limits().Upsert(ctx, limit); err != nil {
		return fmt.Errorf("failed to save limit: %w", err)
	}

	green := color.New(color.FgGreen, color.Bold)
	green.Printf("✓ ")
	fmt.Printf("%s (%s): %d minutes per day", name, packageID, minutes)
	if limitInactive {
		fmt.Print(" [inactive]")
	}
	fmt.Println()
	return nil
}

func findInstalledApp(ctx context.Context, svc *services, packageID string) (appmeta.AppInfo, error) {
	apps, err := svc.device.InstalledApps(ctx)
	if err != nil {
		return appmeta.AppInfo{}, fmt.Errorf("failed to list installed apps (use --skip-device to bypass): %w", err)
	}
	for _, app := range apps {
		if app.PackageID == packageID {
			return app, nil
		}
	}
	return appmeta.AppInfo{}, fmt.Errorf("%s is not installed on the device (use --skip-device to bypass): %w", packageID, appmeta.ErrUnknownApp)
}

func runLimitsRm(cmd *cobra.Command, args []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.store.Limits().Delete(cmd.Context(), args[0]); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no limit configured for %s", args[0])
		}
		return fmt.Errorf("failed to delete limit: %w", err)
	}
	fmt.Printf("Removed limit for %s\n", args[0])
	return nil
}

func runLimitsLs(cmd *cobra.Command, args []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	var limits []storage.LimitRecord
	if limitsActive {
		limits, err = svc.store.Limits().ListActive(cmd.Context())
	} else {
		limits, err = svc.store.Limits().List(cmd.Context())
	}
	if err != nil {
		return fmt.Errorf("failed to list limits: %w", err)
	}

	printLimits(os.Stdout, limits)
	return nil
}

func runLimitsWatch(cmd *cobra.Command, args []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for limits := range svc.store.Limits().Watch(ctx) {
		fmt.Printf("── %s ──\n", time.Now().Format("15:04:05"))
		printLimits(os.Stdout, limits)
	}
	return nil
}

func printLimits(w io.Writer, limits []storage.LimitRecord) {
	if len(limits) == 0 {
		fmt.Fprintln(w, "No limits configured")
		return
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PACKAGE\tNAME\tMINUTES\tSTATUS")
	for _, l := range limits {
		status := yellow.Sprint("inactive")
		if l.Active {
			status = green.Sprint("active")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", l.PackageID, l.DisplayName, l.LimitMinutes, status)
	}
	_ = tw.Flush()
}
