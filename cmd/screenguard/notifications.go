package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/screenguard/internal/storage"
	"github.com/spf13/cobra"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notifs"},
	Short:   "Inspect the notification log",
}

var notificationsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List notifications, newest first",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsLs,
}

var notificationsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every notification",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsClear,
}

var notificationsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print the notification log whenever it changes",
	Args:  cobra.NoArgs,
	RunE:  runNotificationsWatch,
}

func init() {
	notificationsCmd.AddCommand(notificationsLsCmd)
	notificationsCmd.AddCommand(notificationsClearCmd)
	notificationsCmd.AddCommand(notificationsWatchCmd)
	rootCmd.AddCommand(notificationsCmd)
}

func runNotificationsLs(cmd *cobra.Command, args []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	entries, err := svc.store.Notifications().List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list notifications: %w", err)
	}
	printNotifications(os.Stdout, entries, svc.location)
	return nil
}

func runNotificationsClear(cmd *cobra.Command, args []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	n, err := svc.store.Notifications().DeleteAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to clear notifications: %w", err)
	}
	fmt.Printf("Deleted %d notification(s)\n", n)
	return nil
}

func runNotificationsWatch(cmd *cobra.Command, args []string) error {
	svc, err := loadServices()
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for entries := range svc.store.Notifications().Watch(ctx) {
		fmt.Printf("── %s ──\n", time.Now().Format("15:04:05"))
		printNotifications(os.Stdout, entries, svc.location)
	}
	return nil
}

func printNotifications(w io.Writer, entries []storage.NotificationRecord, loc *time.Location) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No notifications")
		return
	}

	bold := color.New(color.Bold)
	faint := color.New(color.Faint)
	for _, n := range entries {
		faint.Fprintf(w, "#%d %s  ", n.ID, n.Timestamp.In(loc).Format("2006-01-02 15:04"))
		bold.Fprintln(w, n.Title)
		fmt.Fprintf(w, "    %s\n", n.Message)
	}
}
