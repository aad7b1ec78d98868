package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one poll cycle and exit",
	Long: "Checks every active subscription once, records changes, sends " +
		"notifications, and prints the cycle summary. The run is recorded as a " +
		"poll_cycle job.",
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	summary, err := a.manager.CheckNow(ctx)
	if err != nil {
		return fmt.Errorf("poll cycle: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "checked=%d changed=%d failed=%d notified=%d duration=%s\n",
		summary.Checked, summary.Changed, summary.Failed, summary.Notified, summary.Duration)
	return nil
}
