package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	apiclient "github.com/donaldgifford/price-monitor/internal/api/client"
)

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Run a poll cycle now",
		Long: "Ask the server to check every active subscription immediately and\n" +
			"print the cycle summary. Fails if a cycle is already running.",
		Example: `  pmon check
  pmon check --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := newClient()
			summary, err := c.CheckNow(cmd.Context())
			if apiclient.IsStatus(err, http.StatusConflict) {
				return fmt.Errorf("a poll cycle is already running, try again later")
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput() {
				return outputJSON(out, summary)
			}
			return printCycleSummary(out, summary)
		},
	}
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Show the poll cycle phase",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := newClient()
			st, err := c.GetSystemState(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput() {
				return outputJSON(out, st)
			}
			return printSystemState(out, st)
		},
	}
}
