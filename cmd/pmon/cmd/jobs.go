package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	apiclient "github.com/donaldgifford/price-monitor/internal/api/client"
)

func jobsCmd() *cobra.Command {
	jobsRoot := &cobra.Command{
		Use:   "jobs",
		Short: "View scheduler job history",
		Long: "View the execution history of scheduled jobs (poll_cycle).\n" +
			"Each job records status, duration, and any errors.",
	}

	jobsRoot.AddCommand(
		jobsListCmd(),
		jobsHistoryCmd(),
	)

	return jobsRoot
}

func jobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List latest run per job",
		Example: `  pmon jobs list
  pmon jobs list --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, err := newClient().ListJobs(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput() {
				return outputJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No job runs found.")
				return nil
			}
			return printJobRunsTable(out, runs)
		},
	}
}

func jobsHistoryCmd() *cobra.Command {
	var q apiclient.JobHistoryQuery

	cmd := &cobra.Command{
		Use:   "history <job_name>",
		Short: "Show run history for a job",
		Args:  cobra.ExactArgs(1),
		Example: `  pmon jobs history poll_cycle
  pmon jobs history poll_cycle --status failed --limit 50
  pmon jobs history poll_cycle --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := newClient().GetJobHistory(cmd.Context(), args[0], q)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput() {
				return outputJSON(out, runs)
			}
			if len(runs) == 0 {
				fmt.Fprintf(out, "No runs found for job %q.\n", args[0])
				return nil
			}
			return printJobRunsTable(out, runs)
		},
	}

	cmd.Flags().IntVar(&q.Limit, "limit", 0, "number of recent runs to scan (server default 20)")
	cmd.Flags().StringVar(&q.Status, "status", "", "only show runs with this status (running, succeeded, failed, skipped)")
	return cmd
}
