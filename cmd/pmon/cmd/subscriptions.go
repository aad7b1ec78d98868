package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	apiclient "github.com/donaldgifford/price-monitor/internal/api/client"
	domain "github.com/donaldgifford/price-monitor/pkg/types"
)

func subscribeCmd() *cobra.Command {
	var (
		target string
		site   string
	)

	cmd := &cobra.Command{
		Use:   "subscribe <url>",
		Short: "Start tracking a product page",
		Long: "Subscribe the owner to a product URL. The site is detected from the\n" +
			"URL host unless --site is given. With --target, a notification is sent\n" +
			"when the price falls to or below the target.",
		Example: `  pmon subscribe --owner 12345 https://www.ozon.ru/product/123456/
  pmon subscribe --owner 12345 --target 499.90 https://www.wildberries.ru/catalog/1/detail.aspx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := owner()
			if err != nil {
				return err
			}
			if target != "" {
				if _, err := domain.ParsePrice(target); err != nil {
					return fmt.Errorf("--target: %w", err)
				}
			}

			c := newClient()
			sub, err := c.Subscribe(cmd.Context(), &apiclient.SubscribeParams{
				Owner:       o,
				URL:         args[0],
				Site:        site,
				TargetPrice: target,
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput() {
				return outputJSON(out, sub)
			}
			return printSubscriptionDetail(out, sub)
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "target price in major units, e.g. 499.90")
	cmd.Flags().StringVar(&site, "site", "", "site override (wildberries, ozon, aliexpress, generic)")

	return cmd
}

func unsubscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe <index|url>",
		Short: "Stop tracking a product page",
		Long: "Remove a subscription by its 1-based position in 'pmon list' or by\n" +
			"its exact URL.",
		Example: `  pmon unsubscribe --owner 12345 2
  pmon unsubscribe --owner 12345 https://www.ozon.ru/product/123456/`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := owner()
			if err != nil {
				return err
			}
			c := newClient()
			sub, err := c.Unsubscribe(cmd.Context(), o, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput() {
				return outputJSON(out, sub)
			}
			fmt.Fprintf(out, "Unsubscribed from %s\n", sub.URL)
			return nil
		},
	}
}

func listCmd() *cobra.Command {
	var (
		all    bool
		site   string
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List subscriptions",
		Long: "List the owner's subscriptions in creation order. With --all, list\n" +
			"subscriptions across every owner.",
		Example: `  pmon list --owner 12345
  pmon list --all --site ozon --status active`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := newClient()
			out := cmd.OutOrStdout()

			var subs []domain.Subscription
			if all {
				page, err := c.ListSubscriptions(cmd.Context(), &apiclient.ListSubscriptionsParams{
					Site:   site,
					Status: status,
					Limit:  limit,
				})
				if err != nil {
					return err
				}
				if jsonOutput() {
					return outputJSON(out, page)
				}
				subs = page.Subscriptions
			} else {
				o, err := owner()
				if err != nil {
					return err
				}
				subs, err = c.ListOwner(cmd.Context(), o)
				if err != nil {
					return err
				}
				if jsonOutput() {
					return outputJSON(out, subs)
				}
			}

			if len(subs) == 0 {
				fmt.Fprintln(out, "No subscriptions found.")
				return nil
			}
			return printSubscriptionTable(out, subs)
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "list subscriptions of every owner")
	cmd.Flags().StringVar(&site, "site", "", "filter by site (with --all)")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (with --all)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows (with --all)")

	return cmd
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <subscription_id>",
		Short: "Show recorded change events",
		Args:  cobra.ExactArgs(1),
		Example: `  pmon history 6f1c2a9e-1d2b-4c55-9a57-0d4a8b0f3e11
  pmon history 6f1c2a9e-1d2b-4c55-9a57-0d4a8b0f3e11 --limit 5 --output json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			events, err := c.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput() {
				return outputJSON(out, events)
			}
			if len(events) == 0 {
				fmt.Fprintln(out, "No change events recorded.")
				return nil
			}
			return printHistoryTable(out, events)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum events to show")

	return cmd
}

func pauseCmd() *cobra.Command {
	return statusCmd("pause", "Stop polling a subscription", domain.StatusPaused)
}

func resumeCmd() *cobra.Command {
	return statusCmd("resume", "Resume polling a subscription", domain.StatusActive)
}

func statusCmd(use, short string, status domain.Status) *cobra.Command {
	return &cobra.Command{
		Use:     use + " <subscription_id>",
		Short:   short,
		Args:    cobra.ExactArgs(1),
		Example: "  pmon " + use + " 6f1c2a9e-1d2b-4c55-9a57-0d4a8b0f3e11",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			sub, err := c.SetStatus(cmd.Context(), args[0], status)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOutput() {
				return outputJSON(out, sub)
			}
			fmt.Fprintf(out, "Subscription %s is now %s\n", sub.ID, sub.Status)
			return nil
		},
	}
}
