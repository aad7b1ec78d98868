// Package cmd implements the pmon CLI commands.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	apiclient "github.com/donaldgifford/price-monitor/internal/api/client"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "pmon",
		Short: "CLI client for the price monitor",
		Long: "pmon is a command-line client for the price monitor API.\n" +
			"It lets you subscribe to product pages, list and remove\n" +
			"subscriptions, and trigger poll cycles from the terminal.",
		SilenceUsage: true,
	}
)

// Root returns the root cobra command for documentation generation.
func Root() *cobra.Command {
	return rootCmd
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().
		StringVar(&cfgFile, "config", "", "config file (default $HOME/.pmon.yaml)")
	rootCmd.PersistentFlags().
		String("server", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().
		String("owner", "", "subscription owner (chat id or user name)")
	rootCmd.PersistentFlags().
		String("output", "table", "output format (table, json)")

	cobra.CheckErr(viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server")))
	cobra.CheckErr(viper.BindPFlag("owner", rootCmd.PersistentFlags().Lookup("owner")))
	cobra.CheckErr(viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output")))

	rootCmd.AddCommand(subscribeCmd())
	rootCmd.AddCommand(unsubscribeCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(pauseCmd())
	rootCmd.AddCommand(resumeCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(stateCmd())
	rootCmd.AddCommand(jobsCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".pmon")
	}

	viper.SetEnvPrefix("PMON")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newClient() *apiclient.Client {
	return apiclient.New(viper.GetString("server"), apiclient.WithUserAgent("pmon/"+Version))
}

func jsonOutput() bool {
	return viper.GetString("output") == "json"
}

// Version is set at build time with -ldflags.
var Version = "dev"

var errNoOwner = errors.New("--owner is required (or set PMON_OWNER)")

func owner() (string, error) {
	o := viper.GetString("owner")
	if o == "" {
		return "", errNoOwner
	}
	return o, nil
}
