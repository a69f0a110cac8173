package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tabwarden",
	Short: "tabwarden - Social media time tracking and limit enforcement daemon",
	Long: `tabwarden is a local daemon that tracks time spent on social-media sites
in the browser, enforces per-site daily limits, and blocks a site until the
next local midnight once its daily limit is reached. A thin browser extension
forwards tab events over a local websocket and renders the overlay tabwarden
pushes back.`,
	Version: version,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to server command when no subcommand is provided
		return runServer(cmd, args)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/tabwarden/config.yaml", "Path to configuration file")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
