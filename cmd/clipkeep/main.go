package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	configPath string
	apiAddr    string
)

var rootCmd = &cobra.Command{
	Use:     "clipkeep",
	Short:   "Clipboard history daemon",
	Long:    `clipkeep records clipboard changes into a bounded, searchable history and serves it over a local API.`,
	Version: version,
	// usage is noise for runtime failures
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file (defaults apply when absent)")
	rootCmd.PersistentFlags().StringVar(&apiAddr, "addr", "", "daemon API address (defaults to http.bind_addr from the config)")

	rootCmd.AddCommand(runCmd, listCmd, pinCmd, rmCmd, clearCmd, copyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
