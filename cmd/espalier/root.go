package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "espalier",
	Short: "Espalier is a declarative dispatch engine for live session controllers",
	Long: `Espalier runs long-lived interactive sessions through declarative
controllers: mount actions build the initial state, event handlers advance it,
and a redirect marker short-circuits the pipeline.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("dir", ".", "Directory containing the Espalier project")
	rootCmd.PersistentFlags().String("config", "", "Path to the config file (defaults to <dir>/espalier.yaml)")
}
