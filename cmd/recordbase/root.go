package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "recordbase",
	Short: "Schema-driven record backend with access control and attachments",
	Long: `Recordbase is a self-hosted backend for schema-validated records.

It serves validated CRUD over REST with group-based access control,
session tokens, file attachments and pluggable storage.

Quick start:
  recordbase serve            # Start the server
  recordbase useradd <name>   # Create an account from the CLI
  recordbase validate         # Validate configuration`,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "recordbase.yaml", "config file path")
}
