package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/artpar/recordbase/web"
)

var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("recordbase %s (commit: %s, built: %s, %s)\n", version, commit, buildDate, runtime.Version())
	},
}

func init() {
	web.Version = version
	rootCmd.AddCommand(versionCmd)
}
