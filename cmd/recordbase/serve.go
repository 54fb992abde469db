package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/artpar/recordbase/bootstrap"
	"github.com/artpar/recordbase/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := bootstrap.NewFromFile(cfgFile)
		if err != nil {
			return err
		}
		return app.Run()
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("configuration invalid: %w", err)
		}
		fmt.Println("Configuration valid")
		fmt.Printf("  Mode: %s\n", cfg.Mode)
		fmt.Printf("  Storage driver: %s\n", cfg.Storage.Driver)
		fmt.Printf("  Listen: %s:%d\n", cfg.Server.Host, cfg.Server.Port)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
}
