package main

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/artpar/recordbase/bootstrap"
	"github.com/artpar/recordbase/config"
)

var useraddGroups []string

var useraddCmd = &cobra.Command{
	Use:   "useradd <username>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithFallback(cfgFile)
		if err != nil {
			return err
		}
		// The CLI talks to the store directly; no server needed.
		app, err := bootstrap.New(cfg)
		if err != nil {
			return err
		}
		defer app.Shutdown()

		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}

		u, err := app.Users.Create(cmd.Context(), args[0], string(password), useraddGroups)
		if err != nil {
			return err
		}
		fmt.Printf("Created user %s (groups: %s)\n", u.Username, strings.Join(u.Groups, ", "))
		return nil
	},
}

func init() {
	useraddCmd.Flags().StringSliceVar(&useraddGroups, "groups", []string{"users"}, "group memberships")
	rootCmd.AddCommand(useraddCmd)
}
