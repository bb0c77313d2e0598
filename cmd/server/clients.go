package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iliyamo/practice-booking/internal/repository"
)

func init() {
	rootCmd.AddCommand(clientsCmd)
	clientsCmd.AddCommand(clientsAddCmd)
}

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage client records",
}

var clientsAddCmd = &cobra.Command{
	Use:   "add EMAIL NAME...",
	Short: "Register a client and print its id",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		email := args[0]
		name := strings.Join(args[1:], " ")
		if !strings.Contains(email, "@") {
			return fmt.Errorf("invalid email %q", email)
		}
		a, err := bootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()
		id, err := a.clients.Create(cmd.Context(), email, name)
		if errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("a client with email %s already exists", email)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d\n", id)
		return nil
	},
}
