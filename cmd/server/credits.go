package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(creditsCmd)
	creditsCmd.AddCommand(creditsGrantCmd)
	creditsCmd.AddCommand(creditsBalanceCmd)
	creditsCmd.AddCommand(creditsVerifyCmd)

	creditsGrantCmd.Flags().StringP("reason", "r", "credit pack", "Ledger note for the grant")
}

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Inspect and adjust session credits",
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant CLIENT_ID N",
	Short: "Add N session credits to a client",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID, err := parseClientID(args[0])
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("credits must be a number, got %q", args[1])
		}
		reason, _ := cmd.Flags().GetString("reason")

		a, err := bootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()
		cb, err := a.engine.GrantCredits(cmd.Context(), clientID, n, reason)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "client %d: balance %d\n", cb.ClientID, cb.Balance)
		return nil
	},
}

var creditsBalanceCmd = &cobra.Command{
	Use:   "balance CLIENT_ID",
	Short: "Print a client's balance and ledger as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID, err := parseClientID(args[0])
		if err != nil {
			return err
		}
		a, err := bootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()
		cb, err := a.engine.Balance(cmd.Context(), clientID)
		if err != nil {
			return err
		}
		txs, err := a.engine.Transactions(cmd.Context(), clientID)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"balance": cb, "transactions": txs})
	},
}

var creditsVerifyCmd = &cobra.Command{
	Use:   "verify [CLIENT_ID]",
	Short: "Check that balances equal the sum of their ledger",
	Long: `Recompute the ledger sum for one client, or for every client that ever
held credits, and compare it with the stored balance. Exits non-zero when
any client is inconsistent.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		var bad int
		report := func(clientID uint64, balance, sum int, ok bool) {
			status := "ok"
			if !ok {
				status = "MISMATCH"
				bad++
			}
			fmt.Fprintf(cmd.OutOrStdout(), "client %d: balance %d, ledger %d  %s\n", clientID, balance, sum, status)
		}
		if len(args) == 1 {
			clientID, err := parseClientID(args[0])
			if err != nil {
				return err
			}
			c, err := a.engine.Verify(ctx, clientID)
			if err != nil {
				return err
			}
			report(c.ClientID, c.Balance, c.LedgerSum, c.OK)
		} else {
			checks, err := a.engine.VerifyAll(ctx)
			if err != nil {
				return err
			}
			for _, c := range checks {
				report(c.ClientID, c.Balance, c.LedgerSum, c.OK)
			}
		}
		if bad > 0 {
			return fmt.Errorf("%d client(s) with inconsistent credit ledger", bad)
		}
		return nil
	},
}

func parseClientID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid client id %q", s)
	}
	return id, nil
}
