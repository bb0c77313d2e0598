package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iliyamo/practice-booking/internal/config"
	"github.com/iliyamo/practice-booking/internal/utils"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("role", "client", "client or admin")
	tokenCmd.Flags().Int("ttl", 0, "Lifetime in minutes (default $ACCESS_TOKEN_TTL_MIN)")
}

var tokenCmd = &cobra.Command{
	Use:   "token SUBJECT_ID",
	Short: "Mint a bearer token for development and operations",
	Long: `Sign an access token with JWT_SECRET. For the client role SUBJECT_ID is
the client id; for admin it only identifies the operator in logs.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, err := parseClientID(args[0])
		if err != nil {
			return err
		}
		var role string
		switch r, _ := cmd.Flags().GetString("role"); strings.ToLower(r) {
		case "client":
			role = utils.RoleClient
		case "admin":
			role = utils.RoleAdmin
		default:
			return fmt.Errorf("unknown role %q", r)
		}
		cfg := config.Load()
		ttl, _ := cmd.Flags().GetInt("ttl")
		if ttl <= 0 {
			ttl = cfg.AccessTTLMin
		}
		tok, err := utils.NewAccessToken(cfg.JWTSecret, subject, role, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", tok.Exp.Format("2006-01-02 15:04 MST"))
		return nil
	},
}
