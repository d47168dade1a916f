package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/grovetools/invoicedash/cli"
	"github.com/grovetools/invoicedash/errors"
	"github.com/grovetools/invoicedash/logging"
	"github.com/grovetools/invoicedash/pkg/auth"
	"github.com/spf13/cobra"
)

// NewAuthCmd returns the auth command.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Issue identity tokens and check routes",
	}

	cmd.AddCommand(newAuthTokenCmd())
	cmd.AddCommand(newAuthCheckCmd())

	return cmd
}

func newAuthTokenCmd() *cobra.Command {
	var (
		email string
		name  string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Sign an identity token with auth.token_secret",
		Args:  cobra.ExactArgs(1),
		Example: `  export INVOICEDASH_TOKEN=$(invoicedash auth token 42 --email ada@example.com)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Auth.TokenSecret == "" {
				return errors.ConfigInvalid("auth.token_secret is not set")
			}

			token, err := auth.IssueToken([]byte(cfg.Auth.TokenSecret), auth.User{
				ID:    args[0],
				Email: email,
				Name:  name,
			}, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&name, "name", "", "Name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	return cmd
}

func newAuthCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <path>",
		Short: "Show whether navigation to a route is allowed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cli.GetLogger(cmd, "auth")
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}

			decision, err := newGuard(cfg, logger).BeforeEach(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if cli.GetOptions(cmd).JSONOutput {
				return json.NewEncoder(out).Encode(decision)
			}
			pretty := logging.NewPrettyLogger().WithWriter(out)
			pretty.Field("Route", decision.Route.Name)
			if decision.User != nil {
				pretty.Field("User", decision.User.Email)
			}
			if decision.Allow {
				pretty.Success("Allowed")
				return nil
			}
			return decision.Err()
		},
	}
}
