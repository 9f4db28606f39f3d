// Command admin-token mints and inspects bearer tokens for the admin API.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/buildin7days/entitlements/internal/auth"
)

const secretEnv = "ADMIN_JWT_SECRET"

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	var secret string

	cmd := &cobra.Command{
		Use:           "admin-token",
		Short:         "Mint and verify admin API tokens",
		SilenceUsage:  true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if secret == "" {
				secret = os.Getenv(secretEnv)
			}
			if secret == "" {
				return errors.New("no signing secret: pass --secret or set " + secretEnv)
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&secret, "secret", "", "HS256 signing secret (defaults to $"+secretEnv+")")

	cmd.AddCommand(newMintCmd(out, &secret))
	cmd.AddCommand(newVerifyCmd(out, &secret))
	return cmd
}

func newMintCmd(out io.Writer, secret *string) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Print a signed admin token",
		Example: `  admin-token mint --subject ops@buildin7days
  admin-token mint --subject ci --ttl 1h`,
		Args: cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive, got %s", ttl)
			}
			token, err := auth.GenerateToken(subject, *secret, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(out, token)
			return err
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "who the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newVerifyCmd(out io.Writer, secret *string) *cobra.Command {
	return &cobra.Command{
		Use:   "verify TOKEN",
		Short: "Check a token and print its subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			claims, err := auth.ValidateToken(args[0], *secret)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "subject=%s scope=%s id=%s\n", claims.Subject, claims.Scope, claims.TokenID)
			return err
		},
	}
}
