package cli

import (
	"fmt"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/Alligator/jqawk/internal/config"
	"github.com/Alligator/jqawk/internal/server"
)

func newTokenCommand() *cobra.Command {
	var subject string
	var ttl time.Duration

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Mint a bearer token for the HTTP execution service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenCreate(cmd, subject, ttl)
		},
	}
	createCmd.Flags().StringVar(&subject, "subject", "cli", "subject claim to embed in the token")
	createCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage bearer tokens for the HTTP execution service",
	}
	cmd.AddCommand(createCmd)
	return cmd
}

func runTokenCreate(cmd *cobra.Command, subject string, ttl time.Duration) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not configured, run `jqawk init` first")
	}

	if cfg.Auth.PassphraseHash != "" {
		var passphrase string
		if err := survey.AskOne(&survey.Password{
			Message: "Passphrase:",
		}, &passphrase); err != nil {
			return err
		}
		if !checkPassphrase(passphrase, cfg.Auth.PassphraseHash) {
			return fmt.Errorf("incorrect passphrase")
		}
	}

	auth := server.NewAuthService(cfg.Auth.JWTSecret, ttl)
	token, err := auth.IssueToken(subject)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
