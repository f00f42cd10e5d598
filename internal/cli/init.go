package cli

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Alligator/jqawk/internal/config"
	"github.com/Alligator/jqawk/internal/ui"
)

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactively create a jqawk.yaml for the serve/token/history commands",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat("jqawk.yaml"); err == nil {
		var overwrite bool
		if err := survey.AskOne(&survey.Confirm{
			Message: "jqawk.yaml already exists, overwrite it?",
			Default: false,
		}, &overwrite); err != nil {
			return err
		}
		if !overwrite {
			return nil
		}
	}

	var host string
	var portStr string
	var dsn string
	var passphrase string

	if err := survey.AskOne(&survey.Input{
		Message: "Server host:",
		Default: "localhost",
	}, &host); err != nil {
		return err
	}
	if err := survey.AskOne(&survey.Input{
		Message: "Server port:",
		Default: "8080",
	}, &portStr); err != nil {
		return err
	}
	if err := survey.AskOne(&survey.Input{
		Message: "History store DSN:",
		Default: "jqawk_history.db",
	}, &dsn); err != nil {
		return err
	}

	var port int
	fmt.Sscanf(portStr, "%d", &port)

	if err := survey.AskOne(&survey.Password{
		Message: "Passphrase to protect `jqawk token create`:",
	}, &passphrase); err != nil {
		return err
	}

	passphraseHash := ""
	if passphrase != "" {
		hash, err := hashPassphrase(passphrase)
		if err != nil {
			return err
		}
		passphraseHash = hash
	}

	jwtSecret, err := generateSecret()
	if err != nil {
		return err
	}

	cfg := config.Config{
		Server:  config.ServerConfig{Host: host, Port: port},
		History: config.HistoryConfig{DSN: dsn},
		Auth:    config.AuthConfig{JWTSecret: jwtSecret, PassphraseHash: passphraseHash},
		Cache:   config.CacheConfig{TTLSeconds: 300},
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile("jqawk.yaml", raw, 0o644); err != nil {
		return err
	}

	ui.Success(cmd.OutOrStdout(), "wrote jqawk.yaml")
	return nil
}
