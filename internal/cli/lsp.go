package cli

import (
	"github.com/spf13/cobra"

	"github.com/Alligator/jqawk/internal/lsp"
)

func newLSPCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lsp",
		Short: "Run a language server over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return lsp.NewServer().Run(cmd.Context())
		},
	}
}
