package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/version"
)

// NewVersionCmd constructs the `ragchat version` subcommand.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the ragchat version, git commit, and build date",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
