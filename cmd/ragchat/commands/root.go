// Package commands defines all Cobra CLI commands for the ragchat binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/ragchat-go/internal/audit"
	"github.com/54b3r/ragchat-go/internal/config"
	"github.com/54b3r/ragchat-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ragchat",
		Short: "Retrieval-augmented chat over your documentation",
		Long: `ragchat answers questions about a documentation corpus stored in a
vector index (Pinecone, Qdrant or Milvus). Each question is embedded, the
closest chunks are retrieved, and a chat model streams an answer grounded in
them, citing its sources.

Configuration comes from environment variables, optionally seeded from a YAML
file (~/.ragchat/config.yaml). Environment variables always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			audit.LogCommandStart(log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.ragchat/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewVersionCmd(),
	)
	return root
}
