package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	// Addr is the base URL of a running agent, for the client commands.
	Addr string
	// Token is a submitter bearer token for the agent's operator routes.
	Token string
}

// NewRootCommand creates the root command for the agent binary.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "storeledger",
		Short: "Offline-first compliance submission agent",
		Long: `StoreLedger runs on a store's back-office machine. It accepts compliance
forms from the tills, writes them to head office when it can, and keeps them
queued on disk when it cannot.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Addr, "addr", "http://127.0.0.1:8085", "base URL of the running agent")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", os.Getenv("STORELEDGER_TOKEN"), "bearer token for the agent API (env STORELEDGER_TOKEN)")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewDrainCommand(opts))
	cmd.AddCommand(NewResetCommand(opts))
	cmd.AddCommand(NewHashPINCommand(opts))

	return cmd
}
