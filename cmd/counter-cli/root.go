package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// NewRootCmd builds the command tree. Every call returns an independent tree
// with its own configuration.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "counter-cli",
		Short: "Counter program command line tool",
		Long: `Counter program command line tool.
Manages keys, funds accounts and sends counter transactions to a local ledger.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.bindFlagsLoadViper,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	a.addPersistentFlags(rootCmd)

	rootCmd.AddCommand(
		newKeysCmd(a),
		newAirdropCmd(a),
		newBalanceCmd(a),
		newReceiptCmd(a),
		newInitializeCmd(a),
		newIncrementCmd(a),
		newDecrementCmd(a),
		newSetCmd(a),
		newCloseCmd(a),
		newShowCmd(a),
		newListCmd(a),
		newTransferCmd(a),
		newActionsCmd(a),
	)
	return rootCmd
}
