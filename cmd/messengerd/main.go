// Command messengerd runs one local messenger identity: the friend
// roster, per-friend packet dispatch, file transfers, and the tick loop
// that drives them, behind a small CLI for bootstrapping and save data
// management.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messengerd",
		Short: "A decentralized P2P messenger core daemon",
		Long: `messengerd runs one local identity: it loads or creates a save file,
drives the roster/file-transfer tick loop, and optionally exposes a
metrics endpoint and a read-only status API.`,
	}
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newAddFriendCommand())
	cmd.AddCommand(newExportSavedataCommand())
	cmd.AddCommand(newImportSavedataCommand())
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logrus.WithError(err).Error("messengerd failed")
		os.Exit(1)
	}
}
