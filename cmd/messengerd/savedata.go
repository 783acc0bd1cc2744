package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nyxmesh/messenger/config"
	"github.com/nyxmesh/messenger/friend"
	"github.com/nyxmesh/messenger/persist"
	"github.com/nyxmesh/messenger/transport/memory"
)

func newExportSavedataCommand() *cobra.Command {
	var configPath, outPath string

	cmd := &cobra.Command{
		Use:   "export-savedata",
		Short: "Write the current save blob to a file as hex",
		RunE: func(cmd *cobra.Command, args []string) error {
			return exportSavedata(configPath, outPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "messengerd.toml", "path to the daemon configuration file")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func exportSavedata(configPath, outPath string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	store, err := persist.Open(cfg.Runtime.SavePath)
	if err != nil {
		return err
	}
	defer store.Close()

	blob, err := store.Load()
	if err != nil {
		return fmt.Errorf("messengerd: loading save data: %w", err)
	}
	encoded := hex.EncodeToString(blob)
	if outPath == "" {
		fmt.Println(encoded)
		return nil
	}
	return os.WriteFile(outPath, []byte(encoded), 0o600)
}

func newImportSavedataCommand() *cobra.Command {
	var configPath, inPath string

	cmd := &cobra.Command{
		Use:   "import-savedata",
		Short: "Validate and load a hex-encoded save blob into the save file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return importSavedata(configPath, inPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "messengerd.toml", "path to the daemon configuration file")
	cmd.Flags().StringVarP(&inPath, "in", "i", "", "input file (required)")
	cmd.MarkFlagRequired("in")
	return cmd
}

func importSavedata(configPath, inPath string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	encoded, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("messengerd: reading %s: %w", inPath, err)
	}
	blob, err := hex.DecodeString(string(bytes.TrimSpace(encoded)))
	if err != nil {
		return fmt.Errorf("messengerd: decoding hex: %w", err)
	}

	scratch := friend.NewRoster([32]byte{}, memory.New(8))
	if _, err := persist.Deserialize(blob, scratch); err != nil {
		return fmt.Errorf("messengerd: save blob failed validation: %w", err)
	}

	store, err := persist.Open(cfg.Runtime.SavePath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Save(blob); err != nil {
		return err
	}
	fmt.Printf("imported %d friends\n", scratch.NumFriends())
	return nil
}

