package main

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nyxmesh/messenger/config"
	"github.com/nyxmesh/messenger/friend"
	"github.com/nyxmesh/messenger/messenger"
	"github.com/nyxmesh/messenger/metrics"
	"github.com/nyxmesh/messenger/persist"
	"github.com/nyxmesh/messenger/transport/memory"
)

func newAddFriendCommand() *cobra.Command {
	var configPath, message string

	cmd := &cobra.Command{
		Use:   "add-friend <address-hex>",
		Short: "Queue a friend request for the given 38-byte hex address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return addFriend(configPath, args[0], message)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "messengerd.toml", "path to the daemon configuration file")
	cmd.Flags().StringVarP(&message, "message", "m", "let's chat", "friend request message")
	return cmd
}

func addFriend(configPath, addressHex, message string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	raw, err := hex.DecodeString(addressHex)
	if err != nil {
		return fmt.Errorf("messengerd: decoding address: %w", err)
	}
	addr, err := friend.ParseAddress(raw)
	if err != nil {
		return fmt.Errorf("messengerd: parsing address: %w", err)
	}

	identityPath := filepath.Join(filepath.Dir(cfg.Runtime.SavePath), "identity.key")
	selfKey, err := loadOrCreateKey(identityPath)
	if err != nil {
		return err
	}

	msn := messenger.New(selfKey, memory.New(256), metrics.New())

	store, err := persist.Open(cfg.Runtime.SavePath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := loadSaveDataInto(store, msn, cfg); err != nil {
		return err
	}

	n, err := msn.AddFriend(addr, []byte(message))
	if err != nil && !friend.IsSemiSuccess(err) {
		return fmt.Errorf("messengerd: adding friend: %w", err)
	}

	msn.Tick(time.Now())

	if err := saveNow(store, msn); err != nil {
		return err
	}
	fmt.Printf("friend %d queued\n", n)
	return nil
}
