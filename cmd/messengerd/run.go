package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nyxmesh/messenger/config"
	"github.com/nyxmesh/messenger/messenger"
	"github.com/nyxmesh/messenger/metrics"
	"github.com/nyxmesh/messenger/persist"
	"github.com/nyxmesh/messenger/statusapi"
	"github.com/nyxmesh/messenger/transport"
	"github.com/nyxmesh/messenger/transport/memory"
)

func newRunCommand() *cobra.Command {
	var configPath string
	var simulate bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the messenger daemon until interrupted",
		Long: `Starts one local identity, loads its save data if present, and drives
the tick loop until interrupted. The save file is rewritten on a clean
shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(configPath, simulate)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "messengerd.toml", "path to the daemon configuration file")
	cmd.Flags().BoolVar(&simulate, "simulate", false, "use the in-process fake transport instead of a real network transport")
	return cmd
}

func runDaemon(configPath string, simulate bool) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}
	if !simulate {
		return errors.New("messengerd: no real network transport is wired yet; pass --simulate")
	}

	identityPath := filepath.Join(filepath.Dir(cfg.Runtime.SavePath), "identity.key")
	selfKey, err := loadOrCreateKey(identityPath)
	if err != nil {
		return err
	}

	var t transport.Transport = memory.New(256)
	m := metrics.New()
	msn := messenger.New(selfKey, t, m)
	msn.Nospam = cfg.Nospam()

	store, err := persist.Open(cfg.Runtime.SavePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := loadSaveDataInto(store, msn, cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.ListenAddr != "" {
		startMetricsServer(ctx, cfg.Metrics.ListenAddr, m)
	}
	if cfg.StatusAPI.ListenAddr != "" {
		startStatusAPIServer(ctx, cfg.StatusAPI.ListenAddr, msn)
	}

	logrus.WithFields(logrus.Fields{"save": cfg.Runtime.SavePath, "tick": cfg.TickInterval()}).Info("messengerd starting")

	ticker := time.NewTicker(cfg.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logrus.Info("messengerd shutting down")
			return saveNow(store, msn)
		case now := <-ticker.C:
			msn.Tick(now)
		}
	}
}

func loadSaveDataInto(store *persist.Store, msn *messenger.Messenger, cfg *config.Config) error {
	blob, err := store.Load()
	if errors.Is(err, persist.ErrNoSuchKey) {
		if err := msn.SetName(cfg.Identity.Nickname); err != nil {
			return err
		}
		return msn.SetStatusMessage(cfg.Identity.StatusMessage)
	}
	if err != nil {
		return err
	}
	self, err := persist.Deserialize(blob, msn.Roster)
	if err != nil {
		return fmt.Errorf("messengerd: loading save data: %w", err)
	}
	if err := msn.SetName(self.Name); err != nil {
		return err
	}
	if err := msn.SetStatusMessage(self.StatusMessage); err != nil {
		return err
	}
	msn.SetUserStatus(self.UserStatus)
	return nil
}

func saveNow(store *persist.Store, msn *messenger.Messenger) error {
	self := msn.Snapshot()
	blob, err := persist.Serialize(msn.Roster, persist.SelfState{
		Name:          self.Name,
		StatusMessage: self.StatusMessage,
		UserStatus:    self.UserStatus,
	})
	if err != nil {
		return fmt.Errorf("messengerd: serializing save data: %w", err)
	}
	return store.Save(blob)
}

func startMetricsServer(ctx context.Context, addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
}

func startStatusAPIServer(ctx context.Context, addr string, msn *messenger.Messenger) {
	srv := &http.Server{Addr: addr, Handler: statusapi.NewRouter(msn)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Error("status API server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		_ = srv.Close()
	}()
}
