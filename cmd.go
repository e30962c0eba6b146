package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/wfunc/beatroom/config"
	"github.com/wfunc/beatroom/logger"
	"github.com/wfunc/beatroom/monitor"
	"github.com/wfunc/beatroom/persistence"
	"github.com/wfunc/beatroom/server"
	"github.com/wfunc/beatroom/timer"
)

const (
	timerResolution = 10 * time.Millisecond
	shutdownTimeout = 10 * time.Second
)

func newCmd() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:           "beatroom",
		Short:         "Room coordinator for multiplayer rhythm sessions.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configDir, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&configDir, "config", "c", ".", "directory holding config.yaml and .env")
	bindFlags(fs)

	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	return cmd
}

// bindFlags declares one flag per config key; LoadConfig applies the ones
// that were set.
func bindFlags(fs *pflag.FlagSet) {
	fs.String(config.FlagName("server.http_address"), ":8080", "websocket and HTTP listen address (env: BEATROOM_SERVER_HTTP_ADDRESS)")
	fs.String(config.FlagName("server.rpc_address"), ":9090", "net/rpc listen address, empty to disable (env: BEATROOM_SERVER_RPC_ADDRESS)")
	fs.String(config.FlagName("server.grpc_address"), ":9091", "gRPC health listen address, empty to disable (env: BEATROOM_SERVER_GRPC_ADDRESS)")
	fs.String(config.FlagName("server.metrics_address"), ":9100", "Prometheus listen address, empty to disable (env: BEATROOM_SERVER_METRICS_ADDRESS)")
	fs.String(config.FlagName("server.public_url"), "http://localhost:8080", "base URL encoded in room QR codes (env: BEATROOM_SERVER_PUBLIC_URL)")
	fs.Duration(config.FlagName("server.heartbeat"), 30*time.Second, "websocket ping interval (env: BEATROOM_SERVER_HEARTBEAT)")
	fs.Int(config.FlagName("server.send_buffer"), 256, "queued frames per connection (env: BEATROOM_SERVER_SEND_BUFFER)")
	fs.Int(config.FlagName("room.countdown_from"), 3, "first countdown value (env: BEATROOM_ROOM_COUNTDOWN_FROM)")
	fs.Duration(config.FlagName("room.countdown_interval"), time.Second, "time between countdown ticks (env: BEATROOM_ROOM_COUNTDOWN_INTERVAL)")
	fs.Int(config.FlagName("room.code_attempts"), 16, "room code candidates tried before giving up (env: BEATROOM_ROOM_CODE_ATTEMPTS)")
	fs.Int(config.FlagName("room.min_ready_players"), 1, "players needed before a countdown can start (env: BEATROOM_ROOM_MIN_READY_PLAYERS)")
	fs.String(config.FlagName("database.driver"), config.DriverNone, "round history store: none, gorm or postgres (env: BEATROOM_DATABASE_DRIVER)")
	fs.String(config.FlagName("log.level"), "info", "log level (env: BEATROOM_LOG_LEVEL)")
	fs.Bool(config.FlagName("log.development"), false, "human-readable console logs (env: BEATROOM_LOG_DEVELOPMENT)")
}

func run(ctx context.Context, cfg *config.Config) error {
	if err := logger.Init(cfg.Log.Level, cfg.Log.Development); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	store, err := persistence.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open round store: %w", err)
	}
	defer store.Close()
	logger.Log.Infof("Round store ready (driver %s)", cfg.Database.Driver)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mon := monitor.NewMonitor("beatroom", reg)
	if cfg.Server.MetricsAddress != "" {
		mon.StartServer(cfg.Server.MetricsAddress)
	}

	timers := timer.NewTimerManager(timerResolution)
	defer timers.Stop()

	gameServer := server.NewGameServer(cfg, store, timers, mon)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errs := make(chan error, 1)
	go func() {
		errs <- gameServer.Start()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	logger.Log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := gameServer.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warnf("game server shutdown: %v", err)
	}
	if err := mon.Shutdown(shutdownCtx); err != nil {
		logger.Log.Warnf("metrics shutdown: %v", err)
	}
	return <-errs
}
