package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prudhvinik1/storeledger/internal/api"
	"github.com/prudhvinik1/storeledger/internal/config"
	"github.com/prudhvinik1/storeledger/internal/connectivity"
	"github.com/prudhvinik1/storeledger/internal/database"
	"github.com/prudhvinik1/storeledger/internal/forms"
	"github.com/prudhvinik1/storeledger/internal/localstore"
	"github.com/prudhvinik1/storeledger/internal/logging"
	"github.com/prudhvinik1/storeledger/internal/notify"
	"github.com/prudhvinik1/storeledger/internal/refdata"
	"github.com/prudhvinik1/storeledger/internal/repositories"
	"github.com/prudhvinik1/storeledger/internal/services"
	"github.com/prudhvinik1/storeledger/internal/syncengine"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	notifyTimeout   = 5 * time.Second
)

func NewServeCommand(_ *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the agent",
		Long: `Run the agent: the local HTTP API, the connectivity watcher, the sync
engine and, when REDIS_URL and STORE_ID are set, the heartbeat.

Configuration is read from the environment (and .env), optionally overlaid by
the YAML file named in CONFIG_FILE.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			log := logging.New(cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runAgent(ctx, cfg, log)
		},
	}
}

func runAgent(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	store, err := localstore.Open(ctx, cfg.LocalDBPath)
	if err != nil {
		return fmt.Errorf("failed to open local store: %w", err)
	}
	defer store.Close()

	pool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.RemoteTimeout, log)
	if err != nil {
		return err
	}
	defer pool.Close()
	remote := repositories.NewPostgresSubmissionRepository(pool, cfg.RemoteCollections())

	monitor := connectivity.New(false)
	watcher := connectivity.NewWatcher(monitor, remote, cfg.PingInterval, cfg.RemoteTimeout, log)

	engine, err := syncengine.New(ctx, store, remote, monitor, log, syncengine.Options{RemoteTimeout: cfg.RemoteTimeout})
	if err != nil {
		return fmt.Errorf("failed to start sync engine: %w", err)
	}
	log.WithField("pending", engine.PendingCount()).Info("Sync engine ready")

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = database.NewRedisClient(ctx, cfg.RedisURL, log)
		if err != nil {
			if cfg.NotifyBackend == "redis" {
				return err
			}
			log.WithError(err).Warn("Redis unavailable, heartbeat disabled")
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	dispatcher, closeDispatcher, err := newDispatcher(cfg, redisClient, log)
	if err != nil {
		return err
	}
	defer closeDispatcher()
	notifier := notify.NewAsync(dispatcher, notifyTimeout, log)
	defer notifier.Wait()

	server := api.NewServer(api.Deps{
		Engine:               engine,
		Connectivity:         monitor,
		Forms:                forms.New(engine, notifier, log),
		Reference:            refdata.NewLoader(remote, store, monitor, cfg.RemoteTimeout, log),
		Auth:                 services.NewAuthService(cfg.JWTSecret),
		ResetPINHash:         cfg.ResetPINHash,
		ReferenceCollections: cfg.ReferenceCollections,
		Log:                  log,
	})
	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.ListenAddr, cfg.ServerPort),
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", httpServer.Addr).Info("Starting API server")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error { return watcher.Run(gctx) })
	g.Go(func() error { return engine.Run(gctx) })

	if redisClient != nil && cfg.StoreID != "" {
		heartbeat := services.NewHeartbeatService(
			repositories.NewRedisAgentStatusRepository(redisClient),
			engine, cfg.StoreID, cfg.AgentID, cfg.HeartbeatInterval, log,
		)
		g.Go(func() error { return heartbeat.Run(gctx) })
	}

	err = g.Wait()
	log.WithField("pending", engine.PendingCount()).Info("Agent stopped")
	return err
}

// newDispatcher picks the notification backend named in the config.
func newDispatcher(cfg *config.Config, redisClient *redis.Client, log logrus.FieldLogger) (notify.Dispatcher, func(), error) {
	switch cfg.NotifyBackend {
	case "redis":
		return notify.NewRedisDispatcher(redisClient, cfg.NotifyStream), func() {}, nil
	case "nats":
		nc, err := database.NewNatsConn(cfg.NatsURL, "storeledger-"+cfg.AgentID, log)
		if err != nil {
			return nil, nil, err
		}
		return notify.NewNatsDispatcher(nc, cfg.NotifyStream), func() { nc.Drain() }, nil
	default:
		return notify.Noop{}, func() {}, nil
	}
}
