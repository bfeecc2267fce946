package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"concesionario/internal/amqp"
	"concesionario/internal/backend"
	"concesionario/internal/cache"
	"concesionario/internal/cli"
	"concesionario/internal/config"
	"concesionario/internal/dashboard"
	"concesionario/internal/financing"
	apphttp "concesionario/internal/http"
	"concesionario/internal/loader"
	applog "concesionario/internal/log"
	"concesionario/internal/remote"
	"concesionario/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
	lruMaxEntries   = 500
	redisKeyPrefix  = "concesionario:sim:"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)

	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		cli.Fatal(logger, "Configuration validation failed", err)
	}

	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		cli.Fatal(logger, "Server stopped with error", err)
	}
	logger.Info("Server exited")
}

func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) error {
	// Packages tag their own component on the untagged default logger.
	base := slog.Default()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("backend config: %w", err)
	}
	store, err := backend.NewFactory(base).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	if store.Cleanup != nil {
		defer func() {
			if err := store.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", applog.FieldError, err)
			}
		}()
	}

	// Only the SQLite backend is shared with the worker, so only it gets
	// sync messages.
	var publisher services.Publisher
	if backendCfg.Type == backend.SQLiteBackend {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, quotes will be exported by the worker sweep",
				applog.FieldError, err)
		} else {
			defer client.Close()
			publisher = client
		}
	}

	results, closeCache := newResultsCache(ctx, cfg, logger)
	defer closeCache()

	msgs, err := dashboard.LoadMessages(cfg.DashboardMessagesFile)
	if err != nil {
		return err
	}
	upstream, err := remote.NewClient(cfg.UpstreamOrigin, cfg.UpstreamTimeout, remote.WithLogger(base))
	if err != nil {
		return err
	}
	// The upstream is usually this same process, so panels are loaded once
	// the listener is up.
	boardOpts := []dashboard.BoardOption{dashboard.WithBoardLogger(base), dashboard.Lazy()}
	if cfg.DashboardLoadPolicy == "discard-stale" {
		boardOpts = append(boardOpts, dashboard.WithLoadPolicy(loader.DiscardStale))
	}
	board := dashboard.NewBoard(ctx, dashboard.RemoteSources(upstream), msgs, boardOpts...)
	defer board.Close()

	quotes := services.NewQuoteService(store.Backend, publisher, results, logger)

	var health apphttp.Pinger
	if p, ok := store.Backend.(backend.Pinger); ok {
		health = p
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Board:   board,
		Quotes:  quotes,
		Reports: store.Backend,
		Health:  health,
		Logger:  logger,

		RequestsPerMinute: cfg.RateLimitPerMinute,
	})
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting concesionario server",
			"addr", ln.Addr().String(),
			"backend", backendCfg.Type.String(),
			"upstream", upstream.Origin())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		board.RefreshAll(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// newResultsCache prefers Redis when REDIS_ADDR is set and reachable, and
// falls back to an in-process LRU otherwise.
func newResultsCache(ctx context.Context, cfg *config.Config, logger *applog.Logger) (cache.Cache[financing.SimulatorResults], func()) {
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr)
		rc := cache.NewRedisCache[financing.SimulatorResults](client, redisKeyPrefix, cfg.SimulationCacheTTL)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rc.Ping(pingCtx)
		cancel()
		if err == nil {
			logger.Info("Simulation cache backed by Redis", "addr", cfg.RedisAddr)
			return rc, func() { _ = client.Close() }
		}
		logger.Warn("Redis unavailable, using in-process cache", applog.FieldError, err)
		_ = client.Close()
	}

	lru := cache.NewLRUCache[financing.SimulatorResults](lruMaxEntries, cfg.SimulationCacheTTL)
	mgr := cache.NewManager(slog.Default())
	mgr.Register(lru)
	mgr.StartCleanup(time.Minute)
	return lru, mgr.Stop
}
