package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/EmeraldIsleCasino/wagercore/internal/api"
	"github.com/EmeraldIsleCasino/wagercore/internal/catalog"
	"github.com/EmeraldIsleCasino/wagercore/internal/events"
	"github.com/EmeraldIsleCasino/wagercore/internal/infra/dbutil"
	"github.com/EmeraldIsleCasino/wagercore/internal/infra/logging"
	"github.com/EmeraldIsleCasino/wagercore/internal/infra/migrations"
	"github.com/EmeraldIsleCasino/wagercore/internal/reward"
	"github.com/EmeraldIsleCasino/wagercore/internal/rng"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/instant"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/jackpot"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/ledger"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/match"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/progressive"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/session"
	"github.com/EmeraldIsleCasino/wagercore/internal/services/sweeper"
	"github.com/EmeraldIsleCasino/wagercore/pkg/envconf"
	"github.com/EmeraldIsleCasino/wagercore/pkg/shutdownqueue"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	// A missing .env is fine; the real environment always wins.
	_ = godotenv.Load()

	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	log := logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	db, dialect, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	shutdownqueue.Add("close database", func(context.Context) error {
		return db.Close()
	})

	dispatcher, err := newDispatcher(ctx, cfg, log)
	if err != nil {
		return err
	}

	shutdownqueue.Add("drain events", func(c context.Context) error {
		slog.Info("Draining events", "dropped", dispatcher.Dropped())
		return dispatcher.Close(c)
	})

	cat, err := loadCatalog(cfg.Engine.CatalogPath)
	if err != nil {
		return err
	}

	src := rng.Default()
	if cfg.Engine.RNGSeed != 0 {
		slog.Warn("RNG seeded; outcomes are reproducible", "seed", cfg.Engine.RNGSeed)
		src = rng.NewSeeded(cfg.Engine.RNGSeed)
	}

	rewards, err := reward.NewEngine(src, cat.Tables(), cat.Drops)
	if err != nil {
		return fmt.Errorf("reward engine: %w", err)
	}

	// --- Services ---
	led := ledger.New(db, dialect)
	sessions := session.NewStore(led, dispatcher, logging.Component("session"))
	svc := api.Services{
		Ledger:      led,
		Progressive: progressive.New(sessions, led, rewards, cat, dispatcher, logging.Component("progressive")),
		Matches:     match.New(led, rewards, cat, dispatcher, logging.Component("match")),
		Jackpots:    jackpot.New(led, rewards, cat, dispatcher, logging.Component("jackpot")),
		Instant:     instant.New(led, rewards, cat, dispatcher, logging.Component("instant")),
	}

	sweep := sweeper.New(sessions, svc.Matches, cfg.Engine.StaleStakeTTL, cfg.Engine.SweepInterval, logging.Component("sweeper"), svc.Instant)

	// --- Background loops ---
	bgCtx, bgCancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup

	wg.Add(2)

	go func() {
		defer wg.Done()
		svc.Progressive.RunTicker(bgCtx)
	}()

	go func() {
		defer wg.Done()
		sweep.Run(bgCtx)
	}()

	shutdownqueue.Add("stop background loops", func(context.Context) error {
		bgCancel()
		wg.Wait()

		return nil
	})

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, svc, logging.Component("api"))

	// Register HTTP server graceful shutdown
	shutdownqueue.Add("shut down server", srv.Shutdown)

	// Run server
	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port, "store", dialect, "stale_stake_sweep", sweep.Enabled())

	// --- Wait until either context cancels or server errors out ---
	select {
	case <-ctx.Done():
		// graceful path; deferred shutdownqueue.Shutdown will run
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}

// openStore connects to the configured driver. SQLite is migrated in place;
// Postgres is expected to be migrated by cmd/migrator.
func openStore(ctx context.Context, cfg *apiConfig) (*sql.DB, dbutil.Dialect, error) {
	switch dbutil.Dialect(cfg.Store.Driver) {
	case dbutil.Postgres:
		db, err := dbutil.OpenPostgres(ctx, cfg.Postgres)
		if err != nil {
			return nil, "", fmt.Errorf("open postgres: %w", err)
		}

		return db, dbutil.Postgres, nil

	case dbutil.SQLite:
		db, err := dbutil.OpenSQLite(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, "", fmt.Errorf("open sqlite: %w", err)
		}

		err = migrations.Apply(db, dbutil.SQLite)
		if err != nil {
			_ = db.Close()
			return nil, "", fmt.Errorf("migrate sqlite: %w", err)
		}

		return db, dbutil.SQLite, nil

	default:
		return nil, "", fmt.Errorf("unsupported STORE_DRIVER %q", cfg.Store.Driver)
	}
}

// newDispatcher always logs events and also fans them out to Redis when an
// address is configured.
func newDispatcher(ctx context.Context, cfg *apiConfig, log *slog.Logger) (*events.Dispatcher, error) {
	sinks := []events.Sink{events.LogSink{Log: logging.Component("events")}}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})

		err := client.Ping(ctx).Err()
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
		}

		// Registered before the dispatcher's own task so it closes after the
		// queue is drained.
		shutdownqueue.Add("close redis", func(context.Context) error {
			return client.Close()
		})

		sinks = append(sinks, events.NewRedisSink(client, cfg.Redis.Channel))
	}

	return events.NewDispatcher(log, cfg.Engine.EventBuffer, sinks...), nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		cat, err := catalog.Default()
		if err != nil {
			return nil, fmt.Errorf("default catalog: %w", err)
		}

		return cat, nil
	}

	cat, err := catalog.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}

	return cat, nil
}
