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
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"microbonds/internal/ledger/sandbox"
	"microbonds/internal/platform/config"
	"microbonds/internal/platform/httpserver"
	"microbonds/internal/platform/kafka"
	"microbonds/internal/platform/logger"
	"microbonds/internal/platform/postgres"
	redisclient "microbonds/internal/platform/redis"
	"microbonds/pkg/domain"
	"microbonds/pkg/platform/audit/worker"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	ledger := sandbox.New(
		sandbox.WithLogger(log),
		sandbox.WithBalances(cfg.SandboxBalances),
	)
	// Service accounts must exist before they can receive deposits.
	for _, id := range []domain.AccountID{
		cfg.Factory.OwnerID, cfg.Factory.AccountID,
		cfg.Custody.OwnerID, cfg.Custody.AccountID,
	} {
		if _, ok := ledger.Balance(id); !ok {
			ledger.CreateAccount(id, domain.ZeroAmount())
		}
	}

	infra, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	app, err := buildApp(cfg, infra, ledger, log)
	if err != nil {
		return err
	}
	defer app.publisher.Close()

	srv := httpserver.New(cfg.Addr, newRouter(cfg, app, infra, log))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(ledger.Run(ctx))
	})
	if infra.producer != nil {
		relay := worker.NewWorker(app.outbox, infra.producer, worker.WithLogger(log))
		g.Go(func() error {
			return ignoreCanceled(relay.Run(ctx))
		})
	}
	g.Go(func() error {
		log.Info("starting microbonds", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		log.Info("server stopped")
		return nil
	})
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// infra holds the optional external connections. Nil fields fall back to
// in-process implementations.
type infra struct {
	db       *sql.DB
	redis    *redisclient.Client
	producer *kafka.Producer
}

func openInfra(ctx context.Context, cfg config.Server, log *slog.Logger) (*infra, error) {
	in := &infra{}
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		in.db = db
		log.Info("using postgres stores")
	}

	rc, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		in.Close()
		return nil, err
	}
	in.redis = rc
	if rc != nil {
		log.Info("using redis membership store")
	}

	producer, err := kafka.NewProducer(ctx, cfg.Kafka)
	if err != nil {
		in.Close()
		return nil, err
	}
	if producer != nil {
		if err := producer.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
			producer.Close()
			in.Close()
			return nil, err
		}
		in.producer = producer
		log.Info("relaying events to kafka", "topic", cfg.Kafka.EventsTopic)
	}
	return in, nil
}

func (in *infra) Close() {
	if in.producer != nil {
		in.producer.Close()
	}
	if in.redis != nil {
		_ = in.redis.Close()
	}
	if in.db != nil {
		_ = in.db.Close()
	}
}
