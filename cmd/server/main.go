package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/customer-import/internal/config"
	"github.com/JonMunkholm/customer-import/internal/core"
	"github.com/JonMunkholm/customer-import/internal/database"
	"github.com/JonMunkholm/customer-import/internal/logging"
	"github.com/JonMunkholm/customer-import/internal/web"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Open(ctx, database.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	if err := database.EnsureSchema(ctx, pool); err != nil {
		return err
	}

	service := core.NewService(database.NewStore(pool), database.NewAuditLog(pool), serviceConfig(cfg))
	server := web.NewServer(service, cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		service.StartPreviewSweeper(gctx, cfg.Import.SweepInterval)
		return nil
	})

	g.Go(server.Start)

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.Status(); status.Import.Busy {
			slog.Info("waiting for running import", "holder", status.Import.Holder)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("import did not finish in time", "error", err)
			} else {
				slog.Info("running import finished")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	return g.Wait()
}

func serviceConfig(cfg *config.Config) core.ServiceConfig {
	return core.ServiceConfig{
		MaxFileSize:      cfg.Import.MaxFileSize,
		ImportTimeout:    cfg.Import.Timeout,
		OperationTimeout: cfg.Import.OperationTimeout,
		MaxImportWait:    cfg.Import.MaxWaitTime,
		PreviewTTL:       cfg.Import.PreviewTTL,
	}
}
