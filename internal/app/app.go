package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	nomadAdapter "github.com/sichatlabs/sichat-deploy/internal/adapter/orchestration/nomad"
	"github.com/sichatlabs/sichat-deploy/internal/adapter/repository/postgres"
	"github.com/sichatlabs/sichat-deploy/internal/api"
	"github.com/sichatlabs/sichat-deploy/internal/config"
	"github.com/sichatlabs/sichat-deploy/internal/deploylock"
	"github.com/sichatlabs/sichat-deploy/internal/domain/instance"
	"github.com/sichatlabs/sichat-deploy/internal/prober"
	"github.com/sichatlabs/sichat-deploy/internal/reconciler"
	"github.com/sichatlabs/sichat-deploy/internal/usecase/deployment"
	"github.com/sichatlabs/sichat-deploy/internal/version"
	"github.com/sichatlabs/sichat-deploy/pkg/db"
	zaplog "github.com/sichatlabs/sichat-deploy/pkg/log"
	"github.com/sichatlabs/sichat-deploy/pkg/matrixclient"
	"github.com/sichatlabs/sichat-deploy/pkg/nomad"
	"github.com/sichatlabs/sichat-deploy/pkg/snowflake"
	"github.com/sichatlabs/sichat-deploy/sql/migrations"
)

// RunServer starts the admin HTTP server and background workers.
func RunServer() {
	app := fx.New(
		fx.Provide(
			// Config
			config.Load,

			// Infrastructure (Adapters)
			nomad.NewClient,
			matrixclient.NewFromEnv,

			// Domain Adapters (Bind Interfaces)
			fx.Annotate(
				nomadAdapter.NewAdapter,
				fx.As(new(instance.Registry)),
			),
			fx.Annotate(
				postgres.NewRepository,
				fx.As(new(deployment.AttemptStore)),
			),
			fx.Annotate(
				newLeaseLock,
				fx.As(new(deploylock.Locker)),
			),

			// Services
			newProber,
			version.NewRegistry,
			deployment.NewRedeployUseCase,
			reconciler.NewInstanceReconciler,

			// API
			api.NewRouter,
		),
		db.Module,
		snowflake.Module,
		zaplog.Module,
		fx.Invoke(registerHooks),
	)

	app.Run()
}

// RunMigrations executes database migrations (up or down).
func RunMigrations(command string) error {
	if command == "" {
		command = "up"
	}

	cfg := config.Load()
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("running database migration", zap.String("command", command))

	dbURL := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBSSLMode,
	)

	d, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("load migration files: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, dbURL)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	switch command {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("migration up failed: %w", err)
		}
		logger.Info("migration up applied")
	case "down":
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Info("migration down applied")
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}

	return nil
}

func registerHooks(lc fx.Lifecycle, router *api.Router, instanceReconciler *reconciler.InstanceReconciler, cfg *config.Config, logger *zap.Logger) {
	var reconcilerCancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting admin server", zap.String("port", cfg.Port))

			reconcilerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			reconcilerCancel = cancel
			go instanceReconciler.Run(reconcilerCtx)

			go func() {
				if err := router.Run(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("server failed to start", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down admin server")

			if reconcilerCancel != nil {
				reconcilerCancel()
			}

			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			if err := router.Shutdown(shutdownCtx); err != nil {
				logger.Error("server forced to shutdown", zap.Error(err))
				return err
			}

			logger.Info("admin server stopped")
			return nil
		},
	})
}

func newLeaseLock(gdb *gorm.DB, cfg *config.Config) *deploylock.LeaseLock {
	return deploylock.NewLeaseLock(gdb, cfg.DeployLockTTL)
}

func newProber(client *matrixclient.Client, logger *zap.Logger) *prober.Prober {
	return prober.New(client, prober.DefaultConfig(), logger)
}
