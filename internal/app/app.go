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

	adapternotify "github.com/atelierlabs/studio-portal/internal/adapter/notify"
	"github.com/atelierlabs/studio-portal/internal/adapter/repository/postgres"
	"github.com/atelierlabs/studio-portal/internal/api"
	"github.com/atelierlabs/studio-portal/internal/catalog"
	"github.com/atelierlabs/studio-portal/internal/config"
	"github.com/atelierlabs/studio-portal/internal/domain/action"
	"github.com/atelierlabs/studio-portal/internal/domain/notify"
	"github.com/atelierlabs/studio-portal/internal/domain/phase"
	"github.com/atelierlabs/studio-portal/internal/domain/project"
	"github.com/atelierlabs/studio-portal/internal/domain/tracking"
	"github.com/atelierlabs/studio-portal/internal/engine"
	"github.com/atelierlabs/studio-portal/internal/eventbus"
	"github.com/atelierlabs/studio-portal/internal/gate"
	"github.com/atelierlabs/studio-portal/internal/onboarding"
	"github.com/atelierlabs/studio-portal/internal/outbox"
	"github.com/atelierlabs/studio-portal/internal/usecase/workflow"
	"github.com/atelierlabs/studio-portal/pkg/db"
	zaplog "github.com/atelierlabs/studio-portal/pkg/log"
	"github.com/atelierlabs/studio-portal/pkg/mailclient"
	"github.com/atelierlabs/studio-portal/pkg/snowflake"
	"github.com/atelierlabs/studio-portal/sql/migrations"
)

// RunServer starts the HTTP server and background workers.
func RunServer() {
	app := fx.New(
		fx.Provide(
			// Config
			config.Load,
			newDBConfig,
			newEngineOptions,
			newVAPIDConfig,
			newSubscriptionEncKey,

			// Infrastructure
			mailclient.NewFromEnv,
			eventbus.New,

			// Repositories (bind interfaces)
			fx.Annotate(
				postgres.NewTrackingRepository,
				fx.As(new(tracking.Repository)),
				fx.As(new(tracking.HistoryReader)),
			),
			fx.Annotate(
				postgres.NewProjectRepository,
				fx.As(new(project.Repository)),
			),
			fx.Annotate(
				postgres.NewCatalogRepository,
				fx.As(new(phase.CatalogRepository)),
			),
			fx.Annotate(
				postgres.NewActionStatusRepository,
				fx.As(new(action.StatusReader)),
				fx.As(new(action.StatusWriter)),
			),
			fx.Annotate(
				postgres.NewRuleRepository,
				fx.As(new(engine.RuleRepository)),
			),
			fx.Annotate(
				postgres.NewDedupeRepository,
				fx.As(new(engine.DedupeStore)),
			),

			// Notification dispatch
			adapternotify.NewWebPushSender,
			fx.Annotate(
				adapternotify.NewDispatcher,
				fx.As(new(notify.Dispatcher)),
			),
			adapternotify.NewEmailWorker,
			outbox.NewProcessor,

			// Workflow core
			newCatalogService,
			gate.New,
			workflow.NewAdvanceUseCase,
			engine.NewRuleCache,
			engine.New,
			onboarding.NewService,

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

	logger.Info("Starting database migration...", zap.String("command", command))

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
		err := m.Up()
		if err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("migration up failed: %w", err)
		}
		if err == migrate.ErrNoChange {
			logger.Info("No changes to apply")
		} else {
			logger.Info("Migration up applied successfully")
		}
	case "down":
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			return fmt.Errorf("migration down failed: %w", err)
		}
		logger.Info("Migration down applied successfully")
	default:
		return fmt.Errorf("unknown migration command: %s", command)
	}

	return nil
}

func registerHooks(
	lc fx.Lifecycle,
	cfg *config.Config,
	router *api.Router,
	automation *engine.Engine,
	processor *outbox.Processor,
	emailWorker *adapternotify.EmailWorker,
	logger *zap.Logger,
) {
	var engineCancel context.CancelFunc
	var processorCancel context.CancelFunc
	var emailCancel context.CancelFunc

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting HTTP server", zap.String("port", cfg.Port))

			engineCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			engineCancel = cancel
			go automation.Run(engineCtx)

			processorCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			processorCancel = cancel
			go processor.Run(processorCtx)

			emailCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
			emailCancel = cancel
			go emailWorker.Run(emailCtx)

			go func() {
				if err := router.Run(); err != nil && err != http.ErrServerClosed {
					logger.Fatal("Server failed to start", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down HTTP server gracefully...")

			if engineCancel != nil {
				engineCancel()
			}
			if processorCancel != nil {
				processorCancel()
			}
			if emailCancel != nil {
				emailCancel()
			}

			shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()

			if err := router.Shutdown(shutdownCtx); err != nil {
				logger.Error("Server forced to shutdown", zap.Error(err))
				return err
			}

			logger.Info("HTTP server stopped gracefully")
			return nil
		},
	})
}

func newDBConfig(cfg *config.Config) db.Config {
	return db.Config{
		DSN: fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode,
		),
		MaxIdleConns:    cfg.DBMaxIdleConn,
		MaxOpenConns:    cfg.DBMaxOpenConn,
		ConnMaxLifetime: time.Duration(cfg.DBConnMaxLifetime) * time.Second,
		ConnMaxIdleTime: time.Duration(cfg.DBConnMaxIdleTime) * time.Second,
	}
}

func newEngineOptions(cfg *config.Config) engine.Options {
	return engine.Options{
		Interval:       cfg.EngineTickInterval,
		BatchSize:      cfg.EngineBatchSize,
		Concurrency:    cfg.EngineConcurrency,
		ProjectTimeout: cfg.EngineProjectTimeout,
		StuckAfter:     cfg.StuckAfter,
		RemindAfter:    cfg.RemindAfter,
		StuckCooldown:  cfg.StuckCooldown,
		RemindCooldown: cfg.RemindCooldown,
	}
}

func newCatalogService(cfg *config.Config, repo phase.CatalogRepository, logger *zap.Logger) *catalog.Service {
	return catalog.NewServiceWithTTL(repo, cfg.CatalogCacheTTL, logger)
}

func newVAPIDConfig(cfg *config.Config) adapternotify.VAPIDConfig {
	return adapternotify.VAPIDConfig{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Contact:    cfg.VAPIDContact,
	}
}

func newSubscriptionEncKey(cfg *config.Config) adapternotify.SubscriptionEncKey {
	return adapternotify.SubscriptionEncKey(cfg.PushSubscriptionEncKey)
}
