package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/smartvenkatesh/new-staking/internal/config"
	"github.com/smartvenkatesh/new-staking/internal/middleware"
	"github.com/smartvenkatesh/new-staking/internal/notification"
	"github.com/smartvenkatesh/new-staking/internal/staking"
	"github.com/smartvenkatesh/new-staking/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger

	// Wired during Setup and reused by the scheduler in main.
	Stakes    staking.Repository
	Lifecycle *staking.Service
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d *Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var walletRepo wallet.Repository
	if d.DB != nil {
		walletRepo = wallet.NewPostgresRepository(d.DB)
	} else {
		walletRepo = wallet.NewMemoryRepository()
	}
	walletSvc := wallet.NewService(walletRepo)

	if d.DB != nil {
		d.Stakes = staking.NewPostgresRepository(d.DB)
	} else {
		d.Stakes = staking.NewMemoryRepository()
	}
	notifier := notification.NewLoggerNotifier(d.Logger)
	d.Lifecycle = staking.NewService(d.Stakes, walletSvc, notifier, staking.SystemClock(), d.Logger)

	walletHandler := wallet.NewHandler(walletSvc)
	stakingHandler := staking.NewHandler(d.Lifecycle)

	api := app.Group("/api")
	RegisterWalletRoutes(api, walletHandler)
	RegisterStakingRoutes(api, stakingHandler)

	return nil
}
