package main

import (
	"context"
	"log/slog"
	"os"

	"openbooking/cmd/bootstrap"
	"openbooking/internal/idempotency"
	"openbooking/internal/inventory"
	"openbooking/internal/pkg/clock"
	"openbooking/internal/pkg/config"
	"openbooking/internal/platform/db"
	"openbooking/internal/platform/lock"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	}
}

func newIdempotencyStore(cfg config.Config, client *redis.Client, log *slog.Logger) idempotency.Store {
	var cache idempotency.Cache = idempotency.NopCache{}
	if cfg.Inventory.FastCacheEnabled {
		cache = idempotency.NewRedisCache(client, "idempotency:reserve:", cfg.Inventory.FastCacheTTL(), log)
	}
	return idempotency.NewResolver("reserve_idempotency", cache)
}

func newReaper(runner db.TxRunner, repo inventory.Repository, clk clock.Clock, cfg config.Config, log *slog.Logger) *inventory.Reaper {
	return inventory.NewReaper(runner, repo, clk, cfg.Inventory.ReaperInterval(), log)
}

func startReaper(lc fx.Lifecycle, reaper *inventory.Reaper) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			reaper.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			reaper.Stop()
			return nil
		},
	})
}

func registerRoutes(engine *gin.Engine, handler *inventory.Handler) {
	handler.Register(engine)
}

func main() {
	app := fx.New(
		bootstrap.CoreModule,
		bootstrap.RedisModule,
		fx.Provide(
			bootstrap.NewEngine,
			func(cfg config.Config) config.InventoryConfig { return cfg.Inventory },
			inventory.NewRepository,
			lock.NewRedisProvider,
			inventory.NewStrategy,
			newIdempotencyStore,
			inventory.NewService,
			inventory.NewHandler,
			newReaper,
		),
		fx.Invoke(
			registerRoutes,
			startReaper,
			bootstrap.StartServer,
		),
	)

	if err := app.Start(context.Background()); err != nil {
		slog.Error("failed to start inventory service", "error", err)
		os.Exit(1)
	}

	<-app.Done()

	if err := app.Stop(context.Background()); err != nil {
		slog.Error("failed to stop inventory service cleanly", "error", err)
	}
}
