package main

import (
	"context"
	"log/slog"
	"os"

	"openbooking/cmd/bootstrap"
	"openbooking/internal/idempotency"
	"openbooking/internal/payment"
	"openbooking/internal/pkg/config"

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

// newRedisClient connects only when the fast cache is on; with it off the
// service runs against Postgres alone.
func newRedisClient(lc fx.Lifecycle, cfg config.Config) (*redis.Client, error) {
	if !cfg.Payment.FastCacheEnabled {
		return nil, nil
	}
	return bootstrap.NewRedis(lc, cfg)
}

func newIdempotencyStore(cfg config.Config, client *redis.Client, log *slog.Logger) idempotency.Store {
	var cache idempotency.Cache = idempotency.NopCache{}
	if cfg.Payment.FastCacheEnabled {
		cache = idempotency.NewRedisCache(client, "idempotency:payment:", cfg.Payment.FastCacheTTL(), log)
	}
	return idempotency.NewResolver("payment_idempotency", cache)
}

func registerRoutes(engine *gin.Engine, handler *payment.Handler) {
	handler.Register(engine)
}

func main() {
	app := fx.New(
		bootstrap.CoreModule,
		fx.Provide(
			bootstrap.NewEngine,
			newRedisClient,
			func(cfg config.Config) config.PaymentConfig { return cfg.Payment },
			payment.NewRepository,
			payment.NewSimulatedGateway,
			newIdempotencyStore,
			payment.NewService,
			payment.NewHandler,
		),
		fx.Invoke(
			registerRoutes,
			bootstrap.StartServer,
		),
	)

	if err := app.Start(context.Background()); err != nil {
		slog.Error("failed to start payment service", "error", err)
		os.Exit(1)
	}

	<-app.Done()

	if err := app.Stop(context.Background()); err != nil {
		slog.Error("failed to stop payment service cleanly", "error", err)
	}
}
