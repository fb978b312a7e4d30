package main

import (
	"context"
	"log/slog"
	"os"

	"openbooking/cmd/bootstrap"
	"openbooking/internal/booking"
	"openbooking/internal/pkg/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

func init() {
	gin.SetMode(gin.ReleaseMode)
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	}
}

func startRecovery(lc fx.Lifecycle, worker *booking.RecoveryWorker, cfg config.Config, log *slog.Logger) {
	if !cfg.Booking.RecoveryEnabled {
		log.Info("recovery worker disabled")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			worker.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			worker.Stop()
			return nil
		},
	})
}

func registerRoutes(engine *gin.Engine, handler *booking.Handler) {
	handler.Register(engine)
}

func main() {
	app := fx.New(
		bootstrap.CoreModule,
		bootstrap.KafkaModule,
		fx.Provide(
			bootstrap.NewEngine,
			func(cfg config.Config) config.BookingConfig { return cfg.Booking },
			booking.NewRepository,
			booking.NewInventoryClient,
			booking.NewPaymentClient,
			booking.NewOrchestrator,
			booking.NewService,
			booking.NewHandler,
			booking.NewRecoveryWorker,
		),
		fx.Invoke(
			registerRoutes,
			startRecovery,
			bootstrap.StartServer,
		),
	)

	if err := app.Start(context.Background()); err != nil {
		slog.Error("failed to start booking service", "error", err)
		os.Exit(1)
	}

	<-app.Done()

	if err := app.Stop(context.Background()); err != nil {
		slog.Error("failed to stop booking service cleanly", "error", err)
	}
}
