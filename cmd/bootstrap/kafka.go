package bootstrap

import (
	"context"
	"log/slog"

	"openbooking/internal/pkg/config"
	"openbooking/internal/platform/events"

	"go.uber.org/fx"
)

var KafkaModule = fx.Module("kafka",
	fx.Provide(
		NewPublisher,
	),
)

func NewPublisher(lc fx.Lifecycle, cfg config.Config, log *slog.Logger) (events.Publisher, error) {
	if !cfg.Kafka.Enabled {
		log.Info("kafka disabled, events will be dropped")
		return events.NopPublisher{}, nil
	}

	publisher, cleanup, err := events.NewKafkaPublisher(cfg.Kafka, log)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if cleanup != nil {
				cleanup()
			}
			return nil
		},
	})

	return publisher, nil
}
