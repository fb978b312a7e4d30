package bootstrap

import (
	"context"

	"openbooking/internal/pkg/clock"
	"openbooking/internal/pkg/config"
	"openbooking/internal/platform/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

var DBModule = fx.Module("db",
	fx.Provide(
		NewDB,
		db.NewRunner,
		func(pool *pgxpool.Pool) db.DBTX { return pool },
		clock.NewRealClock,
	),
)

func NewDB(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	pool, cleanup, err := db.Connect(context.Background(), cfg.DB)
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

	return pool, nil
}
