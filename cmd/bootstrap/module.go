package bootstrap

import "go.uber.org/fx"

// CoreModule is the wiring every service shares: config, structured logging
// and the database layer. Redis and Kafka are opted into per service.
var CoreModule = fx.Options(
	ConfigModule,
	LoggerModule,
	DBModule,
)
