package main

import (
	"log/slog"
	"time"

	"github.com/EmeraldIsleCasino/wagercore/internal/config"
)

type apiConfig struct {
	Port            uint16        `env:"API_PORT" default:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" default:"INFO"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`

	Store    config.StoreConfig
	Postgres config.PostgresConfig
	SQLite   config.SQLiteConfig
	Redis    config.RedisConfig
	Engine   config.EngineConfig
}
