package config

import "time"

type StoreConfig struct {
	Driver string `env:"STORE_DRIVER" default:"sqlite"`
}

type PostgresConfig struct {
	DSN             string        `env:"PG_DSN" default:""`
	MaxOpenConns    int           `env:"PG_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `env:"PG_MAX_IDLE_CONNS" default:"5"`
	ConnMaxIdleTime time.Duration `env:"PG_CONN_MAX_IDLE_TIME" default:"5m"`
	ConnMaxLifetime time.Duration `env:"PG_CONN_MAX_LIFETIME" default:"30m"`
}

type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH" default:"wagercore.db"`
}

type RedisConfig struct {
	Addr    string `env:"REDIS_ADDR" default:""`
	Channel string `env:"REDIS_CHANNEL" default:"wagercore.events"`
}

type EngineConfig struct {
	CatalogPath   string        `env:"CATALOG_PATH" default:""`
	RNGSeed       uint64        `env:"RNG_SEED" default:"0"`
	StaleStakeTTL time.Duration `env:"STALE_STAKE_TTL" default:"0s"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" default:"1m"`
	EventBuffer   int           `env:"EVENT_BUFFER" default:"1024"`
}
