package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the full runtime configuration, sourced from the
// environment. An empty DB_DSN selects the in-memory store; an empty
// REDIS_ADDR disables the history cache.
type Config struct {
	Addr            string        `envconfig:"ADDR" default:":8080"`
	DatabaseDSN     string        `envconfig:"DB_DSN"`
	RedisAddr       string        `envconfig:"REDIS_ADDR"`
	HistoryLimit    int           `envconfig:"HISTORY_LIMIT" default:"50"`
	SendBuffer      int           `envconfig:"SEND_BUFFER" default:"256"`
	MaxMessageSize  int64         `envconfig:"MAX_MESSAGE_SIZE" default:"512"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
