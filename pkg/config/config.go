package config

import (
	"log"
	"os"

	"SafeCircle/pkg/cache"
	"SafeCircle/pkg/logger"
	"SafeCircle/pkg/util"
	"time"
)

// Config holds the full service configuration, loaded from the
// environment. It is passed explicitly to whoever needs it; there is
// no process-wide config singleton.
type Config struct {
	DBDriver string `env:"DB_DRIVER"`
	DSN      string `env:"DSN"`
	Addr     string `env:"ADDR"`
	Mode     string `env:"MODE"`

	APIPrefix string `env:"API_PREFIX"`

	Log   logger.LogConfig
	Cache cache.Config

	// SOS countdown and location capture.
	SosCountdownTicks   int           `env:"SOS_COUNTDOWN_TICKS"`
	SosTickInterval     time.Duration `env:"SOS_TICK_INTERVAL_MS"`
	LocationFetchWindow time.Duration `env:"LOCATION_FETCH_WINDOW_MS"`

	// How stale a device-reported position may be before a fetch fails.
	LocationMaxAge time.Duration `env:"LOCATION_MAX_AGE_MS"`

	// Mobile push provider; device push stays off while the endpoint
	// is empty and alerts go out over the websocket hub only.
	PushEndpoint     string `env:"PUSH_ENDPOINT"`
	PushAppKey       string `env:"PUSH_APP_KEY"`
	PushMasterSecret string `env:"PUSH_MASTER_SECRET"`
}

func Load() (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if err := util.LoadEnv(env); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := &Config{
		DBDriver:  util.GetEnv("DB_DRIVER"),
		DSN:       util.GetEnv("DSN"),
		Addr:      util.GetEnvDefault("ADDR", ":8080"),
		Mode:      util.GetEnv("MODE"),
		APIPrefix: util.GetEnvDefault("API_PREFIX", "/api"),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		Cache: cache.Config{
			Type: util.GetEnvDefault("CACHE_TYPE", "local"),
			Redis: cache.RedisConfig{
				Addr:     util.GetEnv("REDIS_ADDR"),
				Password: util.GetEnv("REDIS_PASSWORD"),
				DB:       int(util.GetIntEnv("REDIS_DB")),
			},
		},
		SosCountdownTicks:   int(util.GetIntEnv("SOS_COUNTDOWN_TICKS")),
		SosTickInterval:     time.Duration(util.GetIntEnv("SOS_TICK_INTERVAL_MS")) * time.Millisecond,
		LocationFetchWindow: time.Duration(util.GetIntEnv("LOCATION_FETCH_WINDOW_MS")) * time.Millisecond,
		LocationMaxAge:      time.Duration(util.GetIntEnv("LOCATION_MAX_AGE_MS")) * time.Millisecond,
		PushEndpoint:        util.GetEnv("PUSH_ENDPOINT"),
		PushAppKey:          util.GetEnv("PUSH_APP_KEY"),
		PushMasterSecret:    util.GetEnv("PUSH_MASTER_SECRET"),
	}
	if cfg.LocationMaxAge <= 0 {
		cfg.LocationMaxAge = 2 * time.Minute
	}
	return cfg, nil
}
