// internal/config/config.go
package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries all environment-driven settings. Defaults are usable for
// local development with no env at all.
type Config struct {
	Addr        string
	GracePeriod time.Duration
	LogLevel    string

	RedisAddr      string
	RedisDB        int
	HistorianQueue string
}

// Load reads the configuration from the environment. godotenv/autoload in
// main has already merged any .env file by the time this runs.
func Load() Config {
	return Config{
		Addr:           getEnv("PLAYMAT_ADDR", ":8080"),
		GracePeriod:    getEnvDuration("ROOM_GRACE_PERIOD", 5*time.Minute),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		RedisAddr:      getEnv("REDIS_ADDR", ""),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		HistorianQueue: getEnv("HISTORIAN_QUEUE_NAME", "playmat_actions"),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
