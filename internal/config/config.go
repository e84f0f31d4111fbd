// internal/config/config.go

// Package config loads service settings from the environment, with an
// optional .env file for local development.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds everything the service reads from the environment.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string

	// PostgresURL enables the Postgres game store and deck catalog when
	// set; otherwise the service runs on in-memory equivalents.
	PostgresURL string

	// RedisURL enables event publishing and action history when set.
	RedisURL string

	// RoomServiceURL enables room status callbacks when set.
	RoomServiceURL string

	LogLevel string

	// Game defaults applied when a create request omits them.
	RoundTimeSeconds  int
	ScoreTarget       int
	GraceDelaySeconds int
}

// Load reads the environment, layering a .env file underneath if present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Addr:              getenv("ADDR", ":8080"),
		PostgresURL:       os.Getenv("POSTGRES_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
		RoomServiceURL:    os.Getenv("ROOM_SERVICE_URL"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		RoundTimeSeconds:  getenvInt("ROUND_TIME_SECONDS", 60),
		ScoreTarget:       getenvInt("SCORE_TARGET", 10),
		GraceDelaySeconds: getenvInt("GRACE_DELAY_SECONDS", 10),
	}
}

// ParseLevel maps the configured log level, defaulting to info on junk.
func (c Config) ParseLevel() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
