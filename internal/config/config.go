// Package config loads the service's runtime configuration: the PORT
// variable plus the optional CACHE_SIZE and LOG_LEVEL variables, optionally
// pre-loaded from a local .env file.
//
// Grounded on config.NewConfig's godotenv.Load(".env") call in the
// sibling repo dselans-mmmbop; the rest of that file's TOML/CLI machinery
// does not apply here, since this service reads only a few environment
// variables. This replaces the teacher's original upward-directory-search
// ".xy3" ini-file config, which belongs to a different domain (S3 bucket
// defaults for a CLI) and has no equivalent concern in an HTTP service.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// DefaultPort is bound when the PORT environment variable is unset, per
// spec.md §6.
const DefaultPort = "5000"

// Config is the service's runtime configuration.
type Config struct {
	// Port is the TCP port the HTTP server binds on 0.0.0.0.
	Port string

	// CacheSize, when positive, enables the optional bounded parsed-CD
	// cache (zipcd/cdcache). Zero disables it.
	CacheSize int

	// LogLevel is parsed by internal/logging; empty means the default
	// level.
	LogLevel string
}

// Load reads configuration from the environment, optionally pre-loaded
// from a ".env" file in the working directory. A missing .env file is not
// an error.
func Load() *Config {
	_ = godotenv.Load(".env")

	c := &Config{
		Port:     os.Getenv("PORT"),
		LogLevel: os.Getenv("LOG_LEVEL"),
	}
	if c.Port == "" {
		c.Port = DefaultPort
	}
	if size, err := strconv.Atoi(os.Getenv("CACHE_SIZE")); err == nil {
		c.CacheSize = size
	}

	return c
}
