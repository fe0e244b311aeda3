package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Env is the process environment the binaries read.
type Env struct {
	Port        string
	APIEnv      string
	DatabaseURL string
	// ConfigPath is the portfolio config served by the API.
	ConfigPath string
	// StrategyDir holds the strategy presets listed by the API.
	StrategyDir string
	CacheTTL    time.Duration
}

// LoadEnv loads variables from the given .env files (default ".env") without
// overriding ones already set. Missing files are not an error.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// FromEnv reads Env from the process environment, applying defaults.
func FromEnv() Env {
	e := Env{
		Port:        getenv("API_PORT", "8080"),
		APIEnv:      os.Getenv("API_ENV"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		ConfigPath:  getenv("BACKTEST_CONFIG", "examples/config.yaml"),
		StrategyDir: getenv("STRATEGY_DIR", "examples/strategies"),
	}
	if ttl, err := time.ParseDuration(os.Getenv("RESULT_CACHE_TTL")); err == nil && ttl > 0 {
		e.CacheTTL = ttl
	}
	return e
}

// Production reports whether API_ENV is "production".
func (e Env) Production() bool { return e.APIEnv == "production" }

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
