package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config is the runtime configuration of the auth service.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr        string        `env:"GRPC_ADDR" envDefault:":9090"`
	AuthSecret      string        `env:"AUTH_SECRET"`
	TokenIssuer     string        `env:"TOKEN_ISSUER" envDefault:"optibid"`
	AccessTTL       time.Duration `env:"ACCESS_TTL" envDefault:"168h"`
	RefreshTTL      time.Duration `env:"REFRESH_TTL" envDefault:"720h"`
	PGDSN           string        `env:"PG_DSN"`
	PrincipalsFile  string        `env:"PRINCIPALS_FILE"`
	RateBurst       int           `env:"RATE_BURST" envDefault:"20"`
	RatePerSec      float64       `env:"RATE_PER_SEC" envDefault:"5"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES" envDefault:"1048576"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	ActivityHistory int           `env:"ACTIVITY_HISTORY" envDefault:"256"`
	TrustProxy      bool          `env:"TRUST_PROXY" envDefault:"false"`
}

const envPrefix = "OPTIBID_"

// ErrMissingSecret is returned when no signing secret is configured.
var ErrMissingSecret = errors.New("config: OPTIBID_AUTH_SECRET is required")

// Load reads an optional .env file (or the files named) and then the
// OPTIBID_* environment. Variables already set in the environment win.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			files = []string{".env"}
		}
	}
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Config{}, fmt.Errorf("config: load env files: %w", err)
		}
	}
	return FromEnv()
}

// FromEnv parses OPTIBID_* variables without touching .env files.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg.AuthSecret = strings.TrimSpace(cfg.AuthSecret)
	origins := cfg.AllowedOrigins[:0]
	for _, o := range cfg.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.AllowedOrigins = origins
	return cfg, cfg.Validate()
}

// GRPCEnabled reports whether the gRPC health listener should start; "-"
// disables it.
func (c Config) GRPCEnabled() bool {
	return c.GRPCAddr != "" && c.GRPCAddr != "-"
}

// Validate checks invariants the service cannot start without.
func (c Config) Validate() error {
	if c.AuthSecret == "" {
		return ErrMissingSecret
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		return errors.New("config: token lifetimes must be positive")
	}
	if c.RateBurst <= 0 || c.RatePerSec <= 0 {
		return errors.New("config: rate limit must be positive")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("config: request timeout must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return errors.New("config: max body bytes must be positive")
	}
	if c.PGDSN != "" && c.PrincipalsFile != "" {
		return errors.New("config: OPTIBID_PG_DSN and OPTIBID_PRINCIPALS_FILE are mutually exclusive")
	}
	return nil
}
