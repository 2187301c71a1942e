package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // household zones must resolve on hosts without a zoneinfo database

	"github.com/kelseyhightower/envconfig"

	"choretrack/internal/chores"
	"choretrack/internal/logger"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	Addr        string `envconfig:"ADDR" default:":8080"`
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"` // sqlite|pgx
	DatabaseURL string `envconfig:"DATABASE_URL" default:"./data/choretrack.db"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	Timezone    string `envconfig:"TIMEZONE" default:"Europe/Moscow"`
	WebDir      string `envconfig:"WEB_DIR" default:"./web"`

	// The whole family shares one password. A bcrypt hash takes precedence over the plain value.
	SharedPassword     string `envconfig:"SHARED_PASSWORD" default:"1234"`
	SharedPasswordHash string `envconfig:"SHARED_PASSWORD_HASH"`

	SessionTTL        time.Duration `envconfig:"SESSION_TTL" default:"336h"`
	SessionCookieName string        `envconfig:"SESSION_COOKIE_NAME" default:"choretrack_sess"`
	CookieSecure      bool          `envconfig:"COOKIE_SECURE" default:"false"`

	// Calendar cells before this day carry no counts.
	HistoryStart string `envconfig:"HISTORY_START" default:"2024-11-26"`
	SeedOnStart  bool   `envconfig:"SEED_ON_START" default:"true"`
}

// Load reads environment variables into Config and checks the values it can.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "pgx":
	default:
		return fmt.Errorf("DB_DRIVER must be sqlite or pgx, got %q", c.DBDriver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.HistoryStart != "" {
		if _, err := chores.ParseDay(c.HistoryStart); err != nil {
			return fmt.Errorf("HISTORY_START: %w", err)
		}
	}
	if c.SharedPassword == "" && c.SharedPasswordHash == "" {
		return fmt.Errorf("SHARED_PASSWORD or SHARED_PASSWORD_HASH is required")
	}
	return nil
}

// Location is the household time zone; "today" is computed there.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE: %w", err)
	}
	return loc, nil
}

// HistoryStartDay returns the parsed history start, zero when unset.
func (c Config) HistoryStartDay() chores.Day {
	d, _ := chores.ParseDay(c.HistoryStart)
	return d
}
