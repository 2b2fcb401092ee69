package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	BotToken string `env:"TELEGRAM_BOT_TOKEN,required"`
	BotDebug bool   `env:"BOT_DEBUG" envDefault:"false"`

	APIBaseURL string        `env:"API_BASE_URL" envDefault:"http://localhost:5000/api/v1"`
	APITimeout time.Duration `env:"API_TIMEOUT" envDefault:"15s"`

	RedisURL string     `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	HTTPAddr string     `env:"HTTP_ADDR" envDefault:":8081"`
	LogLevel slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	Timezone string     `env:"TIMEZONE" envDefault:"Europe/Istanbul"`

	// Operating hours of a field and booking unit, used to derive slots.
	OpenHour    int `env:"OPEN_HOUR" envDefault:"8"`
	CloseHour   int `env:"CLOSE_HOUR" envDefault:"24"`
	SlotMinutes int `env:"SLOT_MINUTES" envDefault:"60"`

	PollInterval  time.Duration `env:"INVITATION_POLL_INTERVAL" envDefault:"30s"`
	ToastDuration time.Duration `env:"TOAST_DURATION" envDefault:"3500ms"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c Config) validate() error {
	if c.OpenHour < 0 || c.CloseHour > 24 || c.OpenHour >= c.CloseHour {
		return fmt.Errorf("invalid operating hours %d-%d", c.OpenHour, c.CloseHour)
	}
	if c.SlotMinutes <= 0 || (c.CloseHour-c.OpenHour)*60%c.SlotMinutes != 0 {
		return fmt.Errorf("slot length %d does not divide operating hours", c.SlotMinutes)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("invitation poll interval must be positive")
	}
	return nil
}

// Location resolves the configured timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
