package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.APIBaseURL != "http://localhost:5000/api/v1" {
		t.Errorf("APIBaseURL = %q", cfg.APIBaseURL)
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.PollInterval)
	}
	if cfg.ToastDuration != 3500*time.Millisecond {
		t.Errorf("ToastDuration = %v, want 3.5s", cfg.ToastDuration)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", cfg.LogLevel)
	}
	if cfg.OpenHour != 8 || cfg.CloseHour != 24 || cfg.SlotMinutes != 60 {
		t.Errorf("window = %d-%d/%d", cfg.OpenHour, cfg.CloseHour, cfg.SlotMinutes)
	}
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without bot token")
	}
}

func TestLoadRejectsBadWindow(t *testing.T) {
	tests := []struct {
		name  string
		open  string
		close string
		slot  string
	}{
		{"open after close", "22", "20", "60"},
		{"close past midnight", "8", "25", "60"},
		{"slot does not divide", "8", "24", "50"},
		{"zero slot", "8", "24", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
			t.Setenv("OPEN_HOUR", tt.open)
			t.Setenv("CLOSE_HOUR", tt.close)
			t.Setenv("SLOT_MINUTES", tt.slot)

			if _, err := Load(); err == nil {
				t.Error("expected error")
			}
		})
	}
}
