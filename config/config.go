package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds the runtime settings of the sync engine.
//
// Every value has a sensible default, so an empty environment yields a
// working offline configuration; GOSIP_SERVER_URL switches the client onto a
// real websocket channel.
type Config struct {
	// Channel settings
	ServerURL string `env:"SERVER_URL"`
	Origin    string `env:"ORIGIN" envDefault:"http://localhost"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// Identity of the local user. May be left empty; the engine then joins
	// once an identity is provided at runtime.
	SelfID   string `env:"SELF_ID"`
	SelfName string `env:"SELF_NAME"`

	// Engine tuning
	TypingQuietInterval   time.Duration `env:"TYPING_QUIET_INTERVAL" envDefault:"1500ms"`
	TypingIndicatorExpiry time.Duration `env:"TYPING_INDICATOR_EXPIRY" envDefault:"5s"`
	NearBottomThreshold   int           `env:"NEAR_BOTTOM_THRESHOLD" envDefault:"100"`
	AckTimeout            time.Duration `env:"ACK_TIMEOUT" envDefault:"10s"`
}

// Load parses GOSIP_-prefixed environment variables into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "GOSIP_"}); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if cfg.TypingQuietInterval <= 0 {
		return nil, fmt.Errorf("GOSIP_TYPING_QUIET_INTERVAL must be positive, got %s", cfg.TypingQuietInterval)
	}
	if cfg.TypingIndicatorExpiry <= 0 {
		return nil, fmt.Errorf("GOSIP_TYPING_INDICATOR_EXPIRY must be positive, got %s", cfg.TypingIndicatorExpiry)
	}
	if cfg.NearBottomThreshold <= 0 {
		return nil, fmt.Errorf("GOSIP_NEAR_BOTTOM_THRESHOLD must be positive, got %d", cfg.NearBottomThreshold)
	}
	if cfg.AckTimeout <= 0 {
		return nil, fmt.Errorf("GOSIP_ACK_TIMEOUT must be positive, got %s", cfg.AckTimeout)
	}
	if url := strings.TrimSpace(cfg.ServerURL); url != "" {
		if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
			return nil, fmt.Errorf("GOSIP_SERVER_URL must be a ws:// or wss:// URL, got %q", url)
		}
		cfg.ServerURL = url
	}

	return cfg, nil
}
