package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with empty environment failed: %v", err)
	}
	if cfg.TypingQuietInterval != 1500*time.Millisecond {
		t.Fatalf("expected default typing quiet interval 1.5s, got %s", cfg.TypingQuietInterval)
	}
	if cfg.TypingIndicatorExpiry != 5*time.Second {
		t.Fatalf("expected default typing indicator expiry 5s, got %s", cfg.TypingIndicatorExpiry)
	}
	if cfg.NearBottomThreshold != 100 {
		t.Fatalf("expected default near-bottom threshold 100, got %d", cfg.NearBottomThreshold)
	}
	if cfg.AckTimeout != 10*time.Second {
		t.Fatalf("expected default ack timeout 10s, got %s", cfg.AckTimeout)
	}
	if cfg.ServerURL != "" {
		t.Fatalf("expected empty server URL by default, got %q", cfg.ServerURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GOSIP_SERVER_URL", "wss://chat.example.com/socket")
	t.Setenv("GOSIP_TYPING_QUIET_INTERVAL", "250ms")
	t.Setenv("GOSIP_NEAR_BOTTOM_THRESHOLD", "40")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServerURL != "wss://chat.example.com/socket" {
		t.Fatalf("unexpected server URL %q", cfg.ServerURL)
	}
	if cfg.TypingQuietInterval != 250*time.Millisecond {
		t.Fatalf("unexpected typing quiet interval %s", cfg.TypingQuietInterval)
	}
	if cfg.NearBottomThreshold != 40 {
		t.Fatalf("unexpected near-bottom threshold %d", cfg.NearBottomThreshold)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"non websocket server URL", "GOSIP_SERVER_URL", "https://chat.example.com"},
		{"zero quiet interval", "GOSIP_TYPING_QUIET_INTERVAL", "0s"},
		{"negative threshold", "GOSIP_NEAR_BOTTOM_THRESHOLD", "-5"},
		{"zero ack timeout", "GOSIP_ACK_TIMEOUT", "0s"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected Load to reject %s=%q", tc.key, tc.value)
			}
		})
	}
}
