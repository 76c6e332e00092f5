package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TEXT_PROVIDER", "OpenAI")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" || cfg.TextProvider != ProviderOpenAI || cfg.OpenAI.Model != "gpt-4o" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SessionTTL != 60*time.Minute || cfg.TextTimeout != 60*time.Second {
		t.Fatalf("unexpected durations: ttl=%v text=%v", cfg.SessionTTL, cfg.TextTimeout)
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("TEXT_PROVIDER", "llama")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"90s", 90 * time.Second},
		{"2m", 2 * time.Minute},
		{"45", 45 * time.Second},
		{"soon", 7 * time.Second},
	}
	for _, tt := range tests {
		t.Setenv("TEST_DURATION", tt.value)
		if got := getEnvDuration("TEST_DURATION", 7*time.Second); got != tt.want {
			t.Errorf("getEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "off")
	if getEnvBool("TEST_BOOL", true) {
		t.Fatal("expected off to parse as false")
	}
	t.Setenv("TEST_BOOL", "maybe")
	if !getEnvBool("TEST_BOOL", true) {
		t.Fatal("expected fallback for unparseable value")
	}
}

func TestIsDevelopment(t *testing.T) {
	cases := map[string]bool{
		"":                        true,
		"http://localhost:5173":   true,
		"https://plan.example.se": false,
	}
	for url, want := range cases {
		c := &Config{FrontendURL: url}
		if got := c.IsDevelopment(); got != want {
			t.Errorf("IsDevelopment(%q) = %v, want %v", url, got, want)
		}
	}
}
