package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_SecurityDefaults(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Lockout.Threshold != 5 {
		t.Errorf("Lockout.Threshold: got %d, want 5", cfg.Lockout.Threshold)
	}
	if cfg.Lockout.Duration != 30*time.Minute {
		t.Errorf("Lockout.Duration: got %v, want 30m", cfg.Lockout.Duration)
	}
	if cfg.Session.MaxConcurrent != 5 {
		t.Errorf("Session.MaxConcurrent: got %d, want 5", cfg.Session.MaxConcurrent)
	}
	if cfg.Session.TTL != 24*time.Hour {
		t.Errorf("Session.TTL: got %v, want 24h", cfg.Session.TTL)
	}
	if cfg.RateLimit.PerMinute != 100 {
		t.Errorf("RateLimit.PerMinute: got %d, want 100", cfg.RateLimit.PerMinute)
	}
	if cfg.RateLimit.PerHour != 1000 {
		t.Errorf("RateLimit.PerHour: got %d, want 1000", cfg.RateLimit.PerHour)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled: got false, want true")
	}
	if !cfg.RateLimit.AdminBypass {
		t.Error("RateLimit.AdminBypass: got false, want true")
	}
	if cfg.RateLimit.StoreTimeout != 250*time.Millisecond {
		t.Errorf("RateLimit.StoreTimeout: got %v, want 250ms", cfg.RateLimit.StoreTimeout)
	}
	if len(cfg.RateLimit.ExemptPrefixes) != 1 || cfg.RateLimit.ExemptPrefixes[0] != "/health" {
		t.Errorf("RateLimit.ExemptPrefixes: got %v, want [/health]", cfg.RateLimit.ExemptPrefixes)
	}
}

func TestLoad_CustomSecurityValues(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	os.Setenv("LOCKOUT_THRESHOLD", "3")
	os.Setenv("LOCKOUT_DURATION", "1h")
	os.Setenv("SESSION_CAP", "10")
	os.Setenv("RATE_LIMIT_ENABLED", "false")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Lockout.Threshold != 3 {
		t.Errorf("Lockout.Threshold: got %d, want 3", cfg.Lockout.Threshold)
	}
	if cfg.Lockout.Duration != time.Hour {
		t.Errorf("Lockout.Duration: got %v, want 1h", cfg.Lockout.Duration)
	}
	if cfg.Session.MaxConcurrent != 10 {
		t.Errorf("Session.MaxConcurrent: got %d, want 10", cfg.Session.MaxConcurrent)
	}
	if cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled: got true, want false")
	}
}

func TestLoad_RejectsInvalidThresholds(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero lockout threshold", "LOCKOUT_THRESHOLD", "0"},
		{"negative session cap", "SESSION_CAP", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
			os.Setenv("DB_PASSWORD", "test")
			os.Setenv(tt.key, tt.value)
			defer os.Clearenv()

			if _, err := Load(); err == nil {
				t.Errorf("Load() = nil error, want validation failure for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Error("Load() = nil error, want JWT_SECRET required failure")
	}
}

func TestLoad_RejectsWeakJWTSecret(t *testing.T) {
	os.Setenv("JWT_SECRET", "short")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Error("Load() = nil error, want weak secret rejection")
	}
}
