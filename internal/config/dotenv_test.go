package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("TOKEN_TTL_MINUTES", "60")
	t.Setenv("ALLOW_LATE_JOIN", "false")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg := Load()
	if cfg.JWTSecret != "test-secret" {
		t.Fatalf("expected overridden secret, got %q", cfg.JWTSecret)
	}
	if cfg.TokenTTLMinutes != 60 {
		t.Fatalf("expected ttl 60, got %d", cfg.TokenTTLMinutes)
	}
	if cfg.AllowLateJoin {
		t.Fatal("expected late joins disabled")
	}
	// Unparseable values keep the default.
	if cfg.DBMaxOpenConns != Default().DBMaxOpenConns {
		t.Fatalf("expected default pool size, got %d", cfg.DBMaxOpenConns)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SPOTIFY_CLIENT_ID=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("SPOTIFY_CLIENT_ID", "")
	os.Unsetenv("SPOTIFY_CLIENT_ID")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	if got := os.Getenv("SPOTIFY_CLIENT_ID"); got != "from-dotenv" {
		t.Fatalf("expected dotenv value, got %q", got)
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file should be fine, got %v", err)
	}
}
