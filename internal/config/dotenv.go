package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from a .env file if present.
// Existing environment variables are not overwritten.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}

type Config struct {
	JWTSecret                string
	TokenTTLMinutes          int
	SpotifyClientID          string
	SpotifyClientSecret      string
	SpotifyTokenURL          string
	SpotifyAPIURL            string
	AllowLateJoin            bool
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxLifetimeSeconds int
	DBConnMaxIdleTimeSeconds int
}

func Default() Config {
	return Config{
		JWTSecret:                "development-secret",
		TokenTTLMinutes:          12 * 60,
		SpotifyTokenURL:          "https://accounts.spotify.com/api/token",
		SpotifyAPIURL:            "https://api.spotify.com/v1",
		AllowLateJoin:            true,
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           10,
		DBConnMaxLifetimeSeconds: 300,
		DBConnMaxIdleTimeSeconds: 60,
	}
}

func Load() Config {
	cfg := Default()
	if raw := os.Getenv("JWT_SECRET"); raw != "" {
		cfg.JWTSecret = raw
	}
	if raw := os.Getenv("TOKEN_TTL_MINUTES"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.TokenTTLMinutes = value
		}
	}
	if raw := os.Getenv("SPOTIFY_CLIENT_ID"); raw != "" {
		cfg.SpotifyClientID = raw
	}
	if raw := os.Getenv("SPOTIFY_CLIENT_SECRET"); raw != "" {
		cfg.SpotifyClientSecret = raw
	}
	if raw := os.Getenv("SPOTIFY_TOKEN_URL"); raw != "" {
		cfg.SpotifyTokenURL = raw
	}
	if raw := os.Getenv("SPOTIFY_API_URL"); raw != "" {
		cfg.SpotifyAPIURL = raw
	}
	if raw := os.Getenv("ALLOW_LATE_JOIN"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.AllowLateJoin = value
		}
	}
	if raw := os.Getenv("DB_MAX_OPEN_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxOpenConns = value
		}
	}
	if raw := os.Getenv("DB_MAX_IDLE_CONNS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBMaxIdleConns = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_LIFETIME_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxLifetimeSeconds = value
		}
	}
	if raw := os.Getenv("DB_CONN_MAX_IDLE_SECONDS"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.DBConnMaxIdleTimeSeconds = value
		}
	}
	return cfg
}
