package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	FriendRequestLimit  int
	FriendRequestWindow time.Duration

	IPRateLimit float64
	IPRateBurst int

	MetricsUser string
	MetricsPass string

	FCMCredentialsFile  string
	NotificationWorkers int

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests can supply their
// own environment.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		Port:               withDefault(getenv("PORT"), "3333"),
		DatabaseURL:        getenv("DATABASE_URL"),
		RedisURL:           getenv("REDIS_URL"),
		JWTSecret:          getenv("JWT_SECRET"),
		MetricsUser:        getenv("METRICS_USER"),
		MetricsPass:        getenv("METRICS_PASS"),
		FCMCredentialsFile: withDefault(getenv("FCM_CREDENTIALS_FILE"), "./serviceAccountKey.json"),
		LogLevel:           withDefault(getenv("LOG_LEVEL"), "info"),
		LogFormat:          withDefault(getenv("LOG_FORMAT"), "console"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	var err error
	if cfg.AccessTokenTTL, err = durationEnv(getenv, "ACCESS_TOKEN_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshTokenTTL, err = durationEnv(getenv, "REFRESH_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.FriendRequestWindow, err = durationEnv(getenv, "FRIEND_REQUEST_WINDOW", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.FriendRequestLimit, err = intEnv(getenv, "FRIEND_REQUEST_LIMIT", 3); err != nil {
		return nil, err
	}
	if cfg.IPRateBurst, err = intEnv(getenv, "IP_RATE_BURST", 30); err != nil {
		return nil, err
	}
	if cfg.NotificationWorkers, err = intEnv(getenv, "NOTIFICATION_WORKERS", 5); err != nil {
		return nil, err
	}

	cfg.IPRateLimit = 5
	if v := getenv("IP_RATE_LIMIT"); v != "" {
		cfg.IPRateLimit, err = strconv.ParseFloat(v, 64)
		if err != nil || cfg.IPRateLimit <= 0 {
			return nil, fmt.Errorf("invalid IP_RATE_LIMIT %q", v)
		}
	}

	return cfg, nil
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func durationEnv(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return d, nil
}

func intEnv(getenv func(string) string, key string, def int) (int, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}
