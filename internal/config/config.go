package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"devbot/internal/model"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LogLevel    string
	MetricsAddr string
	Workers     int

	SystemReportInterval time.Duration
	SystemReportAt       string

	BootstrapAdminIDs []model.ExternalUserID
	PublicIPLookup    bool
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first if present; variables
// already set in the environment win.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }

	cfg := Config{
		TelegramToken:  get("TELEGRAM_TOKEN"),
		DatabaseURL:    get("DATABASE_URL"),
		RedisPassword:  get("REDIS_PASSWORD"),
		LogLevel:       get("LOG_LEVEL"),
		MetricsAddr:    get("METRICS_ADDR"),
		SystemReportAt: get("SYSTEM_REPORT_AT"),
		PublicIPLookup: true,
	}

	if cfg.TelegramToken == "" {
		cfg.TelegramToken = get("API_TOKEN")
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = postgresURL(get)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "devbot.db"
	}

	if host := get("REDIS_HOST"); host != "" {
		port := get("REDIS_PORT")
		if port == "" {
			port = "6379"
		}
		cfg.RedisAddr = net.JoinHostPort(host, port)
	}
	if raw := get("REDIS_DB"); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil || db < 0 {
			return cfg, fmt.Errorf("REDIS_DB must be a non-negative integer, got %q", raw)
		}
		cfg.RedisDB = db
	}

	cfg.Workers = 4
	if raw := get("WORKERS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("WORKERS must be a positive integer, got %q", raw)
		}
		cfg.Workers = n
	}

	cfg.SystemReportInterval = parseInterval(get("SYSTEM_REPORT_INTERVAL_HOURS"))

	if raw := get("PUBLIC_IP_LOOKUP"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return cfg, fmt.Errorf("PUBLIC_IP_LOOKUP must be a boolean, got %q", raw)
		}
		cfg.PublicIPLookup = v
	}

	ids, err := parseIDs(get("BOOTSTRAP_ADMIN_IDS"))
	if err != nil {
		return cfg, err
	}
	cfg.BootstrapAdminIDs = ids

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

// postgresURL assembles a DSN from the POSTGRES_* variables, or returns "" when no host is set.
func postgresURL(get func(string) string) string {
	host := get("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	port := get("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(get("POSTGRES_USER"), get("POSTGRES_PASSWORD")),
		Host:     net.JoinHostPort(host, port),
		Path:     "/" + get("POSTGRES_DB"),
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}

func parseIDs(raw string) ([]model.ExternalUserID, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []model.ExternalUserID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("BOOTSTRAP_ADMIN_IDS: invalid id %q", part)
		}
		ids = append(ids, model.ExternalUserID(id))
	}
	return ids, nil
}
