package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/noah-isme/tutordesk-api/internal/progress"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName            string
	AppEnv             string
	AppPort            string
	DatabaseURL        string
	RedisURL           string
	NATSURL            string
	NATSSubjectPrefix  string
	JWTSecret          string
	StatsCacheTTL      time.Duration
	SearchMinLength    int
	SearchLimit        int
	SubmitMarkerMode   progress.Mode
	ManualMarkerMode   progress.Mode
	AttentionSweepCron string
	AttentionStaleAge  time.Duration
	LogLevel           string
	LogFile            string
	RateLimitMax       int
	RateLimitWindow    time.Duration
	AdminBootstrapUser string
	CORSAllowOrigins   string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsProduction reports whether the service runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("TUTORDESK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	v.SetDefault("app.name", "Tutor Desk API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("nats.subject_prefix", "tutordesk")
	v.SetDefault("stats.cache_ttl", "5m")
	v.SetDefault("search.min_length", 2)
	v.SetDefault("search.limit", 20)
	v.SetDefault("ledger.submit_marker_mode", string(progress.ModeNumeric))
	v.SetDefault("ledger.manual_marker_mode", string(progress.ModeRaw))
	v.SetDefault("attention.stale_after", "336h")
	v.SetDefault("log.level", "info")
	v.SetDefault("rate_limit.max", 120)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("cors.allow_origins", "*")

	statsTTL, err := parseDuration(v, "stats.cache_ttl", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	staleAge, err := parseDuration(v, "attention.stale_after", 14*24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	window, err := parseDuration(v, "rate_limit.window", time.Minute)
	if err != nil {
		return Config{}, err
	}

	submitMode, err := progress.ParseMode(v.GetString("ledger.submit_marker_mode"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ledger.submit_marker_mode: %w", err)
	}
	manualMode, err := progress.ParseMode(v.GetString("ledger.manual_marker_mode"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ledger.manual_marker_mode: %w", err)
	}

	cfg := Config{
		AppName:            v.GetString("app.name"),
		AppEnv:             v.GetString("app.env"),
		AppPort:            v.GetString("app.port"),
		DatabaseURL:        v.GetString("database.url"),
		RedisURL:           v.GetString("redis.url"),
		NATSURL:            v.GetString("nats.url"),
		NATSSubjectPrefix:  v.GetString("nats.subject_prefix"),
		JWTSecret:          v.GetString("jwt.secret"),
		StatsCacheTTL:      statsTTL,
		SearchMinLength:    v.GetInt("search.min_length"),
		SearchLimit:        v.GetInt("search.limit"),
		SubmitMarkerMode:   submitMode,
		ManualMarkerMode:   manualMode,
		AttentionSweepCron: strings.TrimSpace(v.GetString("attention.sweep_cron")),
		AttentionStaleAge:  staleAge,
		LogLevel:           strings.ToLower(v.GetString("log.level")),
		LogFile:            v.GetString("log.file"),
		RateLimitMax:       v.GetInt("rate_limit.max"),
		RateLimitWindow:    window,
		AdminBootstrapUser: strings.TrimSpace(v.GetString("admin.bootstrap_username")),
		CORSAllowOrigins:   v.GetString("cors.allow_origins"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.SearchMinLength <= 0 {
		cfg.SearchMinLength = 2
	}

	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 20
	}

	if cfg.RateLimitMax <= 0 {
		cfg.RateLimitMax = 120
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		return fallback, nil
	}

	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}

	return value, nil
}
