package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Event source kinds.
const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Ingest policies.
const (
	IngestSkip  = "skip"
	IngestAbort = "abort"
)

type Config struct {
	Env       string `validate:"oneof=development production test"`
	Port      int    `validate:"min=1,max=65535"`
	APIPrefix string

	Events    EventsConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	CORS      CORSConfig
	Log       LogConfig
	Dashboard DashboardConfig
	Warmup    WarmupConfig
}

// EventsConfig selects where progress events are loaded from.
type EventsConfig struct {
	Source       string `validate:"oneof=csv postgres"`
	CSVPath      string `validate:"required_if=Source csv"`
	Table        string `validate:"required_if=Source postgres"`
	IngestPolicy string `validate:"oneof=skip abort"`
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DashboardConfig governs recomputation and memoization of dashboard payloads.
type DashboardConfig struct {
	CacheEnabled     bool
	CacheTTL         time.Duration
	RecomputeWorkers int    `validate:"min=1"`
	ItemLabelMode    string `validate:"oneof=position ordinal"`
}

// WarmupConfig controls pre-computation of default dashboards after load.
type WarmupConfig struct {
	Enabled bool
	Workers int `validate:"min=1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Events = EventsConfig{
		Source:       strings.ToLower(v.GetString("EVENTS_SOURCE")),
		CSVPath:      v.GetString("EVENTS_CSV_PATH"),
		Table:        v.GetString("EVENTS_TABLE"),
		IngestPolicy: strings.ToLower(v.GetString("INGEST_POLICY")),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Dashboard = DashboardConfig{
		CacheEnabled:     v.GetBool("ENABLE_DASHBOARD_CACHE"),
		CacheTTL:         parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
		RecomputeWorkers: v.GetInt("RECOMPUTE_WORKERS"),
		ItemLabelMode:    strings.ToLower(v.GetString("ITEM_LABEL_MODE")),
	}

	cfg.Warmup = WarmupConfig{
		Enabled: v.GetBool("ENABLE_WARMUP"),
		Workers: v.GetInt("WARMUP_WORKERS"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("EVENTS_SOURCE", SourceCSV)
	v.SetDefault("EVENTS_CSV_PATH", "data/module_data.csv")
	v.SetDefault("EVENTS_TABLE", "module_progress_raw")
	v.SetDefault("INGEST_POLICY", IngestSkip)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "course_progress")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_DASHBOARD_CACHE", false)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
	v.SetDefault("RECOMPUTE_WORKERS", 4)
	v.SetDefault("ITEM_LABEL_MODE", "position")

	v.SetDefault("ENABLE_WARMUP", false)
	v.SetDefault("WARMUP_WORKERS", 2)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
