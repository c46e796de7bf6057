package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	CORS         CORSConfig
	Log          LogConfig
	Cache        CacheConfig
	Realtime     RealtimeConfig
	Distribution DistributionConfig
	Push         PushConfig
	Attachments  AttachmentsConfig
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

// CacheConfig tunes the inbox/dashboard cache.
type CacheConfig struct {
	Enabled      bool
	InboxTTL     time.Duration
	DashboardTTL time.Duration
}

// RealtimeConfig tunes the changefeed consumer.
type RealtimeConfig struct {
	Enabled          bool
	ResubscribeDelay time.Duration
}

// DistributionConfig bounds recipient fan-out.
type DistributionConfig struct {
	BatchSize     int
	PushWorkers   int
	PushRetries   int
	PushRetryWait time.Duration
}

// PushConfig points at the external push function.
type PushConfig struct {
	Enabled     bool
	FunctionURL string
	APIKey      string
	Timeout     time.Duration
}

// AttachmentsConfig controls signed download tokens for reply attachments.
type AttachmentsConfig struct {
	SignedURLSecret string
	SignedURLTTL    time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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

	cfg.Cache = CacheConfig{
		Enabled:      v.GetBool("ENABLE_CACHE"),
		InboxTTL:     parseDuration(v.GetString("CACHE_INBOX_TTL"), 2*time.Minute),
		DashboardTTL: parseDuration(v.GetString("CACHE_DASHBOARD_TTL"), 5*time.Minute),
	}

	cfg.Realtime = RealtimeConfig{
		Enabled:          v.GetBool("ENABLE_REALTIME"),
		ResubscribeDelay: parseDuration(v.GetString("REALTIME_RESUBSCRIBE_DELAY"), 2*time.Second),
	}

	cfg.Distribution = DistributionConfig{
		BatchSize:     v.GetInt("DISTRIBUTION_BATCH_SIZE"),
		PushWorkers:   v.GetInt("DISTRIBUTION_PUSH_WORKERS"),
		PushRetries:   v.GetInt("DISTRIBUTION_PUSH_RETRIES"),
		PushRetryWait: parseDuration(v.GetString("DISTRIBUTION_PUSH_RETRY_WAIT"), 5*time.Second),
	}

	cfg.Push = PushConfig{
		Enabled:     v.GetBool("ENABLE_PUSH"),
		FunctionURL: v.GetString("PUSH_FUNCTION_URL"),
		APIKey:      v.GetString("PUSH_API_KEY"),
		Timeout:     parseDuration(v.GetString("PUSH_TIMEOUT"), 10*time.Second),
	}

	cfg.Attachments = AttachmentsConfig{
		SignedURLSecret: v.GetString("ATTACHMENTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("ATTACHMENTS_SIGNED_URL_TTL"), 30*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "escola_comms")
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

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_INBOX_TTL", "2m")
	v.SetDefault("CACHE_DASHBOARD_TTL", "5m")

	v.SetDefault("ENABLE_REALTIME", true)
	v.SetDefault("REALTIME_RESUBSCRIBE_DELAY", "2s")

	v.SetDefault("DISTRIBUTION_BATCH_SIZE", 200)
	v.SetDefault("DISTRIBUTION_PUSH_WORKERS", 1)
	v.SetDefault("DISTRIBUTION_PUSH_RETRIES", 3)
	v.SetDefault("DISTRIBUTION_PUSH_RETRY_WAIT", "5s")

	v.SetDefault("ENABLE_PUSH", false)
	v.SetDefault("PUSH_FUNCTION_URL", "")
	v.SetDefault("PUSH_API_KEY", "")
	v.SetDefault("PUSH_TIMEOUT", "10s")

	v.SetDefault("ATTACHMENTS_SIGNED_URL_SECRET", "dev_attachments_secret")
	v.SetDefault("ATTACHMENTS_SIGNED_URL_TTL", "30m")
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
