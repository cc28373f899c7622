package config

import (
	"errors"
	"strconv"
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

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Finance  FinanceConfig
	Reminder ReminderConfig
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

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// FinanceConfig carries the enrollment-finance workflow defaults. These are
// also the documented fallback values served by the config endpoint when the
// configuration store is unavailable.
type FinanceConfig struct {
	AutoGenerateBill       bool
	DefaultPaymentDays     int
	ReminderDays           []int
	OverdueGraceDays       int
	RequirePaymentToEnroll bool
	OverdueSweepInterval   time.Duration
	StatsCacheTTL          time.Duration
	ConfigCacheTTL         time.Duration
}

// ReminderConfig tunes the notification dispatch workers.
type ReminderConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
	RetryDelay        time.Duration
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

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Finance = FinanceConfig{
		AutoGenerateBill:       v.GetBool("FINANCE_AUTO_GENERATE_BILL"),
		DefaultPaymentDays:     v.GetInt("FINANCE_DEFAULT_PAYMENT_DAYS"),
		ReminderDays:           splitInts(v.GetString("FINANCE_REMINDER_DAYS")),
		OverdueGraceDays:       v.GetInt("FINANCE_OVERDUE_GRACE_DAYS"),
		RequirePaymentToEnroll: v.GetBool("FINANCE_REQUIRE_PAYMENT_BEFORE_ENROLLMENT"),
		OverdueSweepInterval:   parseDuration(v.GetString("FINANCE_OVERDUE_SWEEP_INTERVAL"), time.Hour),
		StatsCacheTTL:          parseDuration(v.GetString("FINANCE_STATS_CACHE_TTL"), 5*time.Minute),
		ConfigCacheTTL:         parseDuration(v.GetString("FINANCE_CONFIG_CACHE_TTL"), 24*time.Hour),
	}

	cfg.Reminder = ReminderConfig{
		WorkerConcurrency: v.GetInt("REMINDER_WORKER_CONCURRENCY"),
		WorkerRetries:     v.GetInt("REMINDER_WORKER_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("REMINDER_RETRY_DELAY"), 5*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "enrollment_finance")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("FINANCE_AUTO_GENERATE_BILL", true)
	v.SetDefault("FINANCE_DEFAULT_PAYMENT_DAYS", 7)
	v.SetDefault("FINANCE_REMINDER_DAYS", "7,3,1")
	v.SetDefault("FINANCE_OVERDUE_GRACE_DAYS", 3)
	v.SetDefault("FINANCE_REQUIRE_PAYMENT_BEFORE_ENROLLMENT", true)
	v.SetDefault("FINANCE_OVERDUE_SWEEP_INTERVAL", "1h")
	v.SetDefault("FINANCE_STATS_CACHE_TTL", "5m")
	v.SetDefault("FINANCE_CONFIG_CACHE_TTL", "24h")

	v.SetDefault("REMINDER_WORKER_CONCURRENCY", 2)
	v.SetDefault("REMINDER_WORKER_RETRIES", 3)
	v.SetDefault("REMINDER_RETRY_DELAY", "5s")
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

func splitInts(raw string) []int {
	var result []int
	for _, part := range splitAndTrim(raw) {
		if n, err := strconv.Atoi(part); err == nil && n >= 0 {
			result = append(result, n)
		}
	}
	return result
}
