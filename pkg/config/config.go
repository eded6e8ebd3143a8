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

// Occupied-date policies for the assignment batch.
const (
	OccupiedDateSkip = "skip"
	OccupiedDateFail = "fail"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Assignment AssignmentConfig
	Exchange   ExchangeConfig
	Export     ExportConfig
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
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AssignmentConfig tunes the supervision auto-assignment batch.
// RecencyWeight rewards days since the last duty, TotalLoadWeight and
// TypeLoadWeight penalise accumulated counts; OccupiedDatePolicy decides
// whether dates that already carry supervision rows are skipped or abort
// the whole request.
type AssignmentConfig struct {
	RangeCapDays       int
	OccupiedDatePolicy string
	RecencyWeight      float64
	TotalLoadWeight    float64
	TypeLoadWeight     float64
}

// ExchangeConfig governs exchange listing cache behaviour.
type ExchangeConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// ExportConfig labels generated roster documents.
type ExportConfig struct {
	Title string
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

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	policy := strings.ToLower(v.GetString("ASSIGNMENT_OCCUPIED_DATE_POLICY"))
	if policy != OccupiedDateFail {
		policy = OccupiedDateSkip
	}
	cfg.Assignment = AssignmentConfig{
		RangeCapDays:       v.GetInt("ASSIGNMENT_RANGE_CAP_DAYS"),
		OccupiedDatePolicy: policy,
		RecencyWeight:      v.GetFloat64("ASSIGNMENT_RECENCY_WEIGHT"),
		TotalLoadWeight:    v.GetFloat64("ASSIGNMENT_TOTAL_LOAD_WEIGHT"),
		TypeLoadWeight:     v.GetFloat64("ASSIGNMENT_TYPE_LOAD_WEIGHT"),
	}

	cfg.Exchange = ExchangeConfig{
		CacheEnabled: v.GetBool("EXCHANGE_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("EXCHANGE_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Export = ExportConfig{
		Title: v.GetString("EXPORT_ROSTER_TITLE"),
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
	v.SetDefault("DB_NAME", "sma_supervision")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "sma-supervision-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ASSIGNMENT_RANGE_CAP_DAYS", 365)
	v.SetDefault("ASSIGNMENT_OCCUPIED_DATE_POLICY", OccupiedDateSkip)
	v.SetDefault("ASSIGNMENT_RECENCY_WEIGHT", 1.0)
	v.SetDefault("ASSIGNMENT_TOTAL_LOAD_WEIGHT", 5.0)
	v.SetDefault("ASSIGNMENT_TYPE_LOAD_WEIGHT", 3.0)

	v.SetDefault("EXCHANGE_CACHE_ENABLED", false)
	v.SetDefault("EXCHANGE_CACHE_TTL", "5m")

	v.SetDefault("EXPORT_ROSTER_TITLE", "Supervision Duty Roster")
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
