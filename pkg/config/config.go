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

	ShutdownTimeout time.Duration

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Assets   AssetsConfig
	Exports  ExportsConfig
	Cards    CardsConfig
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
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	SingleSession     bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AssetsConfig configures the object store holding logos, designs and photos.
type AssetsConfig struct {
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Region           string
	Bucket           string
	AutoCreateBucket bool
	PresignTTL       time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	ClamdAddr        string
}

// ExportsConfig controls where generated card sheets are written and how long links live.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

// CardsConfig tunes card previews and batch printing.
type CardsConfig struct {
	PreviewCacheTTL   time.Duration
	WorkerConcurrency int
	WorkerRetries     int
	RetryDelay        time.Duration
	MaxBatchSize      int
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.ShutdownTimeout = parseDuration(v.GetString("SHUTDOWN_TIMEOUT"), 10*time.Second)

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
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		SingleSession:     v.GetBool("JWT_SINGLE_SESSION"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	maxAssetSize := v.GetInt64("ASSETS_MAX_FILE_SIZE")
	if maxAssetSize <= 0 {
		maxAssetSize = 5 * 1024 * 1024
	}
	cfg.Assets = AssetsConfig{
		Endpoint:         v.GetString("MINIO_ENDPOINT"),
		AccessKeyID:      v.GetString("MINIO_ACCESS_KEY"),
		SecretAccessKey:  v.GetString("MINIO_SECRET_KEY"),
		UseSSL:           v.GetBool("MINIO_USE_SSL"),
		Region:           v.GetString("MINIO_REGION"),
		Bucket:           v.GetString("MINIO_BUCKET"),
		AutoCreateBucket: v.GetBool("MINIO_AUTO_CREATE_BUCKET"),
		PresignTTL:       parseDuration(v.GetString("ASSETS_PRESIGN_TTL"), 15*time.Minute),
		MaxFileSizeBytes: maxAssetSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("ASSETS_ALLOWED_MIME_TYPES")),
		ClamdAddr:        v.GetString("CLAMD_ADDR"),
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.Cards = CardsConfig{
		PreviewCacheTTL:   parseDuration(v.GetString("CARD_PREVIEW_CACHE_TTL"), 10*time.Minute),
		WorkerConcurrency: v.GetInt("CARD_BATCH_WORKERS"),
		WorkerRetries:     v.GetInt("CARD_BATCH_RETRIES"),
		RetryDelay:        parseDuration(v.GetString("CARD_BATCH_RETRY_DELAY"), 2*time.Second),
		MaxBatchSize:      v.GetInt("CARD_BATCH_MAX_SIZE"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_idcards")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "school-idcard-api")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_SINGLE_SESSION", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	v.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
	v.SetDefault("MINIO_SECRET_KEY", "minioadmin")
	v.SetDefault("MINIO_USE_SSL", false)
	v.SetDefault("MINIO_REGION", "us-east-1")
	v.SetDefault("MINIO_BUCKET", "idcard-assets")
	v.SetDefault("MINIO_AUTO_CREATE_BUCKET", true)
	v.SetDefault("ASSETS_PRESIGN_TTL", "15m")
	v.SetDefault("ASSETS_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("ASSETS_ALLOWED_MIME_TYPES", "image/png,image/jpeg,image/webp")
	v.SetDefault("CLAMD_ADDR", "")

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")

	v.SetDefault("CARD_PREVIEW_CACHE_TTL", "10m")
	v.SetDefault("CARD_BATCH_WORKERS", 2)
	v.SetDefault("CARD_BATCH_RETRIES", 3)
	v.SetDefault("CARD_BATCH_RETRY_DELAY", "2s")
	v.SetDefault("CARD_BATCH_MAX_SIZE", 2000)
}

func isMissingFile(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "no such file")
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
