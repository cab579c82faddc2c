package config

import (
	"os"
	"strconv"
	"time"
)

// DatabaseConfig holds PostgreSQL settings used when STORE_BACKEND=postgres.
type DatabaseConfig struct {
	Host               string `validate:"required"`
	Port               string `validate:"required,numeric"`
	User               string `validate:"required"`
	Password           string
	Name               string `validate:"required"`
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
}

// MinIOConfig holds object storage settings for STORAGE_BACKEND=minio.
type MinIOConfig struct {
	Endpoint  string `validate:"required"`
	AccessKey string `validate:"required"`
	SecretKey string `validate:"required"`
	Bucket    string `validate:"required"`
	UseSSL    bool
}

// S3Config holds AWS S3 settings for STORAGE_BACKEND=s3. Endpoint is only
// needed for S3-compatible services; credentials fall back to the default
// AWS chain when empty.
type S3Config struct {
	Bucket    string `validate:"required"`
	Region    string `validate:"required"`
	Endpoint  string
	AccessKey string `validate:"required_with=SecretKey"`
	SecretKey string `validate:"required_with=AccessKey"`
}

// AuthConfig controls password hashing and session tokens.
type AuthConfig struct {
	JWTSecret   string `validate:"required"`
	TokenTTLSec int    `validate:"gte=1"`
	BcryptCost  int    `validate:"gte=4,lte=31"`
	// RequireAuth puts bearer-token verification in front of every mutating
	// collection route. Off by default to keep the portal's open write access.
	RequireAuth bool
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables; flags may override a subset.
type AppConfig struct {
	AppHost  string
	Port     string `validate:"required,numeric"`
	LogLevel string `validate:"oneof=debug info warn error"`
	Timezone string

	StoreBackend string         `validate:"oneof=file postgres memory"`
	DBFile       string         `validate:"required_if=StoreBackend file"`
	Database     DatabaseConfig `validate:"-"`

	StorageBackend   string      `validate:"oneof=local minio s3"`
	UploadDir        string      `validate:"required_if=StorageBackend local"`
	UploadURLPrefix  string      `validate:"required,startswith=/"`
	PresignExpirySec int         `validate:"gte=1"`
	MinIO            MinIOConfig `validate:"-"`
	S3               S3Config    `validate:"-"`

	Auth AuthConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
func Load() *AppConfig {
	return &AppConfig{
		AppHost:  getEnv("APP_HOST", "localhost:3000"),
		Port:     getEnv("PORT", "3000"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Timezone: getEnv("TIMEZONE", "UTC"),

		StoreBackend: getEnv("STORE_BACKEND", "file"),
		DBFile:       getEnv("DB_FILE", "db.json"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
		},

		StorageBackend:   getEnv("STORAGE_BACKEND", "local"),
		UploadDir:        getEnv("UPLOAD_DIR", "uploads"),
		UploadURLPrefix:  getEnv("UPLOAD_URL_PREFIX", "/uploads"),
		PresignExpirySec: getEnvInt("PRESIGN_EXPIRY_SEC", 900),
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey: getEnv("MINIO_SECRET_KEY", ""),
			Bucket:    getEnv("MINIO_BUCKET", ""),
			UseSSL:    getEnvBool("MINIO_USE_SSL", false),
		},
		S3: S3Config{
			Bucket:    getEnv("S3_BUCKET", ""),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Endpoint:  getEnv("S3_ENDPOINT", ""),
			AccessKey: getEnv("S3_ACCESS_KEY", ""),
			SecretKey: getEnv("S3_SECRET_KEY", ""),
		},

		Auth: AuthConfig{
			// Development default only; set JWT_SECRET in any shared deployment.
			JWTSecret:   getEnv("JWT_SECRET", "secretkey"),
			TokenTTLSec: getEnvInt("TOKEN_TTL_SEC", 3600),
			BcryptCost:  getEnvInt("BCRYPT_COST", 10),
			RequireAuth: getEnvBool("REQUIRE_AUTH", false),
		},
	}
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TokenTTL returns the session token lifetime.
func (c *AppConfig) TokenTTL() time.Duration {
	return time.Duration(c.Auth.TokenTTLSec) * time.Second
}

// PresignExpiry returns how long generated download links stay valid.
func (c *AppConfig) PresignExpiry() time.Duration {
	return time.Duration(c.PresignExpirySec) * time.Second
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
