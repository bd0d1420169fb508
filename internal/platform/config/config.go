package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr                string
	DatabaseURL         string
	JWTSecret           string
	ConfigEncryptionKey string
	Environment         string
	AppBaseURL          string
	SessionTTL          time.Duration

	SeedWorkspaceName string
	SeedAdminEmail    string
	SeedAdminName     string
	SeedAdminPassword string

	OAuthClientID     string
	OAuthClientSecret string
	OAuthTenant       string
	OAuthRedirectURL  string
	OAuthAuthorizeURL string
	OAuthTokenURL     string

	DocStoreBaseURL    string
	DocStoreBaseFolder string

	RunMigrations      bool
	RunSeed            bool
	MaxBodyBytes       int64
	WeeklyDigestEvery  time.Duration
	MetricsEnabled     bool
	ImportPreviewLimit int
}

func Load() Config {
	return Config{
		Addr:                getEnv("APP_ADDR", ":8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		ConfigEncryptionKey: getEnv("CONFIG_ENCRYPTION_KEY", ""),
		Environment:         getEnv("APP_ENV", "development"),
		AppBaseURL:          getEnv("APP_BASE_URL", "http://localhost:8080"),
		SessionTTL:          getEnvDuration("SESSION_TTL", 7*24*time.Hour),
		SeedWorkspaceName:   getEnv("SEED_WORKSPACE_NAME", "Default Workspace"),
		SeedAdminEmail:      getEnv("SEED_ADMIN_EMAIL", ""),
		SeedAdminName:       getEnv("SEED_ADMIN_NAME", "Administrator"),
		SeedAdminPassword:   getEnv("SEED_ADMIN_PASSWORD", ""),
		OAuthClientID:       getEnv("OAUTH_CLIENT_ID", ""),
		OAuthClientSecret:   getEnv("OAUTH_CLIENT_SECRET", ""),
		OAuthTenant:         getEnv("OAUTH_TENANT", "common"),
		OAuthRedirectURL:    getEnv("OAUTH_REDIRECT_URL", ""),
		OAuthAuthorizeURL:   getEnv("OAUTH_AUTHORIZE_URL", ""),
		OAuthTokenURL:       getEnv("OAUTH_TOKEN_URL", ""),
		DocStoreBaseURL:     getEnv("DOCSTORE_BASE_URL", "https://graph.microsoft.com/v1.0"),
		DocStoreBaseFolder:  getEnv("DOCSTORE_BASE_FOLDER", "ComplianceEvidence"),
		RunMigrations:       getEnvBool("RUN_MIGRATIONS", true),
		RunSeed:             getEnvBool("RUN_SEED", true),
		MaxBodyBytes:        int64(getEnvInt("MAX_BODY_BYTES", 5242880)),
		WeeklyDigestEvery:   getEnvDuration("WEEKLY_DIGEST_INTERVAL", 7*24*time.Hour),
		MetricsEnabled:      getEnvBool("METRICS_ENABLED", true),
		ImportPreviewLimit:  getEnvInt("IMPORT_PREVIEW_LIMIT", 100),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Environment == "production" {
		if strings.TrimSpace(c.JWTSecret) == "" {
			return fmt.Errorf("JWT_SECRET must be set to a strong value in production")
		}
		if strings.TrimSpace(c.ConfigEncryptionKey) == "" {
			return fmt.Errorf("CONFIG_ENCRYPTION_KEY must be set in production for encryption at rest")
		}
		if c.RunSeed && strings.TrimSpace(c.SeedAdminPassword) == "" {
			return fmt.Errorf("SEED_ADMIN_PASSWORD must be changed or RUN_SEED disabled in production")
		}
	}
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.ImportPreviewLimit <= 0 {
		return fmt.Errorf("IMPORT_PREVIEW_LIMIT must be positive")
	}
	return nil
}
