package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // quota day zones on hosts without zoneinfo

	"github.com/joho/godotenv"
)

// DevelopmentJWTSecret is used when JWT_SECRET is unset outside production
const DevelopmentJWTSecret = "development-only-secret-change-me"

// Quota backends
const (
	QuotaBackendRedis    = "redis"
	QuotaBackendPostgres = "postgres"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Session       SessionConfig
	Chat          ChatConfig
	Providers     ProvidersConfig
	WeChat        WeChatConfig
	Audit         AuditConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	AutoMigrate      bool
}

// RedisConfig holds the token/quota store connection settings.
// URL (from REDIS_URL) takes precedence over Addr/Password/DB.
type RedisConfig struct {
	URL         string
	Addr        string
	Password    string
	DB          int
	PoolSize    int
	DialTimeout time.Duration
}

// SessionConfig holds credential issuance settings
type SessionConfig struct {
	JWTSecret        string
	TokenTTL         time.Duration
	RefreshThreshold time.Duration
}

// ChatConfig holds chat gating settings
type ChatConfig struct {
	DailyLimit         int
	AllowedRoles       []string
	LegacyRoleFailOpen bool
	QuotaBackend       string // redis or postgres
	QuotaTimezone      string
	UpstreamTimeout    time.Duration
	DefaultProvider    string
}

// ProvidersConfig holds upstream chat provider configurations
type ProvidersConfig struct {
	Dify   DifyConfig
	OpenAI OpenAIConfig
}

// DifyConfig holds Dify provider configuration
type DifyConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// OpenAIConfig holds the optional OpenAI-compatible provider configuration.
// The provider is registered only when APIKey is set.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// WeChatConfig holds mini-program credentials for the code exchange
type WeChatConfig struct {
	AppID     string
	AppSecret string
	BaseURL   string
	Timeout   time.Duration
}

// AuditConfig controls the asynchronous audit writer
type AuditConfig struct {
	BufferSize int
	Workers    int
}

// CORSConfig holds allowed origins for browser clients
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
	MetricsPath    string
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	environment := getEnv("ENVIRONMENT", "development")

	cfg := &Config{
		Environment: environment,
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 45*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			TLS: struct {
				Enabled  bool
				CertFile string
				KeyFile  string
			}{
				Enabled:  getEnvAsBool("TLS_ENABLED", false),
				CertFile: getEnv("TLS_CERT_FILE", "certs/cert.pem"),
				KeyFile:  getEnv("TLS_KEY_FILE", "certs/key.pem"),
			},
		},
		Database: loadDatabaseConfig(),
		Redis: RedisConfig{
			URL:         getEnv("REDIS_URL", ""),
			Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 20),
			DialTimeout: getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		},
		Session: SessionConfig{
			JWTSecret:        getEnv("JWT_SECRET", defaultJWTSecret(environment)),
			TokenTTL:         getEnvAsDuration("TOKEN_TTL", 720*time.Hour),
			RefreshThreshold: getEnvAsDuration("TOKEN_REFRESH_THRESHOLD", 24*time.Hour),
		},
		Chat: ChatConfig{
			DailyLimit:         getEnvAsInt("DAILY_CHAT_LIMIT", 100),
			AllowedRoles:       getEnvAsList("ALLOWED_CHAT_ROLES", []string{"user", "vip"}),
			LegacyRoleFailOpen: getEnvAsBool("CHAT_LEGACY_ROLE_FAIL_OPEN", true),
			QuotaBackend:       getEnv("CHAT_QUOTA_BACKEND", QuotaBackendRedis),
			QuotaTimezone:      getEnv("CHAT_QUOTA_TIMEZONE", "UTC"),
			UpstreamTimeout:    getEnvAsDuration("CHAT_UPSTREAM_TIMEOUT", 30*time.Second),
			DefaultProvider:    getEnv("CHAT_PROVIDER", "dify"),
		},
		Providers: ProvidersConfig{
			Dify: DifyConfig{
				APIKey:  getEnv("DIFY_API_KEY", ""),
				BaseURL: getEnv("DIFY_BASE_URL", "https://api.dify.ai/v1"),
				Timeout: getEnvAsDuration("DIFY_TIMEOUT", 30*time.Second),
			},
			OpenAI: OpenAIConfig{
				APIKey:  getEnv("OPENAI_API_KEY", ""),
				BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
				Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
				Timeout: getEnvAsDuration("OPENAI_TIMEOUT", 30*time.Second),
			},
		},
		WeChat: WeChatConfig{
			AppID:     getEnv("WECHAT_APP_ID", ""),
			AppSecret: getEnv("WECHAT_APP_SECRET", ""),
			BaseURL:   getEnv("WECHAT_BASE_URL", "https://api.weixin.qq.com"),
			Timeout:   getEnvAsDuration("WECHAT_TIMEOUT", 10*time.Second),
		},
		Audit: AuditConfig{
			BufferSize: getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			Workers:    getEnvAsInt("AUDIT_WORKERS", 2),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
			MetricsPath:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	// Database validation (DATABASE_URL or DB_* vars)
	if c.Database.ConnectionString == "" && c.Database.Host == "" {
		return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
	}
	if c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	if c.Redis.URL == "" && c.Redis.Addr == "" {
		return fmt.Errorf("redis configuration required: set REDIS_URL or REDIS_ADDR")
	}

	if c.Session.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Session.TokenTTL <= 0 {
		return fmt.Errorf("token TTL must be positive")
	}
	if c.Session.RefreshThreshold < 0 || c.Session.RefreshThreshold >= c.Session.TokenTTL {
		return fmt.Errorf("token refresh threshold must be between 0 and the token TTL")
	}

	if c.Chat.DailyLimit < 0 {
		return fmt.Errorf("daily chat limit cannot be negative")
	}
	if c.Chat.QuotaBackend != QuotaBackendRedis && c.Chat.QuotaBackend != QuotaBackendPostgres {
		return fmt.Errorf("unknown quota backend %q", c.Chat.QuotaBackend)
	}
	if _, err := c.Chat.Location(); err != nil {
		return fmt.Errorf("invalid quota timezone: %w", err)
	}
	if c.Chat.UpstreamTimeout <= 0 {
		return fmt.Errorf("upstream timeout must be positive")
	}

	if c.IsProduction() {
		if c.Session.JWTSecret == DevelopmentJWTSecret || len(c.Session.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be set to at least 32 characters in production")
		}
		if c.WeChat.AppID == "" || c.WeChat.AppSecret == "" {
			return fmt.Errorf("wechat app id and secret are required in production")
		}
		switch c.Chat.DefaultProvider {
		case "openai":
			if c.Providers.OpenAI.APIKey == "" {
				return fmt.Errorf("openai API key is required when it is the default provider")
			}
		default:
			if c.Providers.Dify.APIKey == "" {
				return fmt.Errorf("dify API key is required in production")
			}
		}
	}

	if c.Audit.BufferSize <= 0 || c.Audit.Workers <= 0 {
		return fmt.Errorf("audit buffer size and workers must be positive")
	}

	// Observability validation
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Location resolves the time zone used to compute quota days
func (c *ChatConfig) Location() (*time.Location, error) {
	if c.QuotaTimezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.QuotaTimezone)
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password). Parses ConnectionString when set.
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadDatabaseConfig loads database config from DATABASE_URL or DB_* env vars
func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		AutoMigrate:     getEnvAsBool("DB_AUTO_MIGRATE", true),
	}
	if dbURL := getEnv("DATABASE_URL", ""); dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}
	cfg.Host = getEnv("DB_HOST", "localhost")
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "minichat")
	cfg.Password = getEnv("DB_PASSWORD", "minichat")
	cfg.Database = getEnv("DB_NAME", "minichat")
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func defaultJWTSecret(environment string) string {
	if environment == "production" || environment == "prod" {
		return ""
	}
	return DevelopmentJWTSecret
}

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 3000)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 3000
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma-separated variable, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			values = append(values, part)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
