package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Server
	Port                      int    `yaml:"port"`
	APIKey                    string `yaml:"api_key"`
	CORSAllowOrigin           string `yaml:"cors_allow_origin"`
	DefaultCorrelationMinutes int    `yaml:"default_correlation_minutes"`
	ServiceName               string `yaml:"service_name"`

	// Stock exchange (secrets normally come from .env)
	ExchangeBaseURL  string `yaml:"exchange_base_url"`
	ExchangeAPIKey   string `yaml:"exchange_api_key"`
	ExchangeTokenURL string `yaml:"exchange_token_url"`
	AuthEmail        string `yaml:"auth_email"`
	AuthPassword     string `yaml:"auth_password"`
	AuthClientID     string `yaml:"auth_client_id"`
	AuthClientSecret string `yaml:"auth_client_secret"`

	// Data source behaviour
	UseMockData  bool `yaml:"use_mock_data"`
	MockFallback bool `yaml:"mock_fallback"`

	// Circuit breaker (0 threshold disables)
	BreakerFailureThreshold int `yaml:"breaker_failure_threshold"`
	BreakerCooldownSeconds  int `yaml:"breaker_cooldown_seconds"`

	// Cache
	CacheTTLSeconds      int    `yaml:"cache_ttl_seconds"`
	PriceCacheTTLSeconds int    `yaml:"price_cache_ttl_seconds"`
	RedisAddr            string `yaml:"redis_addr"`
	RedisPassword        string `yaml:"redis_password"`
	RedisDB              int    `yaml:"redis_db"`

	// Observation archive
	ArchiveEnabled        bool   `yaml:"archive_enabled"`
	ArchiveRetentionHours int    `yaml:"archive_retention_hours"`
	DBHost                string `yaml:"db_host"`
	DBPort                int    `yaml:"db_port"`
	DBName                string `yaml:"db_name"`
	DBUser                string `yaml:"db_user"`
	DBPassword            string `yaml:"db_password"`

	// Scheduling
	TokenRefreshCron string `yaml:"token_refresh_cron"`
	ArchivePruneCron string `yaml:"archive_prune_cron"`

	// Alerts
	WebhookURL string `yaml:"webhook_url"`
}

func defaults() *Config {
	return &Config{
		Port:                      3000,
		CORSAllowOrigin:           "*",
		DefaultCorrelationMinutes: 60,
		ServiceName:               "StockAggregator",

		ExchangeBaseURL: "http://20.244.56.144/evaluation-service",

		MockFallback: true,

		BreakerFailureThreshold: 5,
		BreakerCooldownSeconds:  30,

		CacheTTLSeconds:      60,
		PriceCacheTTLSeconds: 10,

		ArchiveRetentionHours: 24,
		DBHost:                "localhost",
		DBPort:                5432,
		DBName:                "stock_aggregator",

		TokenRefreshCron: "*/30 * * * *",
		ArchivePruneCron: "15 * * * *",
	}
}

// Load builds the configuration from defaults, an optional YAML file named
// by CONFIG_FILE, and the environment (including .env), in that order.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.Port = envInt("PORT", cfg.Port)
	cfg.APIKey = envStr("API_KEY", cfg.APIKey)
	cfg.CORSAllowOrigin = envStr("CORS_ALLOW_ORIGIN", cfg.CORSAllowOrigin)
	cfg.DefaultCorrelationMinutes = envInt("DEFAULT_CORRELATION_MINUTES", cfg.DefaultCorrelationMinutes)
	cfg.ServiceName = envStr("SERVICE_NAME", cfg.ServiceName)

	cfg.ExchangeBaseURL = strings.TrimRight(envStr("STOCK_EXCHANGE_BASE_URL", cfg.ExchangeBaseURL), "/")
	cfg.ExchangeAPIKey = envStr("STOCK_EXCHANGE_API_KEY", cfg.ExchangeAPIKey)
	cfg.ExchangeTokenURL = envStr("STOCK_EXCHANGE_TOKEN_URL", cfg.ExchangeTokenURL)
	cfg.AuthEmail = envStr("AUTH_EMAIL", cfg.AuthEmail)
	cfg.AuthPassword = envStr("AUTH_PASSWORD", cfg.AuthPassword)
	cfg.AuthClientID = envStr("AUTH_CLIENT_ID", cfg.AuthClientID)
	cfg.AuthClientSecret = envStr("AUTH_CLIENT_SECRET", cfg.AuthClientSecret)

	cfg.UseMockData = envBool("USE_MOCK_DATA", cfg.UseMockData)
	cfg.MockFallback = envBool("MOCK_FALLBACK", cfg.MockFallback)
	cfg.BreakerFailureThreshold = envInt("BREAKER_FAILURE_THRESHOLD", cfg.BreakerFailureThreshold)
	cfg.BreakerCooldownSeconds = envInt("BREAKER_COOLDOWN_SECONDS", cfg.BreakerCooldownSeconds)

	cfg.CacheTTLSeconds = envInt("CACHE_TTL_SECONDS", cfg.CacheTTLSeconds)
	cfg.PriceCacheTTLSeconds = envInt("PRICE_CACHE_TTL_SECONDS", cfg.PriceCacheTTLSeconds)
	cfg.RedisAddr = envStr("REDIS_ADDR", cfg.RedisAddr)
	cfg.RedisPassword = envStr("REDIS_PASSWORD", cfg.RedisPassword)
	cfg.RedisDB = envInt("REDIS_DB", cfg.RedisDB)

	cfg.ArchiveEnabled = envBool("ARCHIVE_ENABLED", cfg.ArchiveEnabled)
	cfg.ArchiveRetentionHours = envInt("ARCHIVE_RETENTION_HOURS", cfg.ArchiveRetentionHours)
	cfg.DBHost = envStr("DB_HOST", cfg.DBHost)
	cfg.DBPort = envInt("DB_PORT", cfg.DBPort)
	cfg.DBName = envStr("DB_NAME", cfg.DBName)
	cfg.DBUser = envStr("DB_USER", cfg.DBUser)
	cfg.DBPassword = envStr("DB_PASSWORD", cfg.DBPassword)

	cfg.TokenRefreshCron = envStr("TOKEN_REFRESH_CRON", cfg.TokenRefreshCron)
	cfg.ArchivePruneCron = envStr("ARCHIVE_PRUNE_CRON", cfg.ArchivePruneCron)

	cfg.WebhookURL = envStr("WEBHOOK_URL", cfg.WebhookURL)

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT %d out of range", c.Port))
	}
	if c.DefaultCorrelationMinutes <= 0 {
		errs = append(errs, "DEFAULT_CORRELATION_MINUTES must be positive")
	}
	if c.CacheTTLSeconds < 0 || c.PriceCacheTTLSeconds < 0 {
		errs = append(errs, "cache TTLs must not be negative")
	}
	if c.BreakerFailureThreshold < 0 || c.BreakerCooldownSeconds < 0 {
		errs = append(errs, "breaker settings must not be negative")
	}
	if !c.UseMockData && c.ExchangeBaseURL == "" {
		errs = append(errs, "STOCK_EXCHANGE_BASE_URL is required unless USE_MOCK_DATA is set")
	}
	if c.ArchiveEnabled && c.DBUser == "" {
		errs = append(errs, "DB_USER is required when ARCHIVE_ENABLED is set")
	}
	if c.ArchiveEnabled && c.ArchiveRetentionHours <= 0 {
		errs = append(errs, "ARCHIVE_RETENTION_HOURS must be positive")
	}

	if !c.UseMockData && c.ExchangeAPIKey == "" && !c.HasCredentials() {
		fmt.Println("[WARN] No STOCK_EXCHANGE_API_KEY or auth credentials; upstream requests are unauthenticated")
	}
	if !c.UseMockData && !c.MockFallback {
		fmt.Println("[WARN] MOCK_FALLBACK disabled; upstream outages surface as 502 responses")
	}
	if c.APIKey == "" {
		fmt.Println("[WARN] API_KEY not set; REST API has no authentication")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// HasCredentials reports whether a bearer token can be requested upstream.
func (c *Config) HasCredentials() bool {
	if c.ExchangeTokenURL == "" {
		return false
	}
	return (c.AuthEmail != "" && c.AuthPassword != "") || (c.AuthClientID != "" && c.AuthClientSecret != "")
}

func (c *Config) Print() {
	fmt.Println("=== Stock Price Aggregation Service Configuration ===")

	if c.UseMockData {
		fmt.Println("════════════════════════════════════════")
		fmt.Println("  MOCK DATA MODE ENABLED")
		fmt.Println("  No upstream requests will be made")
		fmt.Println("════════════════════════════════════════")
	} else {
		fmt.Println("  LIVE DATA MODE")
	}

	fmt.Println("--------------------------------------")
	fmt.Printf("Port: %d\n", c.Port)
	fmt.Printf("Exchange: %s\n", c.ExchangeBaseURL)
	fmt.Printf("Exchange Auth: %s\n", c.authLabel())
	fmt.Printf("Mock Fallback: %v\n", c.MockFallback)
	if c.BreakerFailureThreshold > 0 {
		fmt.Printf("Circuit Breaker: %d failures, %ds cooldown\n", c.BreakerFailureThreshold, c.BreakerCooldownSeconds)
	} else {
		fmt.Println("Circuit Breaker: disabled")
	}
	fmt.Printf("Default Correlation Window: %d min\n", c.DefaultCorrelationMinutes)
	fmt.Println("--------------------------------------")
	fmt.Println("Cache:")
	fmt.Printf("  Backend: %s\n", boolLabel(c.RedisAddr != "", "redis ("+c.RedisAddr+")", "memory"))
	fmt.Printf("  Stocks TTL: %ds\n", c.CacheTTLSeconds)
	fmt.Printf("  Price TTL: %ds\n", c.PriceCacheTTLSeconds)
	fmt.Println("--------------------------------------")
	fmt.Println("Archive:")
	if c.ArchiveEnabled {
		fmt.Printf("  Postgres: %s:%d/%s\n", c.DBHost, c.DBPort, c.DBName)
		fmt.Printf("  Retention: %d hours (prune: %s)\n", c.ArchiveRetentionHours, c.ArchivePruneCron)
	} else {
		fmt.Println("  disabled")
	}
	fmt.Printf("Alerts Webhook: %s\n", boolLabel(c.WebhookURL != "", "configured", "not set"))
	fmt.Println("======================================")
}

func (c *Config) authLabel() string {
	switch {
	case c.ExchangeAPIKey != "":
		return "api key"
	case c.HasCredentials():
		return "bearer token (refresh: " + c.TokenRefreshCron + ")"
	default:
		return "none"
	}
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(v)
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
