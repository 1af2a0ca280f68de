package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Endpoints EndpointsConfig `mapstructure:"endpoints"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Recon     ReconConfig     `mapstructure:"recon"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	Host string `mapstructure:"host"`
}

// DatabaseConfig is the metadata store holding knowledge graphs and
// endpoint definitions, not a reconciliation execution target.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	SSL      string `mapstructure:"ssl"`
}

// EndpointsConfig names the endpoints reconciliation queries run against
// when a request does not override them.
type EndpointsConfig struct {
	DefaultSource string `mapstructure:"default_source"`
	DefaultTarget string `mapstructure:"default_target"`
}

type LLMConfig struct {
	Provider       string `mapstructure:"provider"`
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

type ReconConfig struct {
	Concurrency         int           `mapstructure:"concurrency"`
	QueryTimeoutSeconds int           `mapstructure:"query_timeout_seconds"`
	MaxQueryLength      int           `mapstructure:"max_query_length"`
	SchemaCacheTTL      time.Duration `mapstructure:"schema_cache_ttl"`
}

type SecurityConfig struct {
	JWTSecret          string        `mapstructure:"jwt_secret"`
	JWTExpiration      time.Duration `mapstructure:"jwt_expiration"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
	EnableAuth         bool          `mapstructure:"enable_auth"`
	EnableRateLimit    bool          `mapstructure:"enable_rate_limit"`
	// VaultKey is the AES-256 key encrypting endpoint passwords at rest.
	// Must be exactly 32 bytes. Empty disables the vault.
	VaultKey string `mapstructure:"vault_key"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set default values
	setDefaults()

	// Enable environment variable support, e.g. RECON_SERVER_PORT,
	// RECON_LLM_API_KEY, RECON_SECURITY_VAULT_KEY.
	viper.SetEnvPrefix("RECON")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use defaults and environment
			fmt.Println("Config file not found, using defaults and environment variables")
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("server.host", "0.0.0.0")

	// Metadata store defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "3306")
	viper.SetDefault("database.database", "recon_engine")
	viper.SetDefault("database.username", "recon_user")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl", "false")

	// Execution endpoint defaults
	viper.SetDefault("endpoints.default_source", "")
	viper.SetDefault("endpoints.default_target", "")

	// LLM defaults; empty provider means keyword fallback parsing only
	viper.SetDefault("llm.provider", "")
	viper.SetDefault("llm.api_key", "")
	viper.SetDefault("llm.model", "")
	viper.SetDefault("llm.base_url", "")
	viper.SetDefault("llm.timeout_seconds", 30)

	// Reconciliation defaults
	viper.SetDefault("recon.concurrency", 4)
	viper.SetDefault("recon.query_timeout_seconds", 30)
	viper.SetDefault("recon.max_query_length", 10000)
	viper.SetDefault("recon.schema_cache_ttl", "10m")

	// Security defaults
	viper.SetDefault("security.jwt_secret", "")
	viper.SetDefault("security.jwt_expiration", "24h")
	viper.SetDefault("security.rate_limit_per_minute", 60)
	viper.SetDefault("security.rate_limit_burst", 10)
	viper.SetDefault("security.enable_auth", false)
	viper.SetDefault("security.enable_rate_limit", true)
	viper.SetDefault("security.vault_key", "")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}
