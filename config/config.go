// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Telegram struct {
		Token string
	}
	DB struct {
		Host         string
		Port         string
		User         string
		Password     string
		DBName       string
		SSLMode      string
		MaxOpenConns int
		MaxIdleConns int
		ConnLifetime time.Duration
	}
	LocalStore struct {
		// Path of the sqlite file backing the local durable store. Empty
		// keeps the store in memory only.
		Path string
	}
	Sync struct {
		ProbeInterval time.Duration
		ProbeTimeout  time.Duration
	}
	GPT struct {
		APIKey string
		Model  string
	}
	Server struct {
		Port      string
		JWTSecret string
		// AllowedOrigins lists the browser origins allowed to open the
		// websocket. Empty allows the server's own host only.
		AllowedOrigins []string
	}
	ShutdownTimeout time.Duration
}

// Load loads the configuration
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")
	v.AddConfigPath("$HOME/.nutrisync")

	setDefaults(v)

	// Enable environment variables to override config values
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		return fromEnv(), nil
	}

	// Process any ${ENV_VAR} syntax in the config values
	for _, key := range v.AllKeys() {
		value := v.GetString(key)
		if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
			envVar := strings.TrimPrefix(strings.TrimSuffix(value, "}"), "${")
			if envValue := os.Getenv(envVar); envValue != "" {
				v.Set(key, envValue)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ShutdownTimeout", 10*time.Second)
	v.SetDefault("GPT.Model", "gpt-4o-mini")
	v.SetDefault("Server.Port", "8080")
	v.SetDefault("DB.Port", "5432")
	v.SetDefault("DB.SSLMode", "disable")
	v.SetDefault("DB.MaxOpenConns", 20)
	v.SetDefault("DB.MaxIdleConns", 10)
	v.SetDefault("DB.ConnLifetime", 5*time.Minute)
	v.SetDefault("LocalStore.Path", "nutrisync-local.db")
	v.SetDefault("Sync.ProbeInterval", 15*time.Second)
	v.SetDefault("Sync.ProbeTimeout", 3*time.Second)
}

// fromEnv builds the config purely from environment variables. Used when no
// config file exists.
func fromEnv() *Config {
	cfg := &Config{}

	cfg.Telegram.Token = os.Getenv("TELEGRAM_TOKEN")
	cfg.DB.Host = getEnvOr("DB_HOST", "localhost")
	cfg.DB.Port = getEnvOr("DB_PORT", "5432")
	cfg.DB.User = getEnvOr("DB_USER", "postgres")
	cfg.DB.Password = getEnvOr("DB_PASSWORD", "postgres")
	cfg.DB.DBName = getEnvOr("DB_NAME", "nutrisync")
	cfg.DB.SSLMode = getEnvOr("DB_SSL_MODE", "disable")
	cfg.DB.MaxOpenConns = 20
	cfg.DB.MaxIdleConns = 10
	cfg.DB.ConnLifetime = 5 * time.Minute
	cfg.LocalStore.Path = getEnvOr("LOCAL_STORE_PATH", "nutrisync-local.db")
	cfg.Sync.ProbeInterval = getDurationOr("SYNC_PROBE_INTERVAL", 15*time.Second)
	cfg.Sync.ProbeTimeout = getDurationOr("SYNC_PROBE_TIMEOUT", 3*time.Second)
	cfg.GPT.APIKey = os.Getenv("GPT_API_KEY")
	cfg.GPT.Model = getEnvOr("GPT_MODEL", "gpt-4o-mini")
	cfg.Server.Port = getEnvOr("SERVER_PORT", "8080")
	cfg.Server.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.Server.AllowedOrigins = getListOr("SERVER_ALLOWED_ORIGINS", nil)
	cfg.ShutdownTimeout = getDurationOr("SHUTDOWN_TIMEOUT", 10*time.Second)

	return cfg
}

// Validate reports configuration that the process cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Server.JWTSecret == "" {
		missing = append(missing, "Server.JWTSecret")
	}
	if c.DB.Host == "" {
		missing = append(missing, "DB.Host")
	}
	if c.Sync.ProbeInterval <= 0 {
		missing = append(missing, "Sync.ProbeInterval")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Helper function to get environment variable with default value
func getEnvOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOr(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getListOr splits a comma separated variable, dropping empty items.
func getListOr(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
