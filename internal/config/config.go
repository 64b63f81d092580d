package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Storage  StorageConfig  `json:"storage"`
	Stripe   StripeConfig   `json:"stripe"`
	AI       AIConfig       `json:"ai"`
	Quota    QuotaConfig    `json:"quota"`
}

type ServerConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	JWTSecret string `json:"jwt_secret"`
}

type DatabaseConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Password     string `json:"password"`
	Database     string `json:"database"`
	SSLMode      string `json:"sslmode"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

type StorageConfig struct {
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint,omitempty"` // non-empty for S3-compatible stores in dev
	PublicURL string `json:"public_url"`         // base URL for serving stored objects
}

type StripeConfig struct {
	SecretKey     string `json:"secret_key"`
	WebhookSecret string `json:"webhook_secret"`
	PriceID       string `json:"price_id"`
}

type AIConfig struct {
	APIKey        string        `json:"api_key"`
	Model         string        `json:"model"`
	BaseURL       string        `json:"base_url,omitempty"`
	InvokeTimeout time.Duration `json:"invoke_timeout"`
}

// QuotaConfig holds the admission limits for the scan quota machinery.
// Image and video scans carry different daily caps.
type QuotaConfig struct {
	DailyImageLimit int `json:"daily_image_limit"`
	DailyVideoLimit int `json:"daily_video_limit"`
	StartingScans   int `json:"starting_scans"`
	MaxConversation int `json:"max_conversation"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	// Add config paths
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Check for user config directory
	homeDir, err := os.UserHomeDir()
	if err == nil {
		viper.AddConfigPath(filepath.Join(homeDir, ".microlens"))
	}

	// Set defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "microlens")
	viper.SetDefault("database.database", "microlens")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.bucket", "microlens-media")
	viper.SetDefault("ai.model", "gpt-4o")
	viper.SetDefault("ai.invoke_timeout", 60*time.Second)
	viper.SetDefault("quota.daily_image_limit", 100)
	viper.SetDefault("quota.daily_video_limit", 80)
	viper.SetDefault("quota.starting_scans", 7)
	viper.SetDefault("quota.max_conversation", 60)

	// Read config
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		// Config file is optional; defaults plus env cover dev setups
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	loadEnvOverrides(&cfg)

	return &cfg, nil
}

func loadEnvOverrides(cfg *Config) {
	if port := os.Getenv("MICROLENS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if host := os.Getenv("MICROLENS_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if secret := os.Getenv("MICROLENS_JWT_SECRET"); secret != "" {
		cfg.Server.JWTSecret = secret
	}

	// Database overrides
	if dbHost := os.Getenv("POSTGRES_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("POSTGRES_PORT"); dbPort != "" {
		if port, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = port
		}
	}
	if dbUser := os.Getenv("POSTGRES_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPass := os.Getenv("POSTGRES_PASSWORD"); dbPass != "" {
		cfg.Database.Password = dbPass
	}
	if dbName := os.Getenv("POSTGRES_DB"); dbName != "" {
		cfg.Database.Database = dbName
	}

	// Vendor credentials come from the environment, never the config file
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.AI.APIKey = key
	}
	if key := os.Getenv("STRIPE_SECRET_KEY"); key != "" {
		cfg.Stripe.SecretKey = key
	}
	if secret := os.Getenv("STRIPE_WEBHOOK_SECRET"); secret != "" {
		cfg.Stripe.WebhookSecret = secret
	}
	if bucket := os.Getenv("MICROLENS_MEDIA_BUCKET"); bucket != "" {
		cfg.Storage.Bucket = bucket
	}
}
