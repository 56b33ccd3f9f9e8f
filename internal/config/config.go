package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Database     DatabaseConfig     `mapstructure:"database"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	AI           AIConfig           `mapstructure:"ai"`
	Verification VerificationConfig `mapstructure:"verification"`
	Moderation   ModerationConfig   `mapstructure:"moderation"`
	RateLimit    RateLimitConfig    `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// JWTConfig covers token validation only; issuance lives with the external
// auth collaborator.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// AIConfig configures the model collaborator.
type AIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// VerificationConfig configures the phone-verification provider client.
type VerificationConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ModerationConfig tunes the escalation policy.
type ModerationConfig struct {
	ViolationThreshold int           `mapstructure:"violation_threshold"`
	BanBaseline        time.Duration `mapstructure:"ban_baseline"`
}

// RateLimitConfig tunes the verification-code cooldown window.
type RateLimitConfig struct {
	Window     time.Duration `mapstructure:"window"`
	HistoryCap int           `mapstructure:"history_cap"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Environment variables: nested keys map via '.' -> '_',
	// e.g. database.uri -> DATABASE_URI.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "fitness_tracker")
	viper.SetDefault("ai.model", "gemini-2.0-flash")
	viper.SetDefault("ai.timeout", "30s")
	viper.SetDefault("verification.timeout", "10s")
	viper.SetDefault("moderation.violation_threshold", 2)
	viper.SetDefault("moderation.ban_baseline", "5m")
	viper.SetDefault("ratelimit.window", "60s")
	viper.SetDefault("ratelimit.history_cap", 64)

	err = viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file is optional; env vars and defaults may be enough.
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	return config, nil
}
