package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"embed-bot/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// setDefaults registers the fallback value of every key.
// Every key needs an entry so that AutomaticEnv overrides reach Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.token", "")
	v.SetDefault("bot.admin_channel_id", "")
	v.SetDefault("database.path", "data/embed-bot.db")
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.default_ttl", 10*time.Minute)
	v.SetDefault("cache.counter_ttl", time.Minute)
	v.SetDefault("cache.memory_size", 4096)
	v.SetDefault("delivery.max_content_length", 2000)
	v.SetDefault("delivery.max_transcodes", 3)
	v.SetDefault("delivery.ffmpeg_path", "ffmpeg")
	v.SetDefault("limits.free", 50)
	v.SetDefault("limits.premium", 1000)
	v.SetDefault("limits.window", 24*time.Hour)
	v.SetDefault("limits.fetch_rps", 2.0)
	v.SetDefault("retention.server_posts", 31*24*time.Hour)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("health.addr", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("commands.auth.developers", []string{})
	v.SetDefault("commands.auth.admins_roles", []string{})
}

// LoadConfig loads configuration from, in order:
// 1. the .env file (environment variables)
// 2. config.yaml in the working directory
// 3. environment variables, which override file values (bot.token -> BOT_TOKEN)
func LoadConfig() (*models.Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found, skipping.")
	}

	v := newViper()
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to parse config.yaml: %w", err)
		}
		log.Printf("No config.yaml found, using environment variables and defaults.")
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

func decode(v *viper.Viper) (*models.Config, error) {
	var cfg models.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the bot cannot run with.
func Validate(cfg *models.Config) error {
	switch cfg.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
	if cfg.Delivery.MaxContentLength < 10 {
		return fmt.Errorf("delivery.max_content_length must be at least 10, got %d", cfg.Delivery.MaxContentLength)
	}
	if cfg.Delivery.MaxTranscodes < 1 {
		return fmt.Errorf("delivery.max_transcodes must be positive, got %d", cfg.Delivery.MaxTranscodes)
	}
	if cfg.Limits.Window <= 0 {
		return errors.New("limits.window must be positive")
	}
	return nil
}
