package models

import "time"

// Config is the typed view of config.yaml / environment.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Retention RetentionConfig `mapstructure:"retention"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Log       LogConfig       `mapstructure:"log"`
	Commands  CommandsConfig  `mapstructure:"commands"`
}

// BotConfig holds chat session settings.
type BotConfig struct {
	Token          string `mapstructure:"token"`
	AdminChannelID string `mapstructure:"admin_channel_id"`
}

// DatabaseConfig points at the SQLite database file.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"` // redis or memory
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	CounterTTL    time.Duration `mapstructure:"counter_ttl"`
	MemorySize    int           `mapstructure:"memory_size"`
}

// DeliveryConfig bounds what is sent to the chat transport.
type DeliveryConfig struct {
	MaxContentLength int    `mapstructure:"max_content_length"`
	MaxTranscodes    int    `mapstructure:"max_transcodes"`
	FFmpegPath       string `mapstructure:"ffmpeg_path"`
}

// LimitsConfig holds per-tier post limits over a sliding window.
type LimitsConfig struct {
	Free     int           `mapstructure:"free"`
	Premium  int           `mapstructure:"premium"`
	Window   time.Duration `mapstructure:"window"`
	FetchRPS float64       `mapstructure:"fetch_rps"`
}

// RetentionConfig controls scheduled pruning.
type RetentionConfig struct {
	ServerPosts time.Duration `mapstructure:"server_posts"`
}

// MetricsConfig configures the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// HealthConfig configures the gRPC health endpoint. Empty Addr disables it.
type HealthConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// CommandsConfig represents the command permission configuration.
type CommandsConfig struct {
	Auth struct {
		Developers  []string `mapstructure:"developers"`
		AdminsRoles []string `mapstructure:"admins_roles"`
	} `mapstructure:"auth"`
}
