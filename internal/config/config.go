// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"sticker-rank-bot/internal/rank"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Upgrade   UpgradeConfig   `mapstructure:"upgrade"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// UpgradeConfig holds the rank ladder balance and the upgrade executor's
// concurrency settings.
type UpgradeConfig struct {
	Requirements RequirementsConfig `mapstructure:"requirements"`
	MaxRetries   int                `mapstructure:"max_retries"`
	RetryBackoff time.Duration      `mapstructure:"retry_backoff"`
	LockTimeout  time.Duration      `mapstructure:"lock_timeout"`
	TxTimeout    time.Duration      `mapstructure:"tx_timeout"`
}

// RequirementsConfig is the number of lower-rank copies consumed per upgrade.
type RequirementsConfig struct {
	Silver int `mapstructure:"silver"`
	Gold   int `mapstructure:"gold"`
	Prism  int `mapstructure:"prism"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
// An empty Addr disables the endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// CatalogConfig lists the stickers synced into the catalog at startup and
// how many Normal copies of each a new player receives.
type CatalogConfig struct {
	StarterCopies int             `mapstructure:"starter_copies"`
	Stickers      []StickerConfig `mapstructure:"stickers"`
}

// StickerConfig is one catalog entry.
type StickerConfig struct {
	ID     string `mapstructure:"id"`
	Name   string `mapstructure:"name"`
	Rarity int    `mapstructure:"rarity"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Ladder builds the rank ladder from the configured requirements.
func (u *UpgradeConfig) Ladder() (*rank.Ladder, error) {
	return rank.NewLadder(map[rank.Rank]int{
		rank.Silver: u.Requirements.Silver,
		rank.Gold:   u.Requirements.Gold,
		rank.Prism:  u.Requirements.Prism,
	})
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// BOT_TOKEN, DATABASE_HOST, UPGRADE_MAX_RETRIES, ...
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if _, err := c.Upgrade.Ladder(); err != nil {
		return fmt.Errorf("upgrade.requirements: %w", err)
	}
	if c.Upgrade.MaxRetries < 0 {
		return fmt.Errorf("upgrade.max_retries must not be negative, got %d", c.Upgrade.MaxRetries)
	}
	if c.Upgrade.LockTimeout <= 0 || c.Upgrade.TxTimeout <= 0 {
		return fmt.Errorf("upgrade.lock_timeout and upgrade.tx_timeout must be positive")
	}
	for _, st := range c.Catalog.Stickers {
		if st.ID == "" || st.Rarity < rank.MinBaseRarity || st.Rarity > rank.MaxBaseRarity {
			return fmt.Errorf("catalog sticker %q: id required and rarity must be %d-%d",
				st.ID, rank.MinBaseRarity, rank.MaxBaseRarity)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "stickers")
	v.SetDefault("database.name", "stickers")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("upgrade.requirements.silver", rank.DefaultSilverRequirement)
	v.SetDefault("upgrade.requirements.gold", rank.DefaultGoldRequirement)
	v.SetDefault("upgrade.requirements.prism", rank.DefaultPrismRequirement)
	v.SetDefault("upgrade.max_retries", 3)
	v.SetDefault("upgrade.retry_backoff", "50ms")
	v.SetDefault("upgrade.lock_timeout", "5s")
	v.SetDefault("upgrade.tx_timeout", "10s")

	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("catalog.starter_copies", 5)
	v.SetDefault("catalog.stickers", []map[string]any{
		{"id": "neko", "name": "Neko", "rarity": 1},
		{"id": "inu", "name": "Inu", "rarity": 2},
		{"id": "kitsune", "name": "Kitsune", "rarity": 3},
		{"id": "tanuki", "name": "Tanuki", "rarity": 4},
		{"id": "ryu", "name": "Ryu", "rarity": 5},
	})
}

// IsChatAllowed checks if a chat ID is in the whitelist.
func (c *Config) IsChatAllowed(chatID int64) bool {
	// Empty whitelist means all chats are allowed
	if len(c.Whitelist.Chats) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Chats {
		if id == chatID {
			return true
		}
	}
	return false
}
