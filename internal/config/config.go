// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Whitelist  WhitelistConfig  `mapstructure:"whitelist"`
	Wallet     WalletConfig     `mapstructure:"wallet"`
	Daily      DailyConfig      `mapstructure:"daily"`
	Rounds     RoundsConfig     `mapstructure:"rounds"`
	FriendBets FriendBetsConfig `mapstructure:"friend_bets"`
	Tables     []TableConfig    `mapstructure:"tables"`
}

// BotConfig holds Telegram bot configuration.
type BotConfig struct {
	Token string `mapstructure:"token"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	User             string        `mapstructure:"user"`
	Password         string        `mapstructure:"password"`
	Name             string        `mapstructure:"name"`
	PoolSize         int           `mapstructure:"pool_size"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `mapstructure:"max_conn_idle_time"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
	// AutoMigrate applies the schema on startup. When off, the schema must
	// already be in place.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// StorageConfig selects the ledger store implementation.
type StorageConfig struct {
	// Driver is "postgres" or "memory".
	Driver string `mapstructure:"driver"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig holds chat whitelist configuration.
type WhitelistConfig struct {
	Chats []int64 `mapstructure:"chats"`
}

// WalletConfig holds the parameters of newly created wallets.
type WalletConfig struct {
	StartingBalance   int64  `mapstructure:"starting_balance"`
	VaultInterestRate string `mapstructure:"vault_interest_rate"`
}

// DailyConfig holds daily reward configuration.
type DailyConfig struct {
	Reward        int64 `mapstructure:"reward"`
	CooldownHours int   `mapstructure:"cooldown_hours"`
}

// RoundsConfig holds round lifecycle timings.
type RoundsConfig struct {
	BettingWindow time.Duration `mapstructure:"betting_window"`
	NextRoundIn   time.Duration `mapstructure:"next_round_in"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// FriendBetsConfig holds the settings used until an admin saves new ones.
type FriendBetsConfig struct {
	Enabled              bool   `mapstructure:"enabled"`
	MinStake             int64  `mapstructure:"min_stake"`
	MaxStake             int64  `mapstructure:"max_stake"`
	GainsMultiplier      string `mapstructure:"gains_multiplier"`
	LossesMultiplier     string `mapstructure:"losses_multiplier"`
	CooldownMinutes      int    `mapstructure:"cooldown_minutes"`
	MaxActiveBetsPerUser int    `mapstructure:"max_active_bets_per_user"`
}

// TableConfig describes a table seeded on startup.
type TableConfig struct {
	ID         string `mapstructure:"id"`
	GameType   string `mapstructure:"game_type"`
	Name       string `mapstructure:"name"`
	MaxPlayers int    `mapstructure:"max_players"`
	MinBet     int64  `mapstructure:"min_bet"`
	MaxBet     int64  `mapstructure:"max_bet"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
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

	// e.g. BOT_TOKEN, DATABASE_HOST, ROUNDS_BETTING_WINDOW
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

	if len(cfg.Tables) == 0 {
		cfg.Tables = DefaultTables()
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "casino")
	v.SetDefault("database.name", "casino")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.statement_timeout", "15s")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.driver", "postgres")

	v.SetDefault("wallet.starting_balance", 1000)
	v.SetDefault("wallet.vault_interest_rate", "0.05")

	// Daily reward defaults
	v.SetDefault("daily.reward", 100)
	v.SetDefault("daily.cooldown_hours", 24)

	v.SetDefault("rounds.betting_window", "30s")
	v.SetDefault("rounds.next_round_in", "5s")
	v.SetDefault("rounds.sweep_interval", "1m")

	v.SetDefault("friend_bets.enabled", true)
	v.SetDefault("friend_bets.min_stake", 10)
	v.SetDefault("friend_bets.max_stake", 1000)
	v.SetDefault("friend_bets.gains_multiplier", "1.8")
	v.SetDefault("friend_bets.losses_multiplier", "1.5")
	v.SetDefault("friend_bets.cooldown_minutes", 5)
	v.SetDefault("friend_bets.max_active_bets_per_user", 3)
}

// DefaultTables returns the tables created when none are configured.
func DefaultTables() []TableConfig {
	return []TableConfig{
		{ID: "roulette-vip", GameType: "roulette", Name: "Roulette VIP", MaxPlayers: 8, MinBet: 100, MaxBet: 5000},
		{ID: "roulette-beginner", GameType: "roulette", Name: "Roulette Beginner", MaxPlayers: 6, MinBet: 10, MaxBet: 500},
		{ID: "poker-vip", GameType: "poker", Name: "Texas Hold'em VIP", MaxPlayers: 8, MinBet: 50, MaxBet: 5000},
		{ID: "poker-beginner", GameType: "poker", Name: "Texas Hold'em Beginner", MaxPlayers: 6, MinBet: 10, MaxBet: 1000},
		{ID: "slots-lucky-sevens", GameType: "slots", Name: "Lucky Sevens", MaxPlayers: 1, MinBet: 5, MaxBet: 500},
		{ID: "slots-diamond-dreams", GameType: "slots", Name: "Diamond Dreams", MaxPlayers: 1, MinBet: 10, MaxBet: 1000},
		{ID: "slots-mega-fortune", GameType: "slots", Name: "Mega Fortune", MaxPlayers: 1, MinBet: 25, MaxBet: 2500},
		{ID: "baccarat-royal", GameType: "baccarat", Name: "Baccarat Royal", MaxPlayers: 8, MinBet: 50, MaxBet: 2000},
		{ID: "baccarat-express", GameType: "baccarat", Name: "Baccarat Express", MaxPlayers: 6, MinBet: 10, MaxBet: 500},
		{ID: "coinflip", GameType: "coinflip", Name: "Coin Flip", MaxPlayers: 1, MinBet: 1, MaxBet: 1000},
		{ID: "highlow", GameType: "highlow", Name: "High or Low", MaxPlayers: 1, MinBet: 1, MaxBet: 1000},
	}
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
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
