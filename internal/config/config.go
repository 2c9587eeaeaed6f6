// Package config loads server settings from an optional YAML file, a .env
// file and MYSPHERE_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mcoot/mysphere/internal/api"
	"github.com/mcoot/mysphere/internal/chain/eth"
	"github.com/mcoot/mysphere/internal/chain/sim"
	"github.com/mcoot/mysphere/internal/factory"
	"github.com/mcoot/mysphere/internal/services/auth"
	redisstorage "github.com/mcoot/mysphere/internal/storage/redis"
)

// EnvPrefix namespaces environment variables, e.g. MYSPHERE_SERVER_PORT
const EnvPrefix = "MYSPHERE"

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Stream   StreamConfig   `mapstructure:"stream"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type StorageConfig struct {
	Type        string `mapstructure:"type"`
	RedisURL    string `mapstructure:"redis_url"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type ChainConfig struct {
	// Mode is "sim" or "eth"
	Mode            string        `mapstructure:"mode"`
	AutoMine        bool          `mapstructure:"auto_mine"`
	BlockInterval   time.Duration `mapstructure:"block_interval"`
	RPCURL          string        `mapstructure:"rpc_url"`
	ContractAddress string        `mapstructure:"contract_address"`
	ChainID         int64         `mapstructure:"chain_id"`
	PrivateKeys     []string      `mapstructure:"private_keys"`
	GasLimit        uint64        `mapstructure:"gas_limit"`
	ReceiptTimeout  time.Duration `mapstructure:"receipt_timeout"`
}

type AuthConfig struct {
	Secret          string        `mapstructure:"secret"`
	Issuer          string        `mapstructure:"issuer"`
	SessionDuration time.Duration `mapstructure:"session_duration"`
	ChallengeTTL    time.Duration `mapstructure:"challenge_ttl"`
	Admins          []string      `mapstructure:"admins"`
}

type StreamConfig struct {
	// AllowedOrigin restricts WebSocket upgrades; empty allows any origin
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

type ScheduleConfig struct {
	PruneTxs      string        `mapstructure:"prune_txs"`
	CleanupHubs   string        `mapstructure:"cleanup_hubs"`
	CleanSessions string        `mapstructure:"clean_sessions"`
	TxRetention   time.Duration `mapstructure:"tx_retention"`
}

func setDefaults(v *viper.Viper) {
	srv := api.DefaultServerConfig()
	v.SetDefault("server.host", srv.Host)
	v.SetDefault("server.port", srv.Port)
	v.SetDefault("server.read_timeout", srv.ReadTimeout)
	v.SetDefault("server.write_timeout", srv.WriteTimeout)
	v.SetDefault("server.idle_timeout", srv.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", srv.ShutdownTimeout)

	v.SetDefault("log.level", "info")

	v.SetDefault("storage.type", factory.StorageTypeMemory)
	v.SetDefault("storage.redis_url", redisstorage.DefaultConfig().URL)
	v.SetDefault("storage.postgres_dsn", "")

	simCfg := sim.DefaultConfig()
	ethCfg := eth.DefaultConfig()
	v.SetDefault("chain.mode", factory.LedgerTypeSim)
	v.SetDefault("chain.auto_mine", simCfg.AutoMine)
	v.SetDefault("chain.block_interval", simCfg.BlockInterval)
	v.SetDefault("chain.rpc_url", ethCfg.RPCURL)
	v.SetDefault("chain.contract_address", "")
	v.SetDefault("chain.chain_id", 0)
	v.SetDefault("chain.private_keys", []string{})
	v.SetDefault("chain.gas_limit", 0)
	v.SetDefault("chain.receipt_timeout", ethCfg.ReceiptTimeout)

	authCfg := auth.DefaultConfig()
	v.SetDefault("auth.secret", authCfg.Secret)
	v.SetDefault("auth.issuer", authCfg.Issuer)
	v.SetDefault("auth.session_duration", authCfg.SessionDuration)
	v.SetDefault("auth.challenge_ttl", authCfg.ChallengeTTL)
	v.SetDefault("auth.admins", []string{})

	v.SetDefault("stream.allowed_origin", "")

	sched := factory.DefaultScheduleConfig()
	v.SetDefault("schedule.prune_txs", sched.PruneTxs)
	v.SetDefault("schedule.cleanup_hubs", sched.CleanupHubs)
	v.SetDefault("schedule.clean_sessions", sched.CleanSessions)
	v.SetDefault("schedule.tx_retention", sched.TxRetention)
}

// Load reads configuration. configPath may be empty; envFiles are loaded
// with godotenv and never override variables already set.
func Load(configPath string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && len(envFiles) > 0 {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
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

// Validate checks settings that would only fail later at startup
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case factory.StorageTypeMemory, factory.StorageTypeRedis:
	default:
		return fmt.Errorf("storage.type %q: must be memory or redis", c.Storage.Type)
	}
	switch c.Chain.Mode {
	case factory.LedgerTypeSim:
	case factory.LedgerTypeEth:
		if c.Chain.ContractAddress == "" {
			return errors.New("chain.contract_address required in eth mode")
		}
	default:
		return fmt.Errorf("chain.mode %q: must be sim or eth", c.Chain.Mode)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}

// LogLevel parses Log.Level, defaulting to info
func (c *Config) LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// APIServer returns the HTTP server settings
func (c *Config) APIServer() api.ServerConfig {
	return api.ServerConfig{
		Host:            c.Server.Host,
		Port:            c.Server.Port,
		ReadTimeout:     c.Server.ReadTimeout,
		WriteTimeout:    c.Server.WriteTimeout,
		IdleTimeout:     c.Server.IdleTimeout,
		ShutdownTimeout: c.Server.ShutdownTimeout,
	}
}

// Factory builds the application factory config
func (c *Config) Factory(logger *slog.Logger) factory.Config {
	fc := factory.Config{
		Logger:      logger,
		StorageType: c.Storage.Type,
		PostgresDSN: c.Storage.PostgresDSN,
		LedgerType:  c.Chain.Mode,
		SimConfig: sim.Config{
			AutoMine:      c.Chain.AutoMine,
			BlockInterval: c.Chain.BlockInterval,
		},
		AuthConfig: auth.Config{
			Secret:          c.Auth.Secret,
			Issuer:          c.Auth.Issuer,
			SessionDuration: c.Auth.SessionDuration,
			ChallengeTTL:    c.Auth.ChallengeTTL,
		},
		Admins: c.Auth.Admins,
		Schedule: factory.ScheduleConfig{
			PruneTxs:      c.Schedule.PruneTxs,
			CleanupHubs:   c.Schedule.CleanupHubs,
			CleanSessions: c.Schedule.CleanSessions,
			TxRetention:   c.Schedule.TxRetention,
		},
	}

	if c.Storage.Type == factory.StorageTypeRedis {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = c.Storage.RedisURL
		fc.RedisConfig = &redisCfg
	}
	if c.Chain.Mode == factory.LedgerTypeEth {
		fc.EthConfig = &eth.Config{
			RPCURL:          c.Chain.RPCURL,
			ContractAddress: c.Chain.ContractAddress,
			ChainID:         c.Chain.ChainID,
			PrivateKeys:     c.Chain.PrivateKeys,
			GasLimit:        c.Chain.GasLimit,
			ReceiptTimeout:  c.Chain.ReceiptTimeout,
		}
	}
	return fc
}
