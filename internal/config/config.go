// Package config provides configuration loading for the factory control plane.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Hyperstack HyperstackConfig `mapstructure:"hyperstack"`
	RepoHost   RepoHostConfig   `mapstructure:"repo_host"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	DataDir    string           `mapstructure:"datadir"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MinConns        int           `mapstructure:"min_conns"`
	MaxConns        int           `mapstructure:"max_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig holds Redis configuration (rate limiting only).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

// ChainConfig holds blockchain connectivity and contract addresses.
type ChainConfig struct {
	HTTPRPC      string `mapstructure:"http_rpc"`
	WSRPC        string `mapstructure:"ws_rpc"`
	NFTContract  string `mapstructure:"nft_contract"`
	Deposit      string `mapstructure:"deposit_contract"`
	OpenXToken   string `mapstructure:"openx_token"`
	NFTMinterKey string `mapstructure:"nft_minter_key"`
}

// HyperstackConfig holds the GPU VM provisioner credentials and shape.
type HyperstackConfig struct {
	APIKey      string `mapstructure:"api_key"`
	BaseURL     string `mapstructure:"base_url"`
	Environment string `mapstructure:"environment"`
	Flavor      string `mapstructure:"flavor"`
	KeyName     string `mapstructure:"key_name"`
}

// RepoHostConfig holds the source hosting service credentials.
type RepoHostConfig struct {
	Token    string `mapstructure:"token"`
	Owner    string `mapstructure:"owner"`
	Template string `mapstructure:"template"`
	BaseURL  string `mapstructure:"base_url"`
}

// SchedulerConfig holds the background task tick intervals and well-known endpoints.
type SchedulerConfig struct {
	FleetTick      time.Duration `mapstructure:"fleet_tick"`
	DispatchTick   time.Duration `mapstructure:"dispatch_tick"`
	WatchTick      time.Duration `mapstructure:"watch_tick"`
	MintTick       time.Duration `mapstructure:"mint_tick"`
	HostNodeURL    string        `mapstructure:"host_node_url"`
	HostNodeDomain string        `mapstructure:"host_node_domain"`
	ForwardProxy   string        `mapstructure:"forward_proxy"`
	WorkerDomain   string        `mapstructure:"worker_domain"`
}

// Load reads configuration from files and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/miniapp-factory")

	v.SetEnvPrefix("FACTORY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// The deployment environment provides bare variable names.
	v.BindEnv("server.host", "HOSTNAME")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("datadir", "DATADIR")
	v.BindEnv("database.url", "DATABASE")
	v.BindEnv("repo_host.token", "GH_TOKEN")
	v.BindEnv("chain.nft_minter_key", "NFTMINTERKEY")
	v.BindEnv("chain.http_rpc", "HTTPRPC")
	v.BindEnv("chain.ws_rpc", "WSRPC")
	v.BindEnv("chain.deposit_contract", "DEPOSIT")
	v.BindEnv("chain.openx_token", "OPENX")
	v.BindEnv("chain.nft_contract", "NFT")
	v.BindEnv("hyperstack.api_key", "HYPERSTACKAPIKEY")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 54428)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")

	v.SetDefault("datadir", "/var/lib/miniapp-factory")

	v.SetDefault("database.url", "postgres:openxai-indexer?host=/run/postgresql")
	v.SetDefault("database.min_conns", 10)
	v.SetDefault("database.max_conns", 10000)
	v.SetDefault("database.conn_max_lifetime", "1h")

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)

	v.SetDefault("hyperstack.base_url", "https://infrahub-api.nexgencloud.com/v1")
	v.SetDefault("hyperstack.environment", "default-NORWAY-1")
	v.SetDefault("hyperstack.flavor", "n3-RTX-A4000x1")
	v.SetDefault("hyperstack.key_name", "NixOS")

	v.SetDefault("repo_host.owner", "miniapp-factory")
	v.SetDefault("repo_host.template", "OpenxAI-Network/xnode-miniapp-template")
	v.SetDefault("repo_host.base_url", "https://api.github.com")

	v.SetDefault("scheduler.fleet_tick", "15s")
	v.SetDefault("scheduler.dispatch_tick", "1s")
	v.SetDefault("scheduler.watch_tick", "5s")
	v.SetDefault("scheduler.mint_tick", "10s")
	v.SetDefault("scheduler.host_node_url", "https://miniapp-host.xnode-manager.openxai.org")
	v.SetDefault("scheduler.host_node_domain", "miniapp-host.xnode-manager.openxai.org")
	v.SetDefault("scheduler.forward_proxy", "https://xnode.openmesh.network/api/xnode-forward")
	v.SetDefault("scheduler.worker_domain", "manager.xnode.local")
}
