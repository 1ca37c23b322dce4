package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Logging  LoggingConfig
	Quota    QuotaDefaults
	Catalog  CatalogConfig
}

type ServerConfig struct {
	HTTPPort    int           `mapstructure:"http_port"`
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Addresses   []string `mapstructure:"addresses"`
	Password    string   `mapstructure:"password"`
	DB          int      `mapstructure:"db"`
	PoolSize    int      `mapstructure:"pool_size"`
	ClusterMode bool     `mapstructure:"cluster_mode"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// QuotaDefaults seeds the policy row created on a user's first quota check.
// Exact values are deployment configuration, not algorithm.
type QuotaDefaults struct {
	MaxSandboxes         int      `mapstructure:"max_sandboxes"`
	MaxConcurrentRunning int      `mapstructure:"max_concurrent_running"`
	AllowedTierIDs       []string `mapstructure:"allowed_tier_ids"`
	MaxTierID            string   `mapstructure:"max_tier_id"`
	MaxTotalStorageGB    int      `mapstructure:"max_total_storage_gb"`
	MaxTotalCPUCores     int      `mapstructure:"max_total_cpu_cores"`
	MaxTotalMemoryGB     int      `mapstructure:"max_total_memory_gb"`
	AllowedAddonIDs      []string `mapstructure:"allowed_addon_ids"`
}

// CatalogConfig declares the tier/addon reference rows seeded by cmd/migrate.
type CatalogConfig struct {
	Tiers  []TierSeed  `mapstructure:"tiers"`
	Addons []AddonSeed `mapstructure:"addons"`
}

type TierSeed struct {
	ID           string  `mapstructure:"id"`
	Name         string  `mapstructure:"name"`
	CPUCores     int     `mapstructure:"cpu_cores"`
	MemoryGB     int     `mapstructure:"memory_gb"`
	StorageGB    int     `mapstructure:"storage_gb"`
	PriceMonthly float64 `mapstructure:"price_monthly"`
	IsDefault    bool    `mapstructure:"is_default"`
	SortOrder    int     `mapstructure:"sort_order"`
}

type AddonSeed struct {
	ID             string  `mapstructure:"id"`
	Name           string  `mapstructure:"name"`
	Category       string  `mapstructure:"category"`
	RequiresGPU    bool    `mapstructure:"requires_gpu"`
	RequiresFlavor string  `mapstructure:"requires_flavor"`
	Port           int     `mapstructure:"port"`
	PriceMonthly   float64 `mapstructure:"price_monthly"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("/etc/codehaven/")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("CODEHAVEN")
	viper.AutomaticEnv()

	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("redis.pool_size", 100)
	viper.SetDefault("auth.token_ttl", "24h")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("quota.max_sandboxes", 3)
	viper.SetDefault("quota.max_concurrent_running", 1)
	viper.SetDefault("quota.allowed_tier_ids", []string{"starter"})
	viper.SetDefault("quota.max_tier_id", "starter")
	viper.SetDefault("quota.max_total_storage_gb", 20)
	viper.SetDefault("quota.max_total_cpu_cores", 2)
	viper.SetDefault("quota.max_total_memory_gb", 4)
	viper.SetDefault("quota.allowed_addon_ids", []string{"code-server"})

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
