// Package config loads tradeguard settings from defaults, an optional YAML
// file, a .env file and TRADEGUARD_* environment variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/iudanet/tradeguard/internal/crypto"
	"github.com/iudanet/tradeguard/internal/models"
	"github.com/iudanet/tradeguard/internal/validation"
)

const envPrefix = "TRADEGUARD"

// Драйверы хранилища кошельков
const (
	WalletStoreSQLite = "sqlite"
	WalletStoreBolt   = "bolt"
)

// Бэкенды лимитера. Счетчики memory живут в процессе: каждый запуск CLI
// начинает окна заново, и лимит между запусками держит только redis.
const (
	RateLimitMemory = "memory"
	RateLimitRedis  = "redis"
)

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type WalletStoreConfig struct {
	Driver   string `mapstructure:"driver"`
	BoltPath string `mapstructure:"bolt_path"`
}

// VaultConfig задает master key напрямую или через парольную фразу
type VaultConfig struct {
	MasterKey  string `mapstructure:"master_key"` // base64, 32 байта
	Passphrase string `mapstructure:"passphrase"`
	Salt       string `mapstructure:"salt"` // base64
}

type AuthConfig struct {
	DefaultPermissions []string      `mapstructure:"default_permissions"`
	SessionTTL         time.Duration `mapstructure:"session_ttl"`
	BcryptCost         int           `mapstructure:"bcrypt_cost"`
}

type EndpointLimit struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type RateLimitConfig struct {
	Endpoints    map[string]EndpointLimit `mapstructure:"endpoints"`
	Backend      string                   `mapstructure:"backend"` // memory: только в пределах процесса
	RedisURL     string                   `mapstructure:"redis_url"`
	DefaultLimit int                      `mapstructure:"default_limit"`
	Window       time.Duration            `mapstructure:"window"`
}

// MarketConfig - границы суммы в USDT, как десятичные строки
type MarketConfig struct {
	Min       string `mapstructure:"min"`
	Max       string `mapstructure:"max"`
	HighValue string `mapstructure:"high_value"`
}

type TradingConfig struct {
	Symbols         []string     `mapstructure:"symbols"`
	Spot            MarketConfig `mapstructure:"spot"`
	Futures         MarketConfig `mapstructure:"futures"`
	MaxSlippage     string       `mapstructure:"max_slippage"`
	SlippageWarning string       `mapstructure:"slippage_warning"`
	MaxLeverage     int64        `mapstructure:"max_leverage"`
	LeverageWarning int64        `mapstructure:"leverage_warning"`
}

type ExchangeConfig struct {
	OrderMethod string `mapstructure:"order_method"`
	OrderPath   string `mapstructure:"order_path"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

type CLIConfig struct {
	SessionFile string `mapstructure:"session_file"`
}

// Config is the full application configuration.
type Config struct {
	Env         string            `mapstructure:"env"`
	Log         LogConfig         `mapstructure:"log"`
	Database    DatabaseConfig    `mapstructure:"database"`
	WalletStore WalletStoreConfig `mapstructure:"wallet_store"`
	Vault       VaultConfig       `mapstructure:"vault"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	CLI         CLIConfig         `mapstructure:"cli"`
	Exchange    ExchangeConfig    `mapstructure:"exchange"`
	Auth        AuthConfig        `mapstructure:"auth"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Trading     TradingConfig     `mapstructure:"trading"`
}

// Load reads the configuration. An empty path skips the YAML file; a given
// path must exist. A .env file in the working directory is loaded first
// without overriding variables already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	policy := validation.DefaultPolicy()
	spot := policy.Markets[models.MarketSpot]
	futures := policy.Markets[models.MarketFutures]

	v.SetDefault("env", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.path", "tradeguard.db")
	v.SetDefault("wallet_store.driver", WalletStoreSQLite)
	v.SetDefault("wallet_store.bolt_path", "wallets.bolt")
	v.SetDefault("vault.master_key", "")
	v.SetDefault("vault.passphrase", "")
	v.SetDefault("vault.salt", "")
	v.SetDefault("auth.session_ttl", "24h")
	v.SetDefault("auth.bcrypt_cost", 12)
	v.SetDefault("auth.default_permissions", []string{"read", "trade", "withdraw"})
	v.SetDefault("rate_limit.backend", RateLimitMemory)
	v.SetDefault("rate_limit.redis_url", "redis://localhost:6379/0")
	v.SetDefault("rate_limit.default_limit", 600)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("trading.symbols", validation.DefaultSymbols)
	v.SetDefault("trading.spot.min", spot.Min.String())
	v.SetDefault("trading.spot.max", spot.Max.String())
	v.SetDefault("trading.spot.high_value", spot.HighValue.String())
	v.SetDefault("trading.futures.min", futures.Min.String())
	v.SetDefault("trading.futures.max", futures.Max.String())
	v.SetDefault("trading.futures.high_value", futures.HighValue.String())
	v.SetDefault("trading.max_slippage", policy.MaxSlippage.String())
	v.SetDefault("trading.slippage_warning", policy.SlippageWarning.String())
	v.SetDefault("trading.max_leverage", policy.MaxLeverage)
	v.SetDefault("trading.leverage_warning", policy.LeverageWarning)
	v.SetDefault("exchange.order_method", "POST")
	v.SetDefault("exchange.order_path", "/api/v1/order")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("cli.session_file", defaultSessionFile())
}

func defaultSessionFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tradeguard-session"
	}
	return filepath.Join(home, ".tradeguard", "session")
}

// Validate checks the values that would otherwise fail at first use.
func (c *Config) Validate() error {
	if c.Vault.MasterKey == "" && c.Vault.Passphrase == "" {
		return fmt.Errorf("vault.master_key or vault.passphrase is required")
	}
	if c.Vault.MasterKey == "" && c.Vault.Salt == "" {
		return fmt.Errorf("vault.salt is required with vault.passphrase")
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("auth.bcrypt_cost must be in [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("auth.session_ttl must be positive")
	}
	if _, err := c.Permissions(); err != nil {
		return err
	}

	switch c.WalletStore.Driver {
	case WalletStoreSQLite:
	case WalletStoreBolt:
		if c.WalletStore.BoltPath == "" {
			return fmt.Errorf("wallet_store.bolt_path is required for the bolt driver")
		}
	default:
		return fmt.Errorf("unknown wallet_store.driver %q", c.WalletStore.Driver)
	}

	switch c.RateLimit.Backend {
	case RateLimitMemory:
	case RateLimitRedis:
		if c.RateLimit.RedisURL == "" {
			return fmt.Errorf("rate_limit.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown rate_limit.backend %q", c.RateLimit.Backend)
	}
	if c.RateLimit.DefaultLimit <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.default_limit and rate_limit.window must be positive")
	}
	for name, lim := range c.RateLimit.Endpoints {
		if lim.Limit <= 0 {
			return fmt.Errorf("rate_limit.endpoints.%s.limit must be positive", name)
		}
		if lim.Window < 0 {
			return fmt.Errorf("rate_limit.endpoints.%s.window must not be negative", name)
		}
	}

	if _, err := c.Policy(); err != nil {
		return err
	}

	return nil
}

// MasterKey returns the vault master key, decoded or derived. The caller
// owns the returned buffer and should wipe it.
func (c *Config) MasterKey() ([]byte, error) {
	if c.Vault.MasterKey != "" {
		return crypto.ParseMasterKey(c.Vault.MasterKey)
	}

	salt, err := base64.StdEncoding.DecodeString(c.Vault.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decode vault.salt: %w", err)
	}
	return crypto.DeriveMasterKey(c.Vault.Passphrase, salt)
}

// Permissions returns the configured default permission set.
func (c *Config) Permissions() (models.Permissions, error) {
	perms := make(models.Permissions, 0, len(c.Auth.DefaultPermissions))
	for _, raw := range c.Auth.DefaultPermissions {
		p, err := models.ParsePermission(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("auth.default_permissions: %w", err)
		}
		perms = append(perms, p)
	}
	return perms, nil
}

// Policy builds the trading policy from the trading section.
func (c *Config) Policy() (validation.Policy, error) {
	t := c.Trading

	spot, err := t.Spot.bounds("spot")
	if err != nil {
		return validation.Policy{}, err
	}
	futures, err := t.Futures.bounds("futures")
	if err != nil {
		return validation.Policy{}, err
	}

	maxSlippage, err := parseDecimal("trading.max_slippage", t.MaxSlippage)
	if err != nil {
		return validation.Policy{}, err
	}
	slippageWarn, err := parseDecimal("trading.slippage_warning", t.SlippageWarning)
	if err != nil {
		return validation.Policy{}, err
	}

	if len(t.Symbols) == 0 {
		return validation.Policy{}, fmt.Errorf("trading.symbols must not be empty")
	}
	if t.MaxLeverage < 1 {
		return validation.Policy{}, fmt.Errorf("trading.max_leverage must be at least 1")
	}

	return validation.Policy{
		Markets: map[models.Market]validation.MarketBounds{
			models.MarketSpot:    spot,
			models.MarketFutures: futures,
		},
		MaxSlippage:     maxSlippage,
		SlippageWarning: slippageWarn,
		Symbols:         t.Symbols,
		MaxLeverage:     t.MaxLeverage,
		LeverageWarning: t.LeverageWarning,
	}, nil
}

func (m MarketConfig) bounds(name string) (validation.MarketBounds, error) {
	lo, err := parseDecimal("trading."+name+".min", m.Min)
	if err != nil {
		return validation.MarketBounds{}, err
	}
	hi, err := parseDecimal("trading."+name+".max", m.Max)
	if err != nil {
		return validation.MarketBounds{}, err
	}
	high, err := parseDecimal("trading."+name+".high_value", m.HighValue)
	if err != nil {
		return validation.MarketBounds{}, err
	}
	if !lo.IsPositive() || hi.LessThan(lo) {
		return validation.MarketBounds{}, fmt.Errorf("trading.%s bounds must satisfy 0 < min <= max", name)
	}
	return validation.MarketBounds{Min: lo, Max: hi, HighValue: high}, nil
}

func parseDecimal(key, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q", key, raw)
	}
	return d, nil
}
