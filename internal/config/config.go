package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"fiatsend/internal/logging"
	"fiatsend/internal/oracle"
)

// Ledger drivers.
const (
	LedgerMemory   = "memory"
	LedgerPostgres = "postgres"
	LedgerEVM      = "evm"
)

// Oracle drivers.
const (
	OracleHermes = "hermes"
	OracleStatic = "static"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Conversion ConversionConfig `mapstructure:"conversion"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	Watch      WatchConfig      `mapstructure:"watch"`
	HTTP       HTTPConfig       `mapstructure:"http"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// OracleConfig selects the price feed and how it is reached.
type OracleConfig struct {
	Driver            string        `mapstructure:"driver"`
	BaseURL           string        `mapstructure:"base_url"`
	FeedID            string        `mapstructure:"feed_id"`
	MaxAge            time.Duration `mapstructure:"max_age"`
	MaxTWAPWindow     time.Duration `mapstructure:"max_twap_window"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	UserAgent         string        `mapstructure:"user_agent"`
	Static            StaticPrice   `mapstructure:"static"`
}

// StaticPrice is the fixed quote served by the static oracle driver.
type StaticPrice struct {
	Mantissa int64 `mapstructure:"mantissa"`
	Exponent int32 `mapstructure:"exponent"`
}

// ConversionConfig fixes the target currency's unit scale.
type ConversionConfig struct {
	BaseUnitScale    uint64 `mapstructure:"base_unit_scale"`
	RejectZeroAmount bool   `mapstructure:"reject_zero_amount"`
}

// LedgerConfig selects the value-movement backend.
type LedgerConfig struct {
	Driver string       `mapstructure:"driver"`
	Payer  string       `mapstructure:"payer"`
	Memory MemoryConfig `mapstructure:"memory"`
	EVM    EVMConfig    `mapstructure:"evm"`
}

// MemoryConfig seeds the in-process ledger.
type MemoryConfig struct {
	Accounts []MemoryAccount `mapstructure:"accounts"`
}

// MemoryAccount is one seeded balance.
type MemoryAccount struct {
	ID      string `mapstructure:"id"`
	Balance uint64 `mapstructure:"balance"`
}

// EVMConfig covers native transfers on an EVM chain.
type EVMConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	PrivateKey     string        `mapstructure:"private_key"`
	WeiPerBaseUnit uint64        `mapstructure:"wei_per_base_unit"`
	GasLimit       uint64        `mapstructure:"gas_limit"`
	WaitMined      bool          `mapstructure:"wait_mined"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	ChainClock     bool          `mapstructure:"chain_clock"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// AlertingConfig routes transfer notifications.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram bot channel.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// WatchConfig governs `quote --watch` cadence.
type WatchConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// HTTPConfig configures the `serve` listener.
type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("FIATSEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "fiatsend")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("oracle.driver", OracleHermes)
	v.SetDefault("oracle.base_url", "https://hermes.pyth.network")
	v.SetDefault("oracle.feed_id", "0xef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d")
	v.SetDefault("oracle.max_age", "3600s")
	v.SetDefault("oracle.max_twap_window", "600s")
	v.SetDefault("oracle.request_timeout", "10s")
	v.SetDefault("oracle.requests_per_second", 3.0)
	v.SetDefault("oracle.burst", 3)
	v.SetDefault("oracle.user_agent", "fiatsend/1.0")

	v.SetDefault("conversion.base_unit_scale", uint64(1_000_000_000))
	v.SetDefault("conversion.reject_zero_amount", true)

	v.SetDefault("ledger.driver", LedgerMemory)
	v.SetDefault("ledger.payer", "")
	v.SetDefault("ledger.evm.rpc_url", "")
	v.SetDefault("ledger.evm.private_key", "")
	v.SetDefault("ledger.evm.wei_per_base_unit", uint64(1_000_000_000))
	v.SetDefault("ledger.evm.gas_limit", uint64(21_000))
	v.SetDefault("ledger.evm.wait_mined", true)
	v.SetDefault("ledger.evm.poll_interval", "2s")
	v.SetDefault("ledger.evm.request_timeout", "2m")
	v.SetDefault("ledger.evm.chain_clock", true)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.bot_token", "")
	v.SetDefault("alerting.telegram.chat_id", "")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("watch.interval", "1m")
	v.SetDefault("watch.align_to_bucket", true)
	v.SetDefault("watch.startup_delay", "0s")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.read_timeout", "10s")
	v.SetDefault("http.write_timeout", "3m")
	v.SetDefault("http.shutdown_timeout", "15s")
	v.SetDefault("http.cors_origins", []string{})
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if _, err := oracle.ResolveFeedID(c.Oracle.FeedID); err != nil {
		return fmt.Errorf("oracle.feed_id: %w", err)
	}
	if c.Oracle.MaxAge <= 0 {
		return fmt.Errorf("oracle.max_age must be greater than zero")
	}
	if c.Oracle.MaxTWAPWindow < time.Second {
		return fmt.Errorf("oracle.max_twap_window must be at least 1s")
	}
	switch c.Oracle.Driver {
	case OracleHermes:
		if c.Oracle.BaseURL == "" {
			return fmt.Errorf("oracle.base_url is required for the hermes driver")
		}
	case OracleStatic:
	default:
		return fmt.Errorf("oracle.driver %q is not supported", c.Oracle.Driver)
	}

	if c.Conversion.BaseUnitScale == 0 {
		return fmt.Errorf("conversion.base_unit_scale must be greater than zero")
	}

	switch c.Ledger.Driver {
	case LedgerMemory:
		seen := make(map[string]struct{}, len(c.Ledger.Memory.Accounts))
		for _, acct := range c.Ledger.Memory.Accounts {
			if strings.TrimSpace(acct.ID) == "" {
				return fmt.Errorf("ledger.memory.accounts: id is required")
			}
			if _, dup := seen[acct.ID]; dup {
				return fmt.Errorf("ledger.memory.accounts: duplicate id %q", acct.ID)
			}
			seen[acct.ID] = struct{}{}
		}
	case LedgerPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres ledger")
		}
	case LedgerEVM:
		if c.Ledger.EVM.RPCURL == "" {
			return fmt.Errorf("ledger.evm.rpc_url is required for the evm ledger")
		}
		if c.Ledger.EVM.PrivateKey == "" {
			return fmt.Errorf("ledger.evm.private_key is required for the evm ledger")
		}
		if c.Ledger.EVM.WeiPerBaseUnit == 0 {
			return fmt.Errorf("ledger.evm.wei_per_base_unit must be greater than zero")
		}
	default:
		return fmt.Errorf("ledger.driver %q is not supported", c.Ledger.Driver)
	}

	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// FeedID returns the configured feed. Validate guarantees it parses.
func (c *Config) FeedID() oracle.FeedID {
	id, _ := oracle.ResolveFeedID(c.Oracle.FeedID)
	return id
}
