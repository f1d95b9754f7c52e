package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Ledger struct {
	// Driver is "memory" or "postgres".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type TON struct {
	API        string `mapstructure:"api"`
	APIKey     string `mapstructure:"api_key"`
	Wallet     string `mapstructure:"wallet"`
	MinDeposit string `mapstructure:"min_deposit"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	Secret     string        `mapstructure:"secret"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	// LinkTTL is how long a session link token stays redeemable.
	LinkTTL time.Duration `mapstructure:"link_ttl"`

	StakeTiers    []int64                  `mapstructure:"stake_tiers"`
	Quorum        int                      `mapstructure:"quorum"`
	GracePeriod   time.Duration            `mapstructure:"grace_period"`
	BettingWindow time.Duration            `mapstructure:"betting_window"`
	RakePercent   int64                    `mapstructure:"rake_percent"`
	Countdown     []time.Duration          `mapstructure:"countdown"`
	Cooldowns     map[string]time.Duration `mapstructure:"cooldowns"`
	WithdrawTTL   time.Duration            `mapstructure:"withdraw_ttl"`
	SweepPeriod   time.Duration            `mapstructure:"sweep_period"`
	OpTimeout     time.Duration            `mapstructure:"op_timeout"`
	NotifyBuffer  int                      `mapstructure:"notify_buffer"`
	AdminID       int64                    `mapstructure:"admin_id"`
	// Seed fixes the filler side generator; zero means random.
	Seed uint64 `mapstructure:"seed"`

	Ledger Ledger `mapstructure:"ledger"`
	TON    TON    `mapstructure:"ton"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Info().Str("module", "config").Msg("loaded .env")
	}

	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("LUCKY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("ledger", cfg.Ledger.Driver).Msg("config ready")
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 4096)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")
	v.SetDefault("link_ttl", "10m")

	v.SetDefault("stake_tiers", []int64{100, 300, 500, 1000})
	v.SetDefault("quorum", 3)
	v.SetDefault("grace_period", "10s")
	v.SetDefault("betting_window", "30s")
	v.SetDefault("rake_percent", 20)
	v.SetDefault("countdown", []string{"5s", "4s", "3s", "2s", "1s"})
	v.SetDefault("cooldowns", map[string]string{
		"deposit_check": "60s",
		"withdraw":      "60s",
	})
	v.SetDefault("withdraw_ttl", "5m")
	v.SetDefault("sweep_period", "1m")
	v.SetDefault("op_timeout", "10s")
	v.SetDefault("notify_buffer", 1024)
	v.SetDefault("admin_id", 0)
	v.SetDefault("seed", 0)

	v.SetDefault("ledger.driver", "memory")
	v.SetDefault("ledger.dsn", "")
	v.SetDefault("ton.api", "https://toncenter.com/api/v2")
	v.SetDefault("ton.api_key", "")
	v.SetDefault("ton.wallet", "")
	v.SetDefault("ton.min_deposit", "0.1")
}

const minSecretLen = 32

func (c *Config) Validate() error {
	var errs []error
	if len(c.Secret) < minSecretLen {
		errs = append(errs, fmt.Errorf("secret must be at least %d bytes", minSecretLen))
	}
	if len(c.StakeTiers) == 0 {
		errs = append(errs, errors.New("stake_tiers must not be empty"))
	}
	for _, t := range c.StakeTiers {
		if t <= 0 {
			errs = append(errs, fmt.Errorf("stake tier %d must be positive", t))
		}
	}
	if c.Quorum < 2 {
		errs = append(errs, fmt.Errorf("quorum %d must be at least 2", c.Quorum))
	}
	if c.RakePercent < 0 || c.RakePercent >= 100 {
		errs = append(errs, fmt.Errorf("rake_percent %d out of range", c.RakePercent))
	}
	if c.GracePeriod <= 0 || c.BettingWindow <= 0 {
		errs = append(errs, errors.New("grace_period and betting_window must be positive"))
	}
	if c.SweepPeriod <= 0 || c.OpTimeout <= 0 || c.LinkTTL <= 0 {
		errs = append(errs, errors.New("sweep_period, op_timeout and link_ttl must be positive"))
	}
	switch c.Ledger.Driver {
	case "memory":
	case "postgres":
		if c.Ledger.DSN == "" {
			errs = append(errs, errors.New("ledger.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown ledger driver %q", c.Ledger.Driver))
	}
	if _, err := c.MinDeposit(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// MinDeposit returns the smallest accepted transfer in TON.
func (c *Config) MinDeposit() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(c.TON.MinDeposit)
	if err != nil || !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("ton.min_deposit %q must be a positive decimal", c.TON.MinDeposit)
	}
	return d, nil
}
