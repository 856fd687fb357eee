package config

import (
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"grid-executor/internal/model"
)

const (
	EnvAPIKey     = "GRID_API_KEY"
	EnvAPISecret  = "GRID_API_SECRET"
	EnvJournalDSN = "GRID_JOURNAL_DSN"

	// DefaultJournalDSN is the sqlite file used when the journal section names no DSN.
	DefaultJournalDSN = "grid-journal.db"
)

// Config holds every tunable of the executor. Credentials never come from the file;
// they are read from the environment or flags and kept in memory only.
type Config struct {
	Mode string `yaml:"mode"`

	Exchange struct {
		RestURL      string `yaml:"rest_url"`
		WSURL        string `yaml:"ws_url"`
		APIPrefix    string `yaml:"api_prefix"`
		RecvWindowMS int64  `yaml:"recv_window_ms"`
	} `yaml:"exchange"`

	Stream struct {
		ReconnectDelay      time.Duration `yaml:"reconnect_delay"`
		ListenKeyRenewal    time.Duration `yaml:"listen_key_renewal"`
		RenewalFailureLimit int           `yaml:"renewal_failure_limit"`
		SymbolDebounce      time.Duration `yaml:"symbol_debounce"`
	} `yaml:"stream"`

	Dispatch struct {
		OrderDelay time.Duration `yaml:"order_delay"`
	} `yaml:"dispatch"`

	Simulation struct {
		Delay       time.Duration `yaml:"delay"`
		FailureRate float64       `yaml:"failure_rate"`
	} `yaml:"simulation"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`

	Journal struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"journal"`

	Rules map[string]RuleConfig `yaml:"rules"`

	Credentials model.Credentials `yaml:"-"`
}

// RuleConfig keeps min_qty textual so "0.001" is not turned into a float on the way in.
type RuleConfig struct {
	MinQty        string `yaml:"min_qty"`
	PriceDecimals int32  `yaml:"price_decimals"`
	QtyDecimals   int32  `yaml:"qty_decimals"`
}

// Default returns a configuration for the futures testnet in simulated mode.
func Default() *Config {
	cfg := &Config{Mode: "simulated"}
	cfg.Exchange.RestURL = "https://testnet.binancefuture.com"
	cfg.Exchange.WSURL = "wss://stream.binancefuture.com"
	cfg.Exchange.APIPrefix = "/fapi/v1"
	cfg.Exchange.RecvWindowMS = 5000
	cfg.Stream.ReconnectDelay = 3 * time.Second
	cfg.Stream.ListenKeyRenewal = 50 * time.Minute
	cfg.Stream.RenewalFailureLimit = 3
	cfg.Stream.SymbolDebounce = 500 * time.Millisecond
	cfg.Dispatch.OrderDelay = 200 * time.Millisecond
	cfg.Simulation.Delay = 300 * time.Millisecond
	cfg.Logging.Level = "info"
	cfg.Journal.Driver = "sqlite"
	return cfg
}

// Load reads path over the defaults. An empty path yields defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}

	overrideWithEnv(cfg)
	if cfg.Journal.Driver == "sqlite" && cfg.Journal.DSN == "" {
		cfg.Journal.DSN = DefaultJournalDSN
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return cfg, nil
}

func overrideWithEnv(cfg *Config) {
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.Credentials.APIKey = v
	}
	if v := os.Getenv(EnvAPISecret); v != "" {
		cfg.Credentials.Secret = v
	}
	if v := os.Getenv(EnvJournalDSN); v != "" {
		cfg.Journal.DSN = v
	}
}

func (c *Config) Validate() error {
	switch c.Mode {
	case "simulated", "live":
	default:
		return errors.Errorf("mode must be simulated or live, got %q", c.Mode)
	}
	if !hasAnyPrefix(c.Exchange.RestURL, "http://", "https://") {
		return errors.Errorf("invalid REST URL: %s", c.Exchange.RestURL)
	}
	if !hasAnyPrefix(c.Exchange.WSURL, "ws://", "wss://") {
		return errors.Errorf("invalid WS URL: %s", c.Exchange.WSURL)
	}
	if c.Exchange.RecvWindowMS <= 0 || c.Exchange.RecvWindowMS > 60000 {
		return errors.Errorf("recv_window_ms must be in (0, 60000], got %d", c.Exchange.RecvWindowMS)
	}
	if c.Stream.ReconnectDelay <= 0 {
		return errors.New("stream.reconnect_delay must be positive")
	}
	if c.Stream.ListenKeyRenewal <= 0 || c.Stream.ListenKeyRenewal >= 60*time.Minute {
		return errors.New("stream.listen_key_renewal must be positive and below the 60m key lifetime")
	}
	if c.Stream.RenewalFailureLimit < 1 {
		return errors.New("stream.renewal_failure_limit must be at least 1")
	}
	if c.Dispatch.OrderDelay < 0 || c.Simulation.Delay < 0 {
		return errors.New("delays cannot be negative")
	}
	if c.Simulation.FailureRate < 0 || c.Simulation.FailureRate > 1 {
		return errors.Errorf("simulation.failure_rate must be within [0, 1], got %v", c.Simulation.FailureRate)
	}
	switch c.Journal.Driver {
	case "", "sqlite", "postgres":
	default:
		return errors.Errorf("unsupported journal driver %q", c.Journal.Driver)
	}
	_, err := c.ruleOverrides()
	return err
}

// RuleBook merges the rules section over the built-in symbol rules.
func (c *Config) RuleBook() (*model.RuleBook, error) {
	overrides, err := c.ruleOverrides()
	if err != nil {
		return nil, err
	}
	return model.NewRuleBook(overrides), nil
}

func (c *Config) ruleOverrides() (map[string]model.TradingRule, error) {
	out := make(map[string]model.TradingRule, len(c.Rules))
	for symbol, r := range c.Rules {
		minQty, err := decimal.NewFromString(strings.TrimSpace(r.MinQty))
		if err != nil {
			return nil, errors.Wrapf(err, "rules.%s.min_qty", symbol)
		}
		if !minQty.IsPositive() {
			return nil, errors.Errorf("rules.%s.min_qty must be positive", symbol)
		}
		if r.PriceDecimals < 0 || r.QtyDecimals < 0 {
			return nil, errors.Errorf("rules.%s decimals cannot be negative", symbol)
		}
		out[symbol] = model.TradingRule{
			MinQty:        minQty,
			PriceDecimals: r.PriceDecimals,
			QtyDecimals:   r.QtyDecimals,
		}
	}
	return out, nil
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
