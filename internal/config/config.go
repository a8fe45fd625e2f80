package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Logging  LoggingConfig  `yaml:"logging"`
	Chain    ChainConfig    `yaml:"chain"`
	Registry RegistryConfig `yaml:"registry"`
	Output   OutputConfig   `yaml:"output"`
	Stores   StoresConfig   `yaml:"stores"`
	PubSub   PubSubConfig   `yaml:"pubsub"`
	API      APIConfig      `yaml:"api"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

type AppConfig struct {
	InstanceID      string        `yaml:"instance_id"`
	RefreshInterval time.Duration `yaml:"refresh_interval"` // flowmapd only
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|console
}

type ChainConfig struct {
	RPCURL       string `yaml:"rpc_url"`
	TokenAddress string `yaml:"token_address"`
	Decimals     int    `yaml:"decimals"`       // token decimals, default 18
	Blocks24h    uint64 `yaml:"blocks_24h"`     // lookback for the 24h period
	Blocks7d     uint64 `yaml:"blocks_7d"`      // lookback for the 7d period
	Timeout      time.Duration `yaml:"timeout"` // per RPC call
}

type RegistryConfig struct {
	Path string `yaml:"path"` // protocol -> contracts mapping (JSON)
}

type OutputConfig struct {
	DataDir string `yaml:"data_dir"` // flows_<period>.json written here
}

type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"` // report cache expiry
}

type ClickHouseWriterConfig struct {
	BatchMaxRows     int           `yaml:"batch_max_rows"`
	BatchMaxInterval time.Duration `yaml:"batch_max_interval"`
	MaxRetries       int           `yaml:"max_retries"`
	RetryBackoff     time.Duration `yaml:"retry_backoff"`
}

type ClickHouseConfig struct {
	Enabled bool                   `yaml:"enabled"`
	DSN     string                 `yaml:"dsn"`
	Table   string                 `yaml:"table"`
	Writer  ClickHouseWriterConfig `yaml:"writer"`
}

type StoresConfig struct {
	Redis      RedisConfig      `yaml:"redis"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type PubSubConfig struct {
	NATS NATSConfig `yaml:"nats"`
}

type JWTConfig struct {
	Enabled       bool   `yaml:"enabled"`
	PublicKeyPath string `yaml:"public_key_path"`
	Audience      string `yaml:"audience"`
	Issuer        string `yaml:"issuer"`
}

type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
	Methods []string `yaml:"methods"`
	Headers []string `yaml:"headers"`
}

type RateLimitConfig struct {
	Enabled      bool `yaml:"enabled"`
	RefillPerSec int  `yaml:"refill_per_sec"`
	Burst        int  `yaml:"burst"`
}

type HTTPConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	CORS         CORSConfig    `yaml:"cors"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
	JWT          JWTConfig     `yaml:"jwt"`
}

type APIConfig struct {
	HTTP HTTPConfig `yaml:"http"`
}

type PyroscopeConfig struct {
	Enabled    bool   `yaml:"enabled"`
	AppName    string `yaml:"app_name"`
	ServerAddr string `yaml:"server_addr"`
	AuthToken  string `yaml:"auth_token"`
}

type MetricsConfig struct {
	Pyroscope PyroscopeConfig `yaml:"pyroscope"`
}

// Load reads the yaml config, applies environment overrides and defaults.
// A missing file is not an error: env vars alone are enough for a one-shot run.
func Load(path string) (*Config, error) {
	var cfg Config

	b, err := os.ReadFile(path)
	if err == nil {
		if err = yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("failed parse config %s, error=%w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	return &cfg, nil
}

// RPC_URL and TOKEN_ADDRESS win over the yaml file so deployments can
// keep secrets out of the config.
func (c *Config) applyEnv() {
	if v := os.Getenv("RPC_URL"); v != "" {
		c.Chain.RPCURL = v
	}
	if v := os.Getenv("TOKEN_ADDRESS"); v != "" {
		c.Chain.TokenAddress = v
	}
	if v := os.Getenv("REGISTRY_PATH"); v != "" {
		c.Registry.Path = v
	}
	if v := os.Getenv("DATA_DIR"); v != "" {
		c.Output.DataDir = v
	}
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Chain.Decimals <= 0 {
		c.Chain.Decimals = 18
	}
	if c.Chain.Blocks24h == 0 {
		c.Chain.Blocks24h = 7200 // ~12s blocks
	}
	if c.Chain.Blocks7d == 0 {
		c.Chain.Blocks7d = 50400
	}
	if c.Chain.Timeout <= 0 {
		c.Chain.Timeout = 30 * time.Second
	}
	if c.Registry.Path == "" {
		c.Registry.Path = "config/protocols.json"
	}
	if c.Output.DataDir == "" {
		c.Output.DataDir = "data"
	}
	if c.App.RefreshInterval <= 0 {
		c.App.RefreshInterval = 5 * time.Minute
	}
	if c.App.ShutdownTimeout <= 0 {
		c.App.ShutdownTimeout = 10 * time.Second
	}
	if c.Stores.Redis.CacheTTL <= 0 {
		c.Stores.Redis.CacheTTL = time.Hour
	}
	if c.Stores.ClickHouse.Table == "" {
		c.Stores.ClickHouse.Table = "token_transfers"
	}
	if c.PubSub.NATS.SubjectPrefix == "" {
		c.PubSub.NATS.SubjectPrefix = "flows"
	}
	if c.API.HTTP.Addr == "" {
		c.API.HTTP.Addr = ":8080"
	}
}

// Validate is called before any network work starts: a run with no endpoint
// or token is refused up front rather than failing mid-fetch.
func (c *Config) Validate() error {
	var errs []error

	if c.Chain.RPCURL == "" {
		errs = append(errs, errors.New("chain.rpc_url (or RPC_URL) is required"))
	}
	if c.Chain.TokenAddress == "" {
		errs = append(errs, errors.New("chain.token_address (or TOKEN_ADDRESS) is required"))
	}
	if c.Stores.ClickHouse.Enabled && c.Stores.ClickHouse.DSN == "" {
		errs = append(errs, errors.New("stores.clickhouse.dsn is required when clickhouse is enabled"))
	}
	if c.PubSub.NATS.Enabled && c.PubSub.NATS.URL == "" {
		errs = append(errs, errors.New("pubsub.nats.url is required when nats is enabled"))
	}
	if c.API.HTTP.JWT.Enabled && c.API.HTTP.JWT.PublicKeyPath == "" {
		errs = append(errs, errors.New("api.http.jwt.public_key_path is required when jwt is enabled"))
	}

	return errors.Join(errs...)
}
