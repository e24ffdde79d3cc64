package ops

import (
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/yanun0323/errors"
	"gopkg.in/yaml.v3"

	"vblock/pkg/conn"
	"vblock/pkg/exception"
)

// EnvPrefix prefixes every environment override, e.g. VBLOCK_SERVER_ADDRESS.
const EnvPrefix = "VBLOCK_"

// Config is the layout of the YAML config file shared by both commands.
type Config struct {
	Debug bool `yaml:"debug" env:"DEBUG"`

	Server  ServerConfig  `yaml:"server" envPrefix:"SERVER_"`
	Proxy   ProxyConfig   `yaml:"proxy" envPrefix:"PROXY_"`
	Block   BlockConfig   `yaml:"block" envPrefix:"BLOCK_"`
	Feed    FeedConfig    `yaml:"feed" envPrefix:"FEED_"`
	Sinks   SinkConfig    `yaml:"sinks" envPrefix:"SINK_"`
	Profile ProfileConfig `yaml:"profile" envPrefix:"PYROSCOPE_"`

	Subscriptions []SubscriptionConfig `yaml:"subscriptions"`
}

// ServerConfig configures the dispatcher of cmd/blockd.
type ServerConfig struct {
	Address      string        `yaml:"address" env:"ADDRESS"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	StaleAfter   time.Duration `yaml:"stale_after" env:"STALE_AFTER"`
	DatagramSize int           `yaml:"datagram_size" env:"DATAGRAM_SIZE"`
}

// ProxyConfig configures the client side of cmd/intervalize.
type ProxyConfig struct {
	Address      string        `yaml:"address" env:"ADDRESS"`
	CallTimeout  time.Duration `yaml:"call_timeout" env:"CALL_TIMEOUT"`
	DatagramSize int           `yaml:"datagram_size" env:"DATAGRAM_SIZE"`
}

// BlockConfig holds the arguments of the remote block create call.
type BlockConfig struct {
	Size    int           `yaml:"size" env:"SIZE"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// FeedConfig drives the tick simulator.
type FeedConfig struct {
	Symbols   []string `yaml:"symbols" env:"SYMBOLS" envSeparator:","`
	Rate      float64  `yaml:"rate" env:"RATE"`
	BasePrice float64  `yaml:"base_price" env:"BASE_PRICE"`
	Step      float64  `yaml:"step" env:"STEP"`
	Spread    float64  `yaml:"spread" env:"SPREAD"`
	BaseSize  int64    `yaml:"base_size" env:"BASE_SIZE"`
	Seed      uint64   `yaml:"seed" env:"SEED"`
}

// SinkConfig selects where finished bars go.
type SinkConfig struct {
	Log          bool          `yaml:"log" env:"LOG"`
	QueueSize    int           `yaml:"queue_size" env:"QUEUE_SIZE"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`

	Postgres conn.Postgres `yaml:"postgres" envPrefix:"POSTGRES_"`
	Redis    conn.Redis    `yaml:"redis" envPrefix:"REDIS_"`
}

// ProfileConfig enables continuous profiling when ServerAddress is set.
type ProfileConfig struct {
	ServerAddress   string `yaml:"server_address" env:"SERVER_ADDRESS"`
	ApplicationName string `yaml:"application_name" env:"APPLICATION_NAME"`
}

// SubscriptionConfig is one bar series to build.
type SubscriptionConfig struct {
	Item     string `yaml:"item"`
	Topic    string `yaml:"topic"`
	Kind     string `yaml:"kind"`
	Interval string `yaml:"interval"`

	UpdatePeriod   time.Duration `yaml:"update_period"`
	FailOnDataLoss *bool         `yaml:"fail_on_data_loss"`
	PreRoll        bool          `yaml:"pre_roll"`
	Location       string        `yaml:"location"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Address:      "127.0.0.1:7070",
			ReadTimeout:  500 * time.Millisecond,
			StaleAfter:   5 * time.Second,
			DatagramSize: 512,
		},
		Proxy: ProxyConfig{
			Address:      "127.0.0.1:7070",
			CallTimeout:  2 * time.Second,
			DatagramSize: 512,
		},
		Block: BlockConfig{Size: 1000, Timeout: 2 * time.Second},
		Feed: FeedConfig{
			Symbols:   []string{"SPY"},
			Rate:      20,
			BasePrice: 100,
			Step:      0.05,
			Spread:    0.01,
			BaseSize:  10,
			Seed:      1,
		},
		Sinks: SinkConfig{
			Log:          true,
			QueueSize:    1024,
			WriteTimeout: 3 * time.Second,
		},
		Profile: ProfileConfig{ApplicationName: "vblock"},
	}
}

// Load layers the YAML file at path (optional), a .env file (optional) and VBLOCK_* variables
// over Default, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config file").With("path", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, errors.Wrap(err, "parse config file").With("path", path)
		}
	}

	_ = godotenv.Load()
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail after sockets are open.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Server.Address) == "" && strings.TrimSpace(c.Proxy.Address) == "" {
		return errors.Wrap(exception.ErrConfig, "server or proxy address is required")
	}
	if c.Block.Size <= 0 {
		return errors.Wrap(exception.ErrConfig, "block size must be positive").With("size", c.Block.Size)
	}
	if c.Block.Timeout < 0 {
		return errors.Wrap(exception.ErrConfig, "block timeout must not be negative").With("timeout", c.Block.Timeout)
	}
	if c.Feed.Rate < 0 {
		return errors.Wrap(exception.ErrConfig, "feed rate must not be negative").With("rate", c.Feed.Rate)
	}
	if c.Sinks.QueueSize <= 0 {
		return errors.Wrap(exception.ErrConfig, "sink queue size must be positive").With("queue_size", c.Sinks.QueueSize)
	}
	if _, err := c.Intervalizers(); err != nil {
		return err
	}
	return nil
}
