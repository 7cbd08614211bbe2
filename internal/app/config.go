package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/xenking/storefront-orders/internal/domain/pricing"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	defaultAddr = "0.0.0.0:8080"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, a .env file, or YAML config
// files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Storage     string `default:"postgres" usage:"Storage backend: postgres or memory"`
	DatabaseURL string `usage:"PostgreSQL connection URL (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	SeedFile    string `default:"" usage:"Catalog JSON loaded on start" flag:"seed-file"`
	Orders      OrdersConfig
	Shipping    ShippingConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Graceful    GracefulConfig
}

// OrdersConfig tunes the order service.
type OrdersConfig struct {
	TxTimeout time.Duration `default:"5s" usage:"Deadline for a single order unit of work" flag:"tx-timeout"`
}

// ShippingConfig lists the flat shipping rates as name=price pairs.
type ShippingConfig struct {
	Rates []string `default:"standard=4.99,express=12.99" usage:"Shipping rates as name=price pairs"`
}

// RedisConfig enables payment deduplication when Addr is set.
type RedisConfig struct {
	Addr     string        `default:"" usage:"Redis address (host:port)"`
	Password string        `default:"" usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database"`
	ClaimTTL time.Duration `default:"24h" usage:"How long processed payment references are remembered" flag:"claim-ttl"`
}

// KafkaConfig enables order events and the payment consumer when Brokers is
// set.
type KafkaConfig struct {
	Brokers       []string `default:"" usage:"Kafka bootstrap brokers"`
	ClientID      string   `default:"storefront-orders" usage:"Kafka client ID"`
	GroupID       string   `default:"storefront-orders" usage:"Consumer group for payment confirmations"`
	PaymentsTopic string   `default:"payments.confirmed" usage:"Topic carrying payment confirmations"`
	EventsTopic   string   `default:"orders.events" usage:"Topic receiving order events"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads .env, environment variables, flags and YAML config files,
// then applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}
	return loadConfig(aconfig.Config{
		EnvPrefix: "SHOP",
		Files:     []string{"config.yaml", "/etc/shop/config.yaml"},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	ac.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}

	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	cfg.Kafka.Brokers = nonEmpty(cfg.Kafka.Brokers)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
		}
	case StorageMemory:
	default:
		return errors.Errorf("unknown storage %q: want %s or %s", c.Storage, StoragePostgres, StorageMemory)
	}
	if _, err := c.ShippingRates(); err != nil {
		return err
	}
	if c.Orders.TxTimeout <= 0 {
		return errors.New("orders tx timeout must be positive")
	}
	return nil
}

// ShippingRates parses the configured shipping rates.
func (c *Config) ShippingRates() (pricing.ShippingRates, error) {
	rates, err := pricing.ParseShippingRates(c.Shipping.Rates)
	if err != nil {
		return nil, errors.Wrap(err, "shipping rates")
	}
	return rates, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's SHOP_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func nonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
