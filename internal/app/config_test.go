package app

import (
	"testing"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func load(t *testing.T) (*Config, error) {
	t.Helper()
	return loadConfig(aconfig.Config{
		EnvPrefix: "SHOP",
		SkipFlags: true,
		SkipFiles: true,
	})
}

func clearPlatformEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PORT", "")
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("SHOP_STORAGE", "memory")

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, defaultAddr, cfg.Addr)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, 5*time.Second, cfg.Orders.TxTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Redis.ClaimTTL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Second, cfg.Graceful.ShutdownTimeout)

	rates, err := cfg.ShippingRates()
	require.NoError(t, err)
	assert.Equal(t, "4.99", rates["standard"].StringFixed(2))
	assert.Equal(t, "12.99", rates["express"].StringFixed(2))
}

func TestLoadConfig_Env(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("SHOP_DATABASE_URL", "postgres://shop@db/shop")
	t.Setenv("SHOP_ORDERS_TX_TIMEOUT", "2s")
	t.Setenv("SHOP_SHIPPING_RATES", "pickup=0,courier=20")
	t.Setenv("SHOP_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PORT", "9000")

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, "postgres://shop@db/shop", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)
	assert.Equal(t, 2*time.Second, cfg.Orders.TxTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)

	rates, err := cfg.ShippingRates()
	require.NoError(t, err)
	assert.Len(t, rates, 2)
	assert.True(t, rates["pickup"].IsZero())
}

func TestLoadConfig_PlatformDatabaseURL(t *testing.T) {
	clearPlatformEnv(t)
	t.Setenv("DATABASE_URL", "postgres://platform/db")

	cfg, err := load(t)
	require.NoError(t, err)
	assert.Equal(t, "postgres://platform/db", cfg.DatabaseURL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	for _, tt := range []struct {
		name string
		env  map[string]string
	}{
		{name: "MissingDatabaseURL", env: map[string]string{}},
		{name: "UnknownStorage", env: map[string]string{"SHOP_STORAGE": "sqlite"}},
		{name: "BadRate", env: map[string]string{"SHOP_STORAGE": "memory", "SHOP_SHIPPING_RATES": "standard"}},
		{name: "NegativeRate", env: map[string]string{"SHOP_STORAGE": "memory", "SHOP_SHIPPING_RATES": "standard=-1"}},
		{name: "ZeroTimeout", env: map[string]string{"SHOP_STORAGE": "memory", "SHOP_ORDERS_TX_TIMEOUT": "0s"}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			clearPlatformEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := load(t)
			require.Error(t, err)
		})
	}
}
