package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaultsPerService(t *testing.T) {
	t.Setenv("SERVICE_NAME", "bet-service")

	cfg := Load()

	assert.Equal(t, "8083", cfg.HTTPPort)
	assert.Equal(t, "9099", cfg.MetricsPort)
	assert.Equal(t, int64(1_000), cfg.StakeMinMinor)
	assert.Equal(t, int64(50_000), cfg.WithdrawalMinMinor)
	assert.Equal(t, "bet_placed", cfg.TopicBetPlaced)
	assert.Equal(t, 30*time.Second, cfg.CatalogCacheTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "wallet-service")
	t.Setenv("HTTP_PORT_WALLET", "9000")
	t.Setenv("STAKE_MAX_MINOR", "5_000_000")
	t.Setenv("DEPOSIT_MIN_MINOR", "not-a-number")
	t.Setenv("CATALOG_CACHE_TTL", "5s")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")

	cfg := Load()

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, int64(5_000_000), cfg.StakeMaxMinor)
	assert.Equal(t, int64(10_000), cfg.DepositMinMinor)
	assert.Equal(t, 5*time.Second, cfg.CatalogCacheTTL)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Brokers())
}

func TestLoadSimulator(t *testing.T) {
	t.Setenv("SERVICE_NAME", "supplier-simulator")
	t.Setenv("SIM_GATEWAY_ID", "gw-1")

	cfg := Load()

	assert.Equal(t, "8090", cfg.HTTPPort)
	assert.Equal(t, "gw-1", cfg.SimGatewayID)
	assert.Equal(t, "http://localhost:8082", cfg.SimWalletURL)
}
