package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, "*/5 * * * *", cfg.SweepSchedule)
	assert.Equal(t, 15*time.Second, cfg.PaymentTimeout)
	assert.Equal(t, "least-loaded", cfg.AgentPolicy)
	assert.Equal(t, "user:password@tcp(127.0.0.1:3306)/salvage_market?parseTime=true&loc=UTC", cfg.DSN())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite3")
	t.Setenv("SQLITE_PATH", "/tmp/market.db")
	t.Setenv("PAYMENT_TIMEOUT", "3s")
	t.Setenv("OPERATOR_IDS", "op-1,op-2")
	t.Setenv("AGENT_POLICY", "round-robin")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "file:/tmp/market.db?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", cfg.DSN())
	assert.Equal(t, 3*time.Second, cfg.PaymentTimeout)
	assert.Equal(t, "round-robin", cfg.AgentPolicy)
	assert.True(t, cfg.IsOperator("op-2"))
	assert.False(t, cfg.IsOperator("user-9"))
	assert.False(t, cfg.IsOperator(""))
}

func TestLoadRejectsBadSchedule(t *testing.T) {
	t.Setenv("SWEEP_SCHEDULE", "every five minutes")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SWEEP_SCHEDULE")
}

func TestValidateRejectsUnknownDriver(t *testing.T) {
	cfg := &Config{DBDriver: "postgres", SweepSchedule: "* * * * *", PaymentTimeout: time.Second, AgentPolicy: "random"}
	assert.Error(t, cfg.Validate())
}
