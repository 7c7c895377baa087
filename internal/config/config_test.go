package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	admin := uuid.New()
	t.Setenv("FAUCET_ADMIN_ID", admin.String())
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, admin, cfg.AdminID)
	assert.Equal(t, int64(1000), cfg.WithdrawalLimit)
	assert.Equal(t, 24*time.Hour, cfg.CooldownWindow())
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 8080, cfg.Port)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "faucet.transfers", cfg.KafkaTopic)
}

func TestLoad_DotEnvFile(t *testing.T) {
	admin := uuid.New()
	path := filepath.Join(t.TempDir(), ".env")
	content := "FAUCET_ADMIN_ID=" + admin.String() + "\n" +
		"JWT_SECRET=from-file\n" +
		"FAUCET_WITHDRAWAL_LIMIT=2500\n" +
		"FAUCET_COOLDOWN_S=60\n" +
		"KAFKA_BROKERS=kafka-1:9092,kafka-2:9092\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// register cleanup for every key the file sets so other tests see a clean env
	for _, k := range []string{"FAUCET_ADMIN_ID", "JWT_SECRET", "FAUCET_WITHDRAWAL_LIMIT", "FAUCET_COOLDOWN_S", "KAFKA_BROKERS"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, admin, cfg.AdminID)
	assert.Equal(t, "from-file", cfg.JWTSecret)
	assert.Equal(t, int64(2500), cfg.WithdrawalLimit)
	assert.Equal(t, time.Minute, cfg.CooldownWindow())
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing admin",
			env:  map[string]string{"JWT_SECRET": "s"},
		},
		{
			name: "malformed admin",
			env:  map[string]string{"FAUCET_ADMIN_ID": "not-a-uuid", "JWT_SECRET": "s"},
		},
		{
			name: "nil admin",
			env:  map[string]string{"FAUCET_ADMIN_ID": uuid.Nil.String(), "JWT_SECRET": "s"},
		},
		{
			name: "zero limit",
			env:  map[string]string{"FAUCET_ADMIN_ID": uuid.NewString(), "JWT_SECRET": "s", "FAUCET_WITHDRAWAL_LIMIT": "0"},
		},
		{
			name: "negative window",
			env:  map[string]string{"FAUCET_ADMIN_ID": uuid.NewString(), "JWT_SECRET": "s", "FAUCET_COOLDOWN_S": "-1"},
		},
		{
			name: "window overflows duration",
			env:  map[string]string{"FAUCET_ADMIN_ID": uuid.NewString(), "JWT_SECRET": "s", "FAUCET_COOLDOWN_S": "9223372037"},
		},
		{
			name: "missing jwt secret",
			env:  map[string]string{"FAUCET_ADMIN_ID": uuid.NewString()},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for _, k := range []string{"FAUCET_ADMIN_ID", "JWT_SECRET", "FAUCET_WITHDRAWAL_LIMIT", "FAUCET_COOLDOWN_S"} {
				t.Setenv(k, "")
				os.Unsetenv(k)
			}
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			require.Error(t, err)
		})
	}
}
