package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/anchor/pkg/config"
	"github.com/Mindburn-Labs/anchor/pkg/contracts"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ANCHOR_DATA_DIR", "ANCHOR_TRUST_STORE", "ANCHOR_SCHEMA_DIR",
		"ANCHOR_STORAGE", "ANCHOR_ALGORITHM", "ANCHOR_DNS_VALIDATE",
		"ANCHOR_DNS_REQUIRED", "ANCHOR_DNS_STRICT", "ANCHOR_MAX_SIGNATURE_AGE",
		"ANCHOR_STRICT_TLS", "ANCHOR_LOG_LEVEL", config.EnvPrivateKeyPassword,
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := config.Load()

	assert.Equal(t, "./anchor-data", cfg.DataDir)
	assert.Equal(t, "./anchor-data/trust", cfg.TrustStoreRoot)
	assert.Equal(t, "fs", cfg.StorageBackend)
	assert.Equal(t, contracts.AlgorithmEd25519, cfg.DefaultAlgorithm)
	assert.False(t, cfg.DNSValidate)
	assert.False(t, cfg.DNSRequired)
	assert.False(t, cfg.DNSStrict)
	assert.Zero(t, cfg.MaxSignatureAge)
	assert.True(t, cfg.StrictTLS)
	assert.Equal(t, "INFO", cfg.LogLevel)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANCHOR_DATA_DIR", "/srv/anchor")
	t.Setenv("ANCHOR_STORAGE", "sqlite")
	t.Setenv("ANCHOR_ALGORITHM", "RSA-PSS")
	t.Setenv("ANCHOR_DNS_VALIDATE", "true")
	t.Setenv("ANCHOR_DNS_REQUIRED", "true")
	t.Setenv("ANCHOR_MAX_SIGNATURE_AGE", "720h")
	t.Setenv("ANCHOR_STRICT_TLS", "false")

	cfg := config.Load()

	assert.Equal(t, "/srv/anchor", cfg.DataDir)
	assert.Equal(t, "/srv/anchor/trust", cfg.TrustStoreRoot)
	assert.Equal(t, "sqlite", cfg.StorageBackend)
	assert.Equal(t, contracts.AlgorithmRSAPSS, cfg.DefaultAlgorithm)
	assert.True(t, cfg.DNSValidate)
	assert.True(t, cfg.DNSRequired)
	assert.Equal(t, 720*time.Hour, cfg.MaxSignatureAge)
	assert.False(t, cfg.StrictTLS)
}

func TestPrivateKeyPassword(t *testing.T) {
	clearEnv(t)

	_, ok := config.PrivateKeyPassword()
	assert.False(t, ok)

	t.Setenv(config.EnvPrivateKeyPassword, "correct-horse battery staple 42!")
	pw, ok := config.PrivateKeyPassword()
	assert.True(t, ok)
	assert.Equal(t, "correct-horse battery staple 42!", pw)
}

func TestLoadProfile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "anchor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/anchor
algorithm: hybrid-Ed25519-ML-DSA-87
dns:
  validate: true
  strict: true
max_signature_age: 24h
`), 0o600))

	cfg := config.Load()
	require.NoError(t, config.LoadProfile(path, cfg))

	assert.Equal(t, "/var/lib/anchor", cfg.DataDir)
	assert.Equal(t, contracts.AlgorithmHybrid, cfg.DefaultAlgorithm)
	assert.True(t, cfg.DNSValidate)
	assert.False(t, cfg.DNSRequired)
	assert.True(t, cfg.DNSStrict)
	assert.Equal(t, 24*time.Hour, cfg.MaxSignatureAge)
}

func TestProfileDoesNotOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANCHOR_DATA_DIR", "/from-env")
	t.Setenv("ANCHOR_DNS_STRICT", "false")

	path := filepath.Join(t.TempDir(), "anchor.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /from-profile
dns:
  strict: true
`), 0o600))

	cfg := config.Load()
	require.NoError(t, config.LoadProfile(path, cfg))

	assert.Equal(t, "/from-env", cfg.DataDir)
	assert.False(t, cfg.DNSStrict)
}

func TestProfileRejections(t *testing.T) {
	clearEnv(t)

	t.Run("password in profile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "anchor.yaml")
		require.NoError(t, os.WriteFile(path, []byte("private_key_password: hunter2\n"), 0o600))
		err := config.LoadProfile(path, config.Load())
		require.Error(t, err)
		assert.Contains(t, err.Error(), config.EnvPrivateKeyPassword)
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "anchor.yaml")
		require.NoError(t, os.WriteFile(path, []byte("algorithm: rot13\n"), 0o600))
		err := config.LoadProfile(path, config.Load())
		assert.Error(t, err)
	})

	t.Run("bad duration", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "anchor.yaml")
		require.NoError(t, os.WriteFile(path, []byte("max_signature_age: soon\n"), 0o600))
		err := config.LoadProfile(path, config.Load())
		assert.Error(t, err)
	})
}
