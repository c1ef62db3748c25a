// Package config loads runtime configuration from environment variables and
// an optional YAML profile. Environment always wins over the profile so a
// deployment can hard-override a checked-in file.
//
// The private key password is intentionally absent from Config: it is read
// on demand from ANCHOR_PRIVATE_KEY_PASSWORD and never persisted, serialized
// or logged.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
)

// EnvPrivateKeyPassword names the only channel the key password may arrive
// through.
const EnvPrivateKeyPassword = "ANCHOR_PRIVATE_KEY_PASSWORD"

// Config holds runtime configuration.
type Config struct {
	// DataDir is the root for agent identities and documents.
	DataDir string
	// TrustStoreRoot is the trusted-agent record directory.
	TrustStoreRoot string
	// SchemaDir holds *.schema.json document schemas. Empty disables schema
	// validation.
	SchemaDir string
	// StorageBackend selects document persistence: "fs" or "sqlite".
	StorageBackend string

	// DefaultAlgorithm is the signature algorithm for new identities.
	DefaultAlgorithm contracts.Algorithm

	// DNSValidate, DNSRequired and DNSStrict set the process-wide DNS anchor
	// posture. Per-call flags and verified claims may force these upward,
	// never downward.
	DNSValidate bool
	DNSRequired bool
	DNSStrict   bool

	// MaxSignatureAge rejects signatures older than this during verification.
	// Zero disables the age check.
	MaxSignatureAge time.Duration

	// StrictTLS is handed to network collaborators making HTTPS calls on the
	// engine's behalf. The core itself never opens TLS connections. Defaults
	// to true; disabling it requires an explicit opt-out.
	StrictTLS bool

	LogLevel string
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() *Config {
	cfg := &Config{
		DataDir:          envOr("ANCHOR_DATA_DIR", "./anchor-data"),
		TrustStoreRoot:   os.Getenv("ANCHOR_TRUST_STORE"),
		SchemaDir:        os.Getenv("ANCHOR_SCHEMA_DIR"),
		StorageBackend:   envOr("ANCHOR_STORAGE", "fs"),
		DefaultAlgorithm: contracts.Algorithm(envOr("ANCHOR_ALGORITHM", string(contracts.AlgorithmEd25519))),
		DNSValidate:      envBool("ANCHOR_DNS_VALIDATE"),
		DNSRequired:      envBool("ANCHOR_DNS_REQUIRED"),
		DNSStrict:        envBool("ANCHOR_DNS_STRICT"),
		StrictTLS:        envOr("ANCHOR_STRICT_TLS", "true") != "false",
		LogLevel:         envOr("ANCHOR_LOG_LEVEL", "INFO"),
	}
	if cfg.TrustStoreRoot == "" {
		cfg.TrustStoreRoot = cfg.DataDir + "/trust"
	}
	if v := os.Getenv("ANCHOR_MAX_SIGNATURE_AGE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.MaxSignatureAge = d
		}
	}
	return cfg
}

// PrivateKeyPassword reads the key password from the environment at the
// moment it is needed. Returns false when unset.
func PrivateKeyPassword() (string, bool) {
	pw := os.Getenv(EnvPrivateKeyPassword)
	return pw, pw != ""
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && v
}
