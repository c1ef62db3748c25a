package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
)

// Profile is the YAML file shape. All fields are optional; only explicitly
// present values are applied over the environment-derived config.
//
// The file must never contain key material or passwords; a password key in
// the profile is rejected outright rather than ignored.
type Profile struct {
	DataDir          string `yaml:"data_dir,omitempty"`
	TrustStoreRoot   string `yaml:"trust_store,omitempty"`
	SchemaDir        string `yaml:"schema_dir,omitempty"`
	StorageBackend   string `yaml:"storage,omitempty"`
	DefaultAlgorithm string `yaml:"algorithm,omitempty"`

	DNS struct {
		Validate *bool `yaml:"validate,omitempty"`
		Required *bool `yaml:"required,omitempty"`
		Strict   *bool `yaml:"strict,omitempty"`
	} `yaml:"dns,omitempty"`

	MaxSignatureAge string `yaml:"max_signature_age,omitempty"`
	StrictTLS       *bool  `yaml:"strict_tls,omitempty"`
	LogLevel        string `yaml:"log_level,omitempty"`
}

// LoadProfile reads path and layers it under the current config: the profile
// fills gaps, the environment keeps precedence for anything it already set.
func LoadProfile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("profile read: %w", err)
	}

	// Refuse profiles that try to smuggle a password in.
	var probe map[string]any
	if err := yaml.Unmarshal(raw, &probe); err != nil {
		return fmt.Errorf("profile parse: %w", err)
	}
	for _, key := range []string{"password", "private_key_password"} {
		if _, found := probe[key]; found {
			return fmt.Errorf("profile %s: passwords must come from %s, not config files", path, EnvPrivateKeyPassword)
		}
	}

	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return fmt.Errorf("profile parse: %w", err)
	}

	applyIfUnset := func(envKey string, dst *string, val string) {
		if val != "" && os.Getenv(envKey) == "" {
			*dst = val
		}
	}
	applyIfUnset("ANCHOR_DATA_DIR", &cfg.DataDir, p.DataDir)
	applyIfUnset("ANCHOR_TRUST_STORE", &cfg.TrustStoreRoot, p.TrustStoreRoot)
	applyIfUnset("ANCHOR_SCHEMA_DIR", &cfg.SchemaDir, p.SchemaDir)
	applyIfUnset("ANCHOR_STORAGE", &cfg.StorageBackend, p.StorageBackend)
	applyIfUnset("ANCHOR_LOG_LEVEL", &cfg.LogLevel, p.LogLevel)

	if p.DefaultAlgorithm != "" && os.Getenv("ANCHOR_ALGORITHM") == "" {
		alg := contracts.Algorithm(p.DefaultAlgorithm)
		if !alg.Known() {
			return fmt.Errorf("profile %s: unknown algorithm %q", path, p.DefaultAlgorithm)
		}
		cfg.DefaultAlgorithm = alg
	}

	if p.DNS.Validate != nil && os.Getenv("ANCHOR_DNS_VALIDATE") == "" {
		cfg.DNSValidate = *p.DNS.Validate
	}
	if p.DNS.Required != nil && os.Getenv("ANCHOR_DNS_REQUIRED") == "" {
		cfg.DNSRequired = *p.DNS.Required
	}
	if p.DNS.Strict != nil && os.Getenv("ANCHOR_DNS_STRICT") == "" {
		cfg.DNSStrict = *p.DNS.Strict
	}
	if p.StrictTLS != nil && os.Getenv("ANCHOR_STRICT_TLS") == "" {
		cfg.StrictTLS = *p.StrictTLS
	}

	if p.MaxSignatureAge != "" && os.Getenv("ANCHOR_MAX_SIGNATURE_AGE") == "" {
		d, err := time.ParseDuration(p.MaxSignatureAge)
		if err != nil || d <= 0 {
			return fmt.Errorf("profile %s: bad max_signature_age %q", path, p.MaxSignatureAge)
		}
		cfg.MaxSignatureAge = d
	}
	return nil
}
