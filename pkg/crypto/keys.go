// Package crypto implements the algorithm-agile signature engine: one
// sign/verify dispatch over every supported scheme, so heterogeneous
// verification works regardless of the verifier's own algorithm and no code
// path can skip the downgrade guard.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"

	"github.com/cloudflare/circl/sign/schemes"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
)

const rsaKeyBits = 2048

// circl scheme names for the lattice algorithms.
const (
	mldsaSchemeName  = "ML-DSA-87"
	legacySchemeName = "Dilithium5"
)

// GenerateKeyPair creates a key pair for alg. Key material is returned as raw
// bytes: Ed25519 keys as RFC 8032 encodings, RSA as PKCS#8/PKIX DER, lattice
// keys in their FIPS 204 binary form, hybrid as the Ed25519 part followed by
// the ML-DSA part.
func GenerateKeyPair(alg contracts.Algorithm) (pub, priv []byte, err error) {
	switch alg {
	case contracts.AlgorithmEd25519:
		edPub, edPriv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, fmt.Errorf("ed25519 keygen: %w", err)
		}
		return edPub, edPriv, nil

	case contracts.AlgorithmRSAPSS:
		key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
		if err != nil {
			return nil, nil, fmt.Errorf("rsa keygen: %w", err)
		}
		privDER, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			return nil, nil, fmt.Errorf("rsa private encode: %w", err)
		}
		pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
		if err != nil {
			return nil, nil, fmt.Errorf("rsa public encode: %w", err)
		}
		return pubDER, privDER, nil

	case contracts.AlgorithmMLDSA87:
		return generateSchemeKeyPair(mldsaSchemeName)

	case contracts.AlgorithmDilithiumLegacy:
		// Keygen still permitted so existing fixtures can be reproduced;
		// signing with the result is refused by Sign.
		return generateSchemeKeyPair(legacySchemeName)

	case contracts.AlgorithmHybrid:
		edPub, edPriv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, nil, fmt.Errorf("hybrid ed25519 keygen: %w", err)
		}
		mlPub, mlPriv, err := generateSchemeKeyPair(mldsaSchemeName)
		if err != nil {
			return nil, nil, err
		}
		return append(append([]byte{}, edPub...), mlPub...),
			append(append([]byte{}, edPriv...), mlPriv...), nil

	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

func generateSchemeKeyPair(name string) (pub, priv []byte, err error) {
	scheme := schemes.ByName(name)
	if scheme == nil {
		return nil, nil, fmt.Errorf("%w: scheme %q unavailable", ErrUnsupportedAlgorithm, name)
	}
	pk, sk, err := scheme.GenerateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("%s keygen: %w", name, err)
	}
	pub, err = pk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("%s public encode: %w", name, err)
	}
	priv, err = sk.MarshalBinary()
	if err != nil {
		return nil, nil, fmt.Errorf("%s private encode: %w", name, err)
	}
	return pub, priv, nil
}

// PublicKeyHash is the SHA-256 hex fingerprint of raw public key bytes. It is
// the stable identifier a signature carries and the value anchored in DNS.
func PublicKeyHash(pub []byte) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:])
}

// PublicKeySize returns the raw public key length for alg, used to split
// hybrid key material.
func PublicKeySize(alg contracts.Algorithm) (int, error) {
	switch alg {
	case contracts.AlgorithmEd25519:
		return ed25519.PublicKeySize, nil
	case contracts.AlgorithmMLDSA87:
		scheme := schemes.ByName(mldsaSchemeName)
		if scheme == nil {
			return 0, fmt.Errorf("%w: scheme %q unavailable", ErrUnsupportedAlgorithm, mldsaSchemeName)
		}
		return scheme.PublicKeySize(), nil
	default:
		return 0, fmt.Errorf("%w: no fixed size for %q", ErrUnsupportedAlgorithm, alg)
	}
}
