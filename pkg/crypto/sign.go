package crypto

import (
	stdcrypto "crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"fmt"

	"github.com/cloudflare/circl/sign/schemes"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
)

// Sign produces a signature over msg with the given private key material.
// Every signing path goes through this switch; an algorithm absent here
// cannot sign.
func Sign(priv []byte, alg contracts.Algorithm, msg []byte) ([]byte, error) {
	switch alg {
	case contracts.AlgorithmEd25519:
		if len(priv) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("%w: ed25519 private key length %d", ErrBadKeyMaterial, len(priv))
		}
		return ed25519.Sign(ed25519.PrivateKey(priv), msg), nil

	case contracts.AlgorithmRSAPSS:
		key, err := parseRSAPrivate(priv)
		if err != nil {
			return nil, err
		}
		digest := sha256.Sum256(msg)
		sig, err := rsa.SignPSS(rand.Reader, key, stdcrypto.SHA256, digest[:], nil)
		if err != nil {
			return nil, fmt.Errorf("rsa-pss sign: %w", err)
		}
		return sig, nil

	case contracts.AlgorithmMLDSA87:
		return schemeSign(mldsaSchemeName, priv, msg)

	case contracts.AlgorithmDilithiumLegacy:
		return nil, fmt.Errorf("%w: %q", ErrLegacySignRefused, alg)

	case contracts.AlgorithmHybrid:
		if len(priv) <= ed25519.PrivateKeySize {
			return nil, fmt.Errorf("%w: hybrid private key too short", ErrBadKeyMaterial)
		}
		edSig := ed25519.Sign(ed25519.PrivateKey(priv[:ed25519.PrivateKeySize]), msg)
		mlSig, err := schemeSign(mldsaSchemeName, priv[ed25519.PrivateKeySize:], msg)
		if err != nil {
			return nil, err
		}
		return append(edSig, mlSig...), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

// Verify checks sig over msg against raw public key material. A nil return
// means the signature is cryptographically valid; any failure is reported as
// a wrapped ErrSignatureInvalid (or ErrBadKeyMaterial for undecodable keys).
func Verify(pub []byte, alg contracts.Algorithm, msg, sig []byte) error {
	switch alg {
	case contracts.AlgorithmEd25519:
		if len(pub) != ed25519.PublicKeySize {
			return fmt.Errorf("%w: ed25519 public key length %d", ErrBadKeyMaterial, len(pub))
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), msg, sig) {
			return fmt.Errorf("%w: ed25519", ErrSignatureInvalid)
		}
		return nil

	case contracts.AlgorithmRSAPSS:
		key, err := parseRSAPublic(pub)
		if err != nil {
			return err
		}
		digest := sha256.Sum256(msg)
		if err := rsa.VerifyPSS(key, stdcrypto.SHA256, digest[:], sig, nil); err != nil {
			return fmt.Errorf("%w: rsa-pss: %v", ErrSignatureInvalid, err)
		}
		return nil

	case contracts.AlgorithmMLDSA87:
		return schemeVerify(mldsaSchemeName, pub, msg, sig)

	case contracts.AlgorithmDilithiumLegacy:
		return schemeVerify(legacySchemeName, pub, msg, sig)

	case contracts.AlgorithmHybrid:
		if len(pub) <= ed25519.PublicKeySize || len(sig) <= ed25519.SignatureSize {
			return fmt.Errorf("%w: hybrid material too short", ErrBadKeyMaterial)
		}
		edPub := pub[:ed25519.PublicKeySize]
		edSig := sig[:ed25519.SignatureSize]
		if !ed25519.Verify(ed25519.PublicKey(edPub), msg, edSig) {
			return fmt.Errorf("%w: hybrid ed25519 half", ErrSignatureInvalid)
		}
		return schemeVerify(mldsaSchemeName,
			pub[ed25519.PublicKeySize:], msg, sig[ed25519.SignatureSize:])

	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}
}

func schemeSign(name string, priv, msg []byte) ([]byte, error) {
	scheme := schemes.ByName(name)
	if scheme == nil {
		return nil, fmt.Errorf("%w: scheme %q unavailable", ErrUnsupportedAlgorithm, name)
	}
	sk, err := scheme.UnmarshalBinaryPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("%w: %s private key: %v", ErrBadKeyMaterial, name, err)
	}
	return scheme.Sign(sk, msg, nil), nil
}

func schemeVerify(name string, pub, msg, sig []byte) error {
	scheme := schemes.ByName(name)
	if scheme == nil {
		return fmt.Errorf("%w: scheme %q unavailable", ErrUnsupportedAlgorithm, name)
	}
	pk, err := scheme.UnmarshalBinaryPublicKey(pub)
	if err != nil {
		return fmt.Errorf("%w: %s public key: %v", ErrBadKeyMaterial, name, err)
	}
	if !scheme.Verify(pk, msg, sig, nil) {
		return fmt.Errorf("%w: %s", ErrSignatureInvalid, name)
	}
	return nil
}

func parseRSAPrivate(der []byte) (*rsa.PrivateKey, error) {
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: rsa private key: %v", ErrBadKeyMaterial, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: PKCS#8 blob is not RSA", ErrBadKeyMaterial)
	}
	return key, nil
}

func parseRSAPublic(der []byte) (*rsa.PublicKey, error) {
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("%w: rsa public key: %v", ErrBadKeyMaterial, err)
	}
	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: PKIX blob is not RSA", ErrBadKeyMaterial)
	}
	return key, nil
}
