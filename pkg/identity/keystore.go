package identity

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// ErrKeyDecryptionFailed covers both a wrong password and corrupt ciphertext;
// the two are indistinguishable by construction (AEAD failure).
var ErrKeyDecryptionFailed = errors.New("private key decryption failed")

// Argon2id parameters for the password-derived wrapping key.
const (
	kdfTime    = 3
	kdfMemory  = 64 * 1024 // KiB
	kdfThreads = 4
	kdfKeyLen  = 32
	saltLen    = 16
)

const keystoreVersion = 1

// EncryptedKey is the at-rest envelope for private key material. The
// parameters ride along so they can be raised later without breaking old
// envelopes.
type EncryptedKey struct {
	Version    int    `json:"v"`
	Salt       string `json:"salt"`  // base64
	Nonce      string `json:"nonce"` // base64
	Ciphertext string `json:"ct"`    // base64
	KDFTime    uint32 `json:"t"`
	KDFMemory  uint32 `json:"m"`
	KDFThreads uint8  `json:"p"`
}

func encryptPrivateKey(priv []byte, password string) (*EncryptedKey, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("salt generation: %w", err)
	}

	wrap := argon2.IDKey([]byte(password), salt, kdfTime, kdfMemory, kdfThreads, kdfKeyLen)
	defer zeroize(wrap)

	block, err := aes.NewCipher(wrap)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm init: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce generation: %w", err)
	}

	ct := gcm.Seal(nil, nonce, priv, nil)
	return &EncryptedKey{
		Version:    keystoreVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ct),
		KDFTime:    kdfTime,
		KDFMemory:  kdfMemory,
		KDFThreads: kdfThreads,
	}, nil
}

func decryptPrivateKey(env *EncryptedKey, password string) ([]byte, error) {
	if env == nil || env.Version != keystoreVersion {
		return nil, fmt.Errorf("%w: unsupported envelope", ErrKeyDecryptionFailed)
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: bad salt encoding", ErrKeyDecryptionFailed)
	}
	nonce, err := base64.StdEncoding.DecodeString(env.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: bad nonce encoding", ErrKeyDecryptionFailed)
	}
	ct, err := base64.StdEncoding.DecodeString(env.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext encoding", ErrKeyDecryptionFailed)
	}

	wrap := argon2.IDKey([]byte(password), salt, env.KDFTime, env.KDFMemory, env.KDFThreads, kdfKeyLen)
	defer zeroize(wrap)

	block, err := aes.NewCipher(wrap)
	if err != nil {
		return nil, fmt.Errorf("cipher init: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm init: %w", err)
	}
	priv, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrKeyDecryptionFailed
	}
	return priv, nil
}

// marshalEnvelope / unmarshalEnvelope keep the JSON shape in one place.
func marshalEnvelope(env *EncryptedKey) ([]byte, error) {
	return json.Marshal(env)
}

func unmarshalEnvelope(raw []byte) (*EncryptedKey, error) {
	var env EncryptedKey
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyDecryptionFailed, err)
	}
	return &env, nil
}

// zeroize overwrites sensitive bytes. Callers defer it on every decrypted
// buffer so plaintext never outlives its use scope.
func zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
