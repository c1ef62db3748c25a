// Package identity manages agent identities: creation, encrypted-at-rest key
// material, version chains, and key rotation with continuity proofs.
//
// Private keys exist in plaintext only inside WithPrivateKey scopes and are
// overwritten on every exit path.
package identity

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
	"github.com/Mindburn-Labs/anchor/pkg/crypto"
)

// ErrAlgorithmNotSigningCapable is returned when an identity is created for a
// verify-only algorithm.
var ErrAlgorithmNotSigningCapable = errors.New("algorithm cannot be used for new identities")

// Agent is a signing identity. ID is stable for the identity's lifetime;
// Version changes on every rotation and forms a chain back to
// OriginalVersion. The private key is held only in encrypted form.
type Agent struct {
	ID                string                      `json:"id"`
	Version           string                      `json:"version"`
	PreviousVersion   string                      `json:"previousVersion,omitempty"`
	OriginalVersion   string                      `json:"originalVersion"`
	Name              string                      `json:"name"`
	Algorithm         contracts.Algorithm         `json:"algorithm"`
	Domain            string                      `json:"domain,omitempty"`
	VerificationClaim contracts.VerificationClaim `json:"verificationClaim"`
	PublicKey         string                      `json:"publicKey"` // base64
	PublicKeyHash     string                      `json:"publicKeyHash"`
	CreatedAt         time.Time                   `json:"createdAt"`
	EncryptedKey      *EncryptedKey               `json:"encryptedKey"`
	KeyHistory        []contracts.KeyHistoryEntry `json:"keyHistory"`

	log *slog.Logger
}

// CreateParams configure a new identity. Algorithm defaults to Ed25519,
// the claim to unverified.
type CreateParams struct {
	Name      string
	Algorithm contracts.Algorithm
	Domain    string
	Claim     contracts.VerificationClaim
}

// Create generates a key pair, encrypts the private key under the
// password-derived key, and returns the initial identity version. The
// password is checked against the entropy policy before anything else
// touches key material.
func Create(params CreateParams, password string) (*Agent, error) {
	alg := params.Algorithm
	if alg == "" {
		alg = contracts.AlgorithmEd25519
	}
	if !alg.SigningCapable() {
		return nil, fmt.Errorf("%w: %q", ErrAlgorithmNotSigningCapable, alg)
	}
	if err := checkPasswordStrength(password); err != nil {
		return nil, err
	}

	pub, priv, err := crypto.GenerateKeyPair(alg)
	if err != nil {
		return nil, err
	}
	defer zeroize(priv)

	env, err := encryptPrivateKey(priv, password)
	if err != nil {
		return nil, err
	}

	claim := params.Claim
	if claim == "" {
		claim = contracts.ClaimUnverified
	}

	now := time.Now().UTC()
	version := uuid.NewString()
	a := &Agent{
		ID:                uuid.NewString(),
		Version:           version,
		OriginalVersion:   version,
		Name:              params.Name,
		Algorithm:         alg,
		Domain:            params.Domain,
		VerificationClaim: claim,
		PublicKey:         base64.StdEncoding.EncodeToString(pub),
		PublicKeyHash:     crypto.PublicKeyHash(pub),
		CreatedAt:         now,
		EncryptedKey:      env,
		KeyHistory: []contracts.KeyHistoryEntry{{
			PublicKeyHash: crypto.PublicKeyHash(pub),
			PublicKey:     base64.StdEncoding.EncodeToString(pub),
			Algorithm:     alg,
			TrustedAt:     now,
			FirstVersion:  version,
			Status:        contracts.KeyActive,
		}},
		log: slog.Default().With("component", "identity"),
	}
	a.log.Info("identity created", "agent_id", a.ID, "algorithm", string(alg))
	return a, nil
}

// PublicKeyBytes decodes the current public key.
func (a *Agent) PublicKeyBytes() ([]byte, error) {
	pub, err := base64.StdEncoding.DecodeString(a.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("public key decode: %w", err)
	}
	return pub, nil
}

// WithPrivateKey decrypts the private key, passes it to fn, and guarantees
// the plaintext is zeroized before returning, on success and failure alike.
func (a *Agent) WithPrivateKey(password string, fn func(priv []byte) error) error {
	priv, err := decryptPrivateKey(a.EncryptedKey, password)
	if err != nil {
		return err
	}
	defer zeroize(priv)
	return fn(priv)
}

// Sign signs msg with the agent's current key inside a scoped decrypt.
func (a *Agent) Sign(password string, msg []byte) ([]byte, error) {
	var sig []byte
	err := a.WithPrivateKey(password, func(priv []byte) error {
		var signErr error
		sig, signErr = crypto.Sign(priv, a.Algorithm, msg)
		return signErr
	})
	if err != nil {
		return nil, err
	}
	return sig, nil
}

// SetVerificationClaim raises the claim tier. Lowering is a hard error.
func (a *Agent) SetVerificationClaim(claim contracts.VerificationClaim) error {
	if claim.Tier() < a.VerificationClaim.Tier() {
		return fmt.Errorf("%w: %q -> %q", contracts.ErrClaimDowngrade, a.VerificationClaim, claim)
	}
	a.VerificationClaim = claim
	return nil
}

func (a *Agent) logger() *slog.Logger {
	if a.log == nil {
		a.log = slog.Default().With("component", "identity")
	}
	return a.log
}
