package identity

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
	"github.com/Mindburn-Labs/anchor/pkg/crypto"
)

// TransitionStatement proves rotation continuity: it is signed with the OLD
// key and binds the new key hash to the new identity version. A verifier that
// trusted the old key can extend that trust to the new one without any
// out-of-band step.
type TransitionStatement struct {
	AgentID     string              `json:"agentId"`
	FromVersion string              `json:"fromVersion"`
	ToVersion   string              `json:"toVersion"`
	OldKeyHash  string              `json:"oldKeyHash"`
	NewKeyHash  string              `json:"newKeyHash"`
	Algorithm   contracts.Algorithm `json:"algorithm"`
	Date        time.Time           `json:"date"`
	Signature   string              `json:"signature"` // base64, by the old key
}

// subject is the byte string the old key signs.
func (t *TransitionStatement) subject() []byte {
	return []byte(t.AgentID + "|" + t.FromVersion + "|" + t.ToVersion + "|" +
		t.OldKeyHash + "|" + t.NewKeyHash + "|" + t.Date.Format(time.RFC3339))
}

// RotateParams tune a rotation. Claim, when set, must not lower the tier.
type RotateParams struct {
	Claim contracts.VerificationClaim
}

// Rotate replaces the agent's key pair in place: new version linked to the
// old one, old history entry closed as rotated, and a transition statement
// signed with the outgoing key. The same password re-encrypts the new key;
// changing the password is a separate concern.
func (a *Agent) Rotate(password string, params RotateParams) (*TransitionStatement, error) {
	if params.Claim != "" && params.Claim.Tier() < a.VerificationClaim.Tier() {
		return nil, fmt.Errorf("%w: %q -> %q", contracts.ErrClaimDowngrade, a.VerificationClaim, params.Claim)
	}

	newPub, newPriv, err := crypto.GenerateKeyPair(a.Algorithm)
	if err != nil {
		return nil, err
	}
	defer zeroize(newPriv)

	newVersion := uuid.NewString()
	newHash := crypto.PublicKeyHash(newPub)
	now := time.Now().UTC()

	stmt := &TransitionStatement{
		AgentID:     a.ID,
		FromVersion: a.Version,
		ToVersion:   newVersion,
		OldKeyHash:  a.PublicKeyHash,
		NewKeyHash:  newHash,
		Algorithm:   a.Algorithm,
		Date:        now,
	}

	// Sign the transition with the old key before it is replaced.
	err = a.WithPrivateKey(password, func(oldPriv []byte) error {
		sig, signErr := crypto.Sign(oldPriv, a.Algorithm, stmt.subject())
		if signErr != nil {
			return signErr
		}
		stmt.Signature = base64.StdEncoding.EncodeToString(sig)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("transition signing: %w", err)
	}

	env, err := encryptPrivateKey(newPriv, password)
	if err != nil {
		return nil, err
	}

	// Close the outgoing history entry.
	for i := range a.KeyHistory {
		if a.KeyHistory[i].PublicKeyHash == a.PublicKeyHash && a.KeyHistory[i].Current() {
			a.KeyHistory[i].Status = contracts.KeyRotated
			a.KeyHistory[i].LastVersion = a.Version
		}
	}
	a.KeyHistory = append(a.KeyHistory, contracts.KeyHistoryEntry{
		PublicKeyHash: newHash,
		PublicKey:     base64.StdEncoding.EncodeToString(newPub),
		Algorithm:     a.Algorithm,
		TrustedAt:     now,
		FirstVersion:  newVersion,
		Status:        contracts.KeyActive,
	})

	a.PreviousVersion = a.Version
	a.Version = newVersion
	a.PublicKey = base64.StdEncoding.EncodeToString(newPub)
	a.PublicKeyHash = newHash
	a.EncryptedKey = env
	if params.Claim != "" {
		a.VerificationClaim = params.Claim
	}

	a.logger().Info("identity rotated",
		"agent_id", a.ID, "from_version", stmt.FromVersion, "to_version", newVersion)
	return stmt, nil
}

// VerifyTransition checks a transition statement against the old public key.
func VerifyTransition(stmt *TransitionStatement, oldPub []byte) error {
	if crypto.PublicKeyHash(oldPub) != stmt.OldKeyHash {
		return fmt.Errorf("%w: statement old key hash does not match supplied key", crypto.ErrSignatureInvalid)
	}
	sig, err := base64.StdEncoding.DecodeString(stmt.Signature)
	if err != nil {
		return fmt.Errorf("transition signature decode: %w", err)
	}
	return crypto.Verify(oldPub, stmt.Algorithm, stmt.subject(), sig)
}

// Card is the public, signature-free snapshot of an identity suitable for
// publication alongside the DNS record.
type Card struct {
	ID                string                      `json:"id"`
	Version           string                      `json:"version"`
	Name              string                      `json:"name"`
	Algorithm         contracts.Algorithm         `json:"algorithm"`
	PublicKey         string                      `json:"publicKey"`
	PublicKeyHash     string                      `json:"publicKeyHash"`
	Domain            string                      `json:"domain,omitempty"`
	VerificationClaim contracts.VerificationClaim `json:"verificationClaim"`
}

// ExportCard renders the public snapshot.
func (a *Agent) ExportCard() Card {
	return Card{
		ID:                a.ID,
		Version:           a.Version,
		Name:              a.Name,
		Algorithm:         a.Algorithm,
		PublicKey:         a.PublicKey,
		PublicKeyHash:     a.PublicKeyHash,
		Domain:            a.Domain,
		VerificationClaim: a.VerificationClaim,
	}
}

// MarshalIndent is a convenience for CLI output.
func (c Card) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
