package contracts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// VerificationClaim is a self-declared trust tier for an agent identity.
// Claims are monotonic: once an identity version publishes a verified tier,
// later versions may never publish a lower one.
type VerificationClaim string

const (
	ClaimUnverified     VerificationClaim = "unverified"
	ClaimVerified       VerificationClaim = "verified"
	ClaimVerifiedStrong VerificationClaim = "verified-strong"
)

// Tier orders claims for downgrade checks. Higher is stronger.
func (c VerificationClaim) Tier() int {
	switch c {
	case ClaimVerifiedStrong:
		return 2
	case ClaimVerified:
		return 1
	default:
		return 0
	}
}

// Verified reports whether the claim is one of the verified tiers.
func (c VerificationClaim) Verified() bool {
	return c.Tier() > 0
}

// Signature is the detached signature block embedded in a document.
// It is permanently bound to the (agentId, agentVersion, publicKeyHash)
// triple that produced it and must remain verifiable after the signer
// rotates keys.
type Signature struct {
	AgentID          string    `json:"agentId"`
	AgentVersion     string    `json:"agentVersion"`
	PublicKeyHash    string    `json:"publicKeyHash"`
	SigningAlgorithm Algorithm `json:"signingAlgorithm"`
	Signature        string    `json:"signature"` // base64
	Date             time.Time `json:"date"`      // UTC
	Fields           []string  `json:"fields"`    // field names covered, in order

	// Response carries the signer's stance when the signature is part of an
	// agreement. Empty outside agreements.
	Response ResponseType `json:"responseType,omitempty"`
}

// ResponseType is a signer's stance on an agreement question. The agreement
// engine counts presence only; callers branch on the stance.
type ResponseType string

const (
	ResponseAgree    ResponseType = "agree"
	ResponseDisagree ResponseType = "disagree"
	ResponseReject   ResponseType = "reject"
)

// Document is the signed envelope exchanged between agents.
//
// The id is stable across versions; version changes on every mutation and the
// previousVersion links form a singly linked acyclic chain terminating at
// originalVersion.
type Document struct {
	ID                string            `json:"id"`
	Version           string            `json:"version"`
	PreviousVersion   string            `json:"previousVersion,omitempty"`
	OriginalVersion   string            `json:"originalVersion"`
	Type              string            `json:"type,omitempty"`
	Content           any               `json:"content,omitempty"`
	SHA256            string            `json:"sha256,omitempty"`
	Signature         *Signature        `json:"signature,omitempty"`
	Agreement         *Agreement        `json:"agreement,omitempty"`
	AgreementHash     string            `json:"agreementHash,omitempty"`
	VerificationClaim VerificationClaim `json:"verificationClaim,omitempty"`
	AgentDomain       string            `json:"agentDomain,omitempty"`
}

// StorageKey is the id:version composite used by document stores.
func (d *Document) StorageKey() string {
	return d.ID + ":" + d.Version
}

// AsMap renders the document as a generic map for canonicalization and
// schema validation. Numbers survive as json.Number so canonical output is
// byte-stable.
func (d *Document) AsMap() (map[string]any, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("document encode: %w", err)
	}
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("document decode: %w", err)
	}
	return m, nil
}

// VerificationResult is the caller-facing outcome of a verification attempt.
// Valid=false always comes with at least one entry in Errors.
type VerificationResult struct {
	Valid        bool      `json:"valid"`
	SignerID     string    `json:"signer_id,omitempty"`
	SignerName   string    `json:"signer_name,omitempty"`
	Algorithm    Algorithm `json:"algorithm,omitempty"`
	Timestamp    time.Time `json:"timestamp,omitempty"`
	DNSVerified  bool      `json:"dns_verified"`
	DNSAttempted bool      `json:"dns_attempted"`
	Errors       []string  `json:"errors,omitempty"`
}

// Fail appends a reason and forces Valid to false.
func (r *VerificationResult) Fail(reason string) {
	r.Valid = false
	r.Errors = append(r.Errors, reason)
}
