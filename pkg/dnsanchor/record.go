// Package dnsanchor confirms agent identities against TXT records published
// under the agent's domain. DNSSEC chain validation is deliberately delegated
// to the injected resolver; this package only asks whether the answer was
// authenticated.
package dnsanchor

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
)

var (
	// ErrRecordSyntax is returned for TXT strings that do not match the
	// record grammar.
	ErrRecordSyntax = errors.New("malformed trust record")

	// ErrDNSRecordMissing: no record of ours exists at the owner name.
	ErrDNSRecordMissing = errors.New("dns trust record missing")

	// ErrDNSLookupFailed: the lookup itself failed (network error or
	// timeout). For the fallback table this counts as a lookup failure,
	// never as success.
	ErrDNSLookupFailed = errors.New("dns lookup failed")

	// ErrDNSAgentIDMismatch: a record exists but names a different agent.
	ErrDNSAgentIDMismatch = errors.New("dns record agent id mismatch")

	// ErrDNSFingerprintMismatch: the record's fingerprint does not match the
	// presented key.
	ErrDNSFingerprintMismatch = errors.New("dns record fingerprint mismatch")

	// ErrDNSSECValidationFailed: strict mode demanded an authenticated
	// answer and the resolver could not provide one.
	ErrDNSSECValidationFailed = errors.New("dnssec validation failed")
)

// Fingerprint computes the record fingerprint for raw public key bytes:
// base64 over SHA-256, per the alg/enc tags the grammar fixes.
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// FormatRecord renders the TXT string an operator must publish:
//
//	v=hai.ai; id=<agent-uuid>; alg=sha256; enc=base64; fp=<digest>
func FormatRecord(agentID string, pub []byte) string {
	return fmt.Sprintf("v=%s; id=%s; alg=%s; enc=%s; fp=%s",
		contracts.DNSVersionTag, agentID, contracts.DNSHashAlg, contracts.DNSEncoding, Fingerprint(pub))
}

// ParseRecord parses one TXT string. Unknown keys are ignored; the five
// grammar keys are all required and the version tag must match.
func ParseRecord(txt string) (*contracts.DNSTrustRecord, error) {
	kv := map[string]string{}
	for _, part := range strings.Split(txt, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("%w: segment %q", ErrRecordSyntax, part)
		}
		kv[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	if kv["v"] != contracts.DNSVersionTag {
		return nil, fmt.Errorf("%w: version tag %q", ErrRecordSyntax, kv["v"])
	}
	rec := &contracts.DNSTrustRecord{
		AgentID:     kv["id"],
		HashAlg:     kv["alg"],
		Encoding:    kv["enc"],
		Fingerprint: kv["fp"],
	}
	if rec.AgentID == "" || rec.Fingerprint == "" {
		return nil, fmt.Errorf("%w: missing id or fp", ErrRecordSyntax)
	}
	if rec.HashAlg != contracts.DNSHashAlg {
		return nil, fmt.Errorf("%w: hash alg %q", ErrRecordSyntax, rec.HashAlg)
	}
	if rec.Encoding != contracts.DNSEncoding {
		return nil, fmt.Errorf("%w: encoding %q", ErrRecordSyntax, rec.Encoding)
	}
	return rec, nil
}
