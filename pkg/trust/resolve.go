package trust

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bluele/gcache"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
	"github.com/Mindburn-Labs/anchor/pkg/crypto"
)

// resolution sources, reported for observability and tests.
const (
	SourceCache   = "cache"
	SourceVersion = "trust-store-version"
	SourceKeyHash = "trust-store-hash"
	SourceDNS     = "dns"
)

const cacheSize = 512

// KeyRef is everything extracted from an incoming signature (plus any
// embedded candidate key) that resolution may use.
type KeyRef struct {
	AgentID       string
	AgentVersion  string
	PublicKeyHash string

	// Domain and Candidate support the DNS fallback: a key embedded in the
	// document can be accepted if the DNS anchor confirms its fingerprint.
	Domain       string
	Candidate    []byte
	CandidateAlg contracts.Algorithm
}

// ResolvedKey is a successfully resolved public key.
type ResolvedKey struct {
	PublicKey []byte
	Algorithm contracts.Algorithm
	Source    string
}

// DNSSource confirms a candidate key against an external DNS trust anchor.
// Implemented by pkg/dnsanchor; kept as an interface here so resolution can
// be tested without network access.
type DNSSource interface {
	ConfirmKey(ctx context.Context, agentID, domain string, candidate []byte, alg contracts.Algorithm) error
}

// Resolver resolves signature key references with a fixed priority order:
// local cache, trust-store version range, trust-store key hash, DNS anchor,
// then failure.
type Resolver struct {
	store *Store
	dns   DNSSource
	cache gcache.Cache
	log   *slog.Logger
}

// NewResolver builds a resolver over a store. dns may be nil, which disables
// the fourth source.
func NewResolver(store *Store, dns DNSSource) *Resolver {
	return &Resolver{
		store: store,
		dns:   dns,
		cache: gcache.New(cacheSize).LRU().Build(),
		log:   slog.Default().With("component", "trust.resolver"),
	}
}

// ResolveKey resolves ref to a verification key, stopping at the first source
// that succeeds. Revoked keys never resolve, from any source.
func (r *Resolver) ResolveKey(ctx context.Context, ref KeyRef) (*ResolvedKey, error) {
	if err := ValidateAgentID(ref.AgentID); err != nil {
		return nil, err
	}
	if err := checkPathComponent(ref.PublicKeyHash); err != nil {
		return nil, err
	}

	// 1. Local cache by key hash.
	if v, err := r.cache.Get(ref.PublicKeyHash); err == nil {
		if rk, ok := v.(*ResolvedKey); ok {
			return &ResolvedKey{PublicKey: rk.PublicKey, Algorithm: rk.Algorithm, Source: SourceCache}, nil
		}
	}

	rec, storeErr := r.store.Get(ref.AgentID)
	if storeErr != nil && !errors.Is(storeErr, ErrAgentNotTrusted) {
		return nil, storeErr
	}

	if rec != nil {
		// 2. History entry covering the signer's identity version.
		if entry := rec.KeyForVersion(ref.AgentVersion); entry != nil {
			if rk, err := r.fromEntry(entry); err == nil {
				return r.cachePut(rk, SourceVersion), nil
			}
		}
		// 3. History entry matching the key hash directly.
		if entry := rec.FindKey(ref.PublicKeyHash); entry != nil {
			if rk, err := r.fromEntry(entry); err == nil {
				return r.cachePut(rk, SourceKeyHash), nil
			}
		}
	}

	// 4. DNS anchor over an embedded candidate key.
	if r.dns != nil && ref.Domain != "" && len(ref.Candidate) > 0 {
		if err := r.dns.ConfirmKey(ctx, ref.AgentID, ref.Domain, ref.Candidate, ref.CandidateAlg); err == nil {
			rk := &ResolvedKey{PublicKey: ref.Candidate, Algorithm: ref.CandidateAlg}
			return r.cachePut(rk, SourceDNS), nil
		} else {
			r.log.Debug("dns confirmation failed", "agent_id", ref.AgentID, "err", err)
		}
	}

	// 5. Exhausted.
	return nil, fmt.Errorf("%w: agent %s key %s", ErrKeyResolutionFailed, ref.AgentID, ref.PublicKeyHash)
}

func (r *Resolver) fromEntry(entry *contracts.KeyHistoryEntry) (*ResolvedKey, error) {
	if entry.Status == contracts.KeyRevoked || entry.Status == contracts.KeyExpired {
		return nil, fmt.Errorf("%w: key %s is %s", ErrKeyNotFound, entry.PublicKeyHash, entry.Status)
	}
	pub, err := decodeKey(entry.PublicKey)
	if err != nil {
		return nil, err
	}
	return &ResolvedKey{PublicKey: pub, Algorithm: entry.Algorithm}, nil
}

func (r *Resolver) cachePut(rk *ResolvedKey, source string) *ResolvedKey {
	rk.Source = source
	_ = r.cache.Set(crypto.PublicKeyHash(rk.PublicKey), rk)
	return rk
}

func decodeKey(b64 string) ([]byte, error) {
	pub, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("stored key decode: %w", err)
	}
	return pub, nil
}
