package dnsanchor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/time/rate"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
)

// DefaultLookupTimeout bounds a single TXT lookup. Expiry is a lookup
// failure, fed to the fallback table — it never hangs and never passes.
const DefaultLookupTimeout = 5 * time.Second

// TXTResolver is the DNS collaborator. Authenticated reports whether the
// resolver's answers are DNSSEC-validated; the default net.Resolver is not,
// so strict verification fails closed unless a validating resolver is
// injected.
type TXTResolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
	Authenticated() bool
}

// NetResolver adapts the stock net.Resolver. It performs no DNSSEC
// validation and says so.
type NetResolver struct {
	R *net.Resolver
}

func (n *NetResolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	r := n.R
	if r == nil {
		r = net.DefaultResolver
	}
	return r.LookupTXT(ctx, name)
}

func (n *NetResolver) Authenticated() bool { return false }

// Anchor verifies agent keys against published trust records.
type Anchor struct {
	resolver TXTResolver
	timeout  time.Duration
	limiter  *rate.Limiter
	strict   bool
	log      *slog.Logger

	claims *ClaimLedger
}

// Options tune an Anchor. Zero values select the defaults.
type Options struct {
	Resolver      TXTResolver
	LookupTimeout time.Duration

	// LookupsPerSecond caps outbound TXT queries across all goroutines.
	// Zero means 10/s with a burst of 20.
	LookupsPerSecond float64

	// Strict demands DNSSEC-authenticated answers when the anchor is used
	// as a key-resolution source.
	Strict bool
}

// New builds an Anchor.
func New(opts Options) *Anchor {
	resolver := opts.Resolver
	if resolver == nil {
		resolver = &NetResolver{}
	}
	timeout := opts.LookupTimeout
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	lps := opts.LookupsPerSecond
	if lps <= 0 {
		lps = 10
	}
	return &Anchor{
		resolver: resolver,
		timeout:  timeout,
		limiter:  rate.NewLimiter(rate.Limit(lps), int(2*lps)),
		strict:   opts.Strict,
		log:      slog.Default().With("component", "dnsanchor"),
		claims:   NewClaimLedger(),
	}
}

// Claims exposes the anchor's monotonic claim ledger.
func (a *Anchor) Claims() *ClaimLedger { return a.claims }

// lookup fetches and parses our record at the domain's owner name.
func (a *Anchor) lookup(ctx context.Context, domain string) (*contracts.DNSTrustRecord, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDNSLookupFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	name := contracts.DNSOwnerName(domain)
	txts, err := a.resolver.LookupTXT(ctx, name)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: timeout at %s", ErrDNSLookupFailed, name)
		}
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return nil, fmt.Errorf("%w: %s", ErrDNSRecordMissing, name)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrDNSLookupFailed, name, err)
	}

	for _, txt := range txts {
		rec, parseErr := ParseRecord(txt)
		if parseErr != nil {
			continue // other TXT records may share the owner name
		}
		return rec, nil
	}
	return nil, fmt.Errorf("%w: no parseable record at %s", ErrDNSRecordMissing, name)
}

// VerifyAgent checks the agent's key against the domain's trust record under
// the effective flags. The returned bool reports whether DNS actually
// confirmed the key (as opposed to the check being skipped or falling back).
func (a *Anchor) VerifyAgent(ctx context.Context, agentID, domain string, pub []byte,
	claim contracts.VerificationClaim, caller *Flags) (bool, error) {

	if err := a.claims.Observe(agentID, claim); err != nil {
		return false, err
	}
	return a.verify(ctx, agentID, domain, pub, claim, caller)
}

func (a *Anchor) verify(ctx context.Context, agentID, domain string, pub []byte,
	claim contracts.VerificationClaim, caller *Flags) (bool, error) {

	flags := EffectiveFlags(domain, claim, caller)
	action := Decide(flags)
	if action == ActionSkip {
		return false, nil
	}
	if domain == "" {
		if action == ActionAttempt {
			return false, nil
		}
		return false, fmt.Errorf("%w: agent %s declares no domain", ErrDNSRecordMissing, agentID)
	}

	if action == ActionRequireAuthenticated && !a.resolver.Authenticated() {
		return false, fmt.Errorf("%w: resolver does not authenticate answers", ErrDNSSECValidationFailed)
	}

	rec, err := a.lookup(ctx, domain)
	if err != nil {
		if action == ActionAttempt {
			a.log.Warn("dns lookup failed, falling back to embedded fingerprint",
				"agent_id", agentID, "domain", domain, "err", err)
			return false, nil
		}
		return false, err
	}

	if rec.AgentID != agentID {
		return false, fmt.Errorf("%w: record names %s", ErrDNSAgentIDMismatch, rec.AgentID)
	}
	if rec.Fingerprint != Fingerprint(pub) {
		return false, fmt.Errorf("%w: domain %s", ErrDNSFingerprintMismatch, domain)
	}

	a.log.Info("dns anchor confirmed", "agent_id", agentID, "domain", domain,
		"action", action.String())
	return true, nil
}

// ConfirmKey implements the trust resolver's DNS source: a candidate key is
// acceptable only if a record exists and matches. Fallback is the resolver's
// concern, so the check always runs as required. The ledger tracks claims
// published by identity versions only, so resolution stays ledger-neutral.
func (a *Anchor) ConfirmKey(ctx context.Context, agentID, domain string, candidate []byte, _ contracts.Algorithm) error {
	flags := &Flags{Validate: true, Required: true, Strict: a.strict}
	_, err := a.verify(ctx, agentID, domain, candidate, a.claims.Highest(agentID), flags)
	return err
}
