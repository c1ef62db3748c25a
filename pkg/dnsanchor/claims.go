package dnsanchor

import (
	"fmt"
	"sync"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
)

// ClaimLedger enforces verification-claim monotonicity across identity
// versions: once an agent has been seen at a verified tier, any later claim
// of a lower tier is a hard error.
type ClaimLedger struct {
	mu   sync.Mutex
	seen map[string]contracts.VerificationClaim
}

func NewClaimLedger() *ClaimLedger {
	return &ClaimLedger{seen: make(map[string]contracts.VerificationClaim)}
}

// Observe records the claim for an agent, rejecting downgrades.
func (l *ClaimLedger) Observe(agentID string, claim contracts.VerificationClaim) error {
	if claim == "" {
		claim = contracts.ClaimUnverified
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, ok := l.seen[agentID]
	if ok && claim.Tier() < prev.Tier() {
		return fmt.Errorf("%w: agent %s claimed %q after %q",
			contracts.ErrClaimDowngrade, agentID, claim, prev)
	}
	if !ok || claim.Tier() > prev.Tier() {
		l.seen[agentID] = claim
	}
	return nil
}

// Highest returns the strongest claim observed for an agent.
func (l *ClaimLedger) Highest(agentID string) contracts.VerificationClaim {
	l.mu.Lock()
	defer l.mu.Unlock()
	if c, ok := l.seen[agentID]; ok {
		return c
	}
	return contracts.ClaimUnverified
}
