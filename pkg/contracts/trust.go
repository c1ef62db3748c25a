package contracts

import "time"

// KeyStatus is the lifecycle state of a key history entry. Transitions are
// monotonic: active -> rotated -> revoked/expired. Revival is rejected.
type KeyStatus string

const (
	KeyActive  KeyStatus = "active"
	KeyRotated KeyStatus = "rotated"
	KeyRevoked KeyStatus = "revoked"
	KeyExpired KeyStatus = "expired"
)

// rank orders statuses for the monotonicity check.
func (s KeyStatus) rank() int {
	switch s {
	case KeyActive:
		return 0
	case KeyRotated:
		return 1
	case KeyRevoked, KeyExpired:
		return 2
	default:
		return -1
	}
}

// CanTransition reports whether moving from s to next is a forward move.
func (s KeyStatus) CanTransition(next KeyStatus) bool {
	return next.rank() > s.rank()
}

// KeyHistoryEntry records one key an agent has held, with the identity
// version range it covered. LastVersion empty means the key is current.
type KeyHistoryEntry struct {
	PublicKeyHash string    `json:"publicKeyHash"`
	PublicKey     string    `json:"publicKey"` // base64 raw key material
	Algorithm     Algorithm `json:"algorithm"`
	TrustedAt     time.Time `json:"trustedAt"`
	FirstVersion  string    `json:"firstVersion"`
	LastVersion   string    `json:"lastVersion,omitempty"`
	Status        KeyStatus `json:"status"`
}

// Current reports whether the entry is the agent's open-ended active key.
func (e *KeyHistoryEntry) Current() bool {
	return e.LastVersion == "" && e.Status == KeyActive
}

// TrustedAgent is a trust-store record for one agent: identity metadata plus
// the ordered key history, oldest first. Created only by an explicit trust
// decision, never by passive observation.
type TrustedAgent struct {
	AgentID        string            `json:"agentId"`
	Name           string            `json:"name,omitempty"`
	Domain         string            `json:"domain,omitempty"`
	CurrentKeyHash string            `json:"currentKeyHash"`
	TrustedAt      time.Time         `json:"trustedAt"`
	KeyHistory     []KeyHistoryEntry `json:"keyHistory"`

	// VersionChain records the identity versions seen for this agent, oldest
	// first. Key history ranges refer to members of this chain.
	VersionChain []string `json:"versionChain,omitempty"`
}

// FindKey returns the history entry for a key hash, or nil.
func (t *TrustedAgent) FindKey(hash string) *KeyHistoryEntry {
	for i := range t.KeyHistory {
		if t.KeyHistory[i].PublicKeyHash == hash {
			return &t.KeyHistory[i]
		}
	}
	return nil
}

// KeyForVersion returns the history entry whose [FirstVersion, LastVersion]
// range covers version, using the agent's recorded version chain for
// ordering. Used to verify old signatures after rotation.
func (t *TrustedAgent) KeyForVersion(version string) *KeyHistoryEntry {
	idx := -1
	for i, v := range t.VersionChain {
		if v == version {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	for i := range t.KeyHistory {
		e := &t.KeyHistory[i]
		first := chainIndex(t.VersionChain, e.FirstVersion)
		if first < 0 || idx < first {
			continue
		}
		if e.LastVersion == "" {
			return e
		}
		if last := chainIndex(t.VersionChain, e.LastVersion); last >= 0 && idx <= last {
			return e
		}
	}
	return nil
}

func chainIndex(chain []string, version string) int {
	for i, v := range chain {
		if v == version {
			return i
		}
	}
	return -1
}
