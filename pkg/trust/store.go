// Package trust maintains the per-agent registry of historical and current
// key material, and resolves incoming signature key references against it.
//
// Records are only ever created by an explicit trust decision and only
// mutated by rotation and revocation events; passive observation of a signer
// never creates trust.
package trust

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
	"github.com/Mindburn-Labs/anchor/pkg/identity"
)

// Store is a filesystem-backed trust registry: one JSON record per agent
// under the store root, 0600 files in a 0700 directory.
type Store struct {
	root string
	mu   sync.RWMutex
	log  *slog.Logger
}

// NewStore opens (creating if needed) a trust store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("trust store init: %w", err)
	}
	return &Store{
		root: dir,
		log:  slog.Default().With("component", "trust"),
	}, nil
}

func (s *Store) recordPath(agentID string) (string, error) {
	if err := ValidateAgentID(agentID); err != nil {
		return "", err
	}
	return safeJoin(s.root, agentID+".json")
}

// Trust records an explicit trust decision for an agent's current key.
// Re-trusting an already trusted agent replaces nothing: the existing record
// is returned unchanged so accumulated history is never lost.
func (s *Store) Trust(rec *contracts.TrustedAgent) error {
	path, err := s.recordPath(rec.AgentID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, statErr := os.Stat(path); statErr == nil {
		s.log.Info("agent already trusted", "agent_id", rec.AgentID)
		return nil
	}
	if rec.TrustedAt.IsZero() {
		rec.TrustedAt = time.Now().UTC()
	}
	if err := s.writeRecord(path, rec); err != nil {
		return err
	}
	s.log.Info("agent trusted", "agent_id", rec.AgentID, "key_hash", rec.CurrentKeyHash)
	return nil
}

// TrustCard is a convenience over Trust for an exported identity card.
func (s *Store) TrustCard(card identity.Card) error {
	now := time.Now().UTC()
	return s.Trust(&contracts.TrustedAgent{
		AgentID:        card.ID,
		Name:           card.Name,
		Domain:         card.Domain,
		CurrentKeyHash: card.PublicKeyHash,
		TrustedAt:      now,
		VersionChain:   []string{card.Version},
		KeyHistory: []contracts.KeyHistoryEntry{{
			PublicKeyHash: card.PublicKeyHash,
			PublicKey:     card.PublicKey,
			Algorithm:     card.Algorithm,
			TrustedAt:     now,
			FirstVersion:  card.Version,
			Status:        contracts.KeyActive,
		}},
	})
}

// Untrust removes an agent's record. An unknown agent is an explicit error.
func (s *Store) Untrust(agentID string) error {
	path, err := s.recordPath(agentID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("%w: %s", ErrAgentNotTrusted, agentID)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("trust store remove: %w", err)
	}
	s.log.Info("agent untrusted", "agent_id", agentID)
	return nil
}

// Get loads an agent's record.
func (s *Store) Get(agentID string) (*contracts.TrustedAgent, error) {
	path, err := s.recordPath(agentID)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readRecord(path, agentID)
}

// RecordRotation applies a verified transition statement to the agent's
// record: the statement must chain from the current key, and its signature by
// the old key must verify. newKey is the incoming active entry.
func (s *Store) RecordRotation(stmt *identity.TransitionStatement, newKey contracts.KeyHistoryEntry) error {
	path, err := s.recordPath(stmt.AgentID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readRecord(path, stmt.AgentID)
	if err != nil {
		return err
	}
	if rec.CurrentKeyHash != stmt.OldKeyHash {
		return fmt.Errorf("%w: statement chains from %s, current is %s",
			ErrRotationContinuity, stmt.OldKeyHash, rec.CurrentKeyHash)
	}

	old := rec.FindKey(stmt.OldKeyHash)
	if old == nil {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, stmt.OldKeyHash)
	}
	oldPub, err := decodeKey(old.PublicKey)
	if err != nil {
		return err
	}
	if err := identity.VerifyTransition(stmt, oldPub); err != nil {
		return fmt.Errorf("rotation statement rejected: %w", err)
	}
	if !old.Status.CanTransition(contracts.KeyRotated) {
		return fmt.Errorf("%w: %s is %s", ErrKeyStatusRegression, old.PublicKeyHash, old.Status)
	}

	old.Status = contracts.KeyRotated
	old.LastVersion = stmt.FromVersion

	newKey.Status = contracts.KeyActive
	newKey.LastVersion = ""
	if newKey.FirstVersion == "" {
		newKey.FirstVersion = stmt.ToVersion
	}
	rec.KeyHistory = append(rec.KeyHistory, newKey)
	rec.CurrentKeyHash = newKey.PublicKeyHash
	rec.VersionChain = append(rec.VersionChain, stmt.ToVersion)

	if err := s.writeRecord(path, rec); err != nil {
		return err
	}
	s.log.Info("rotation recorded",
		"agent_id", stmt.AgentID, "old_key", stmt.OldKeyHash, "new_key", newKey.PublicKeyHash)
	return nil
}

// Revoke marks a key as revoked. Revoked and expired entries never come back.
func (s *Store) Revoke(agentID, keyHash string) error {
	path, err := s.recordPath(agentID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readRecord(path, agentID)
	if err != nil {
		return err
	}
	entry := rec.FindKey(keyHash)
	if entry == nil {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, keyHash)
	}
	if !entry.Status.CanTransition(contracts.KeyRevoked) {
		return fmt.Errorf("%w: %s is already %s", ErrKeyStatusRegression, keyHash, entry.Status)
	}
	entry.Status = contracts.KeyRevoked
	if entry.LastVersion == "" {
		entry.LastVersion = currentVersion(rec)
	}
	s.log.Warn("key revoked", "agent_id", agentID, "key_hash", keyHash)
	return s.writeRecord(path, rec)
}

// List returns the ids of all trusted agents.
func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("trust store list: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if len(name) > 5 && name[len(name)-5:] == ".json" {
			ids = append(ids, name[:len(name)-5])
		}
	}
	return ids, nil
}

func (s *Store) readRecord(path, agentID string) (*contracts.TrustedAgent, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrAgentNotTrusted, agentID)
		}
		return nil, fmt.Errorf("trust store read: %w", err)
	}
	var rec contracts.TrustedAgent
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("trust store decode %s: %w", agentID, err)
	}
	return &rec, nil
}

func (s *Store) writeRecord(path string, rec *contracts.TrustedAgent) error {
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("trust store encode: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("trust store write: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("trust store commit: %w", err)
	}
	return nil
}

func currentVersion(rec *contracts.TrustedAgent) string {
	if len(rec.VersionChain) == 0 {
		return ""
	}
	return rec.VersionChain[len(rec.VersionChain)-1]
}
