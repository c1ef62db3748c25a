// Package agreement implements multi-party quorum signing over a hash-locked
// document. The lock is computed once at creation; any later mutation of the
// agreement-relevant content is detected as tampering, distinct from mere
// incompleteness. Signature entries are keyed per agent and strictly
// additive, which is what makes merging independently signed copies safe
// without any central lock.
package agreement

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Mindburn-Labs/anchor/pkg/canonicalize"
	"github.com/Mindburn-Labs/anchor/pkg/contracts"
)

var (
	// ErrNoAgreement: the document carries no agreement block.
	ErrNoAgreement = errors.New("document has no agreement")

	// ErrAgreementExists: create refuses to overwrite an existing block.
	ErrAgreementExists = errors.New("document already has an agreement")

	// ErrAgreementTampered: the frozen content lock no longer matches the
	// document. Existing signatures are void.
	ErrAgreementTampered = errors.New("agreement content changed after hash was frozen")

	// ErrNotRequiredSigner: the signer is not in the required set.
	ErrNotRequiredSigner = errors.New("agent is not a required signer")

	// ErrAlreadySigned: entries are immutable per agent; a second signature
	// from the same agent is rejected rather than replaced.
	ErrAlreadySigned = errors.New("agent has already signed")

	// ErrQuorumNotMet: RequireComplete found fewer signatures than quorum.
	ErrQuorumNotMet = errors.New("quorum not met")

	// ErrBadQuorum: quorum must satisfy 0 < M <= N.
	ErrBadQuorum = errors.New("quorum out of range")
)

// SignFunc produces the caller's signature over the agreement subject bytes.
// The document engine supplies one bound to an identity and password scope.
type SignFunc func(subject []byte) (*contracts.Signature, error)

// lockFields are the document fields frozen by the content lock, alongside
// the agreement's own question/context/signer set.
var lockFields = []string{"id", "originalVersion", "content"}

// computeLock builds the content lock over the agreement-relevant fields.
// Signatures and version metadata are deliberately outside the lock: signing
// must not invalidate the lock, and version ids change on every save.
func computeLock(doc *contracts.Document, agr *contracts.Agreement) (string, error) {
	m, err := doc.AsMap()
	if err != nil {
		return "", err
	}
	subject := map[string]any{
		"question": agr.Question,
		"context":  agr.Context,
		"agentIds": append([]string{}, agr.AgentIDs...),
		"quorum":   agr.Quorum,
	}
	for _, f := range lockFields {
		if v, ok := m[f]; ok {
			subject[f] = v
		}
	}
	return canonicalize.HashAny(subject)
}

// Create attaches a new agreement to the document and freezes its content
// lock. The required signer set must be non-empty and the quorum, when set,
// must be 0 < M <= N.
func Create(doc *contracts.Document, agentIDs []string, question, context string, quorum int) error {
	if doc.Agreement != nil {
		return ErrAgreementExists
	}
	if len(agentIDs) == 0 {
		return fmt.Errorf("agreement: empty signer set")
	}
	if quorum < 0 || quorum > len(agentIDs) {
		return fmt.Errorf("%w: %d of %d", ErrBadQuorum, quorum, len(agentIDs))
	}

	agr := &contracts.Agreement{
		AgentIDs:   append([]string{}, agentIDs...),
		Signatures: make(map[string]contracts.Signature),
		Question:   question,
		Context:    context,
		Quorum:     quorum,
	}
	doc.Agreement = agr

	lock, err := computeLock(doc, agr)
	if err != nil {
		doc.Agreement = nil
		return err
	}
	doc.AgreementHash = lock

	slog.Default().With("component", "agreement").Info("agreement created",
		"document_id", doc.ID, "signers", len(agentIDs), "quorum", quorum)
	return nil
}

// verifyLock recomputes the lock and compares it with the frozen value.
func verifyLock(doc *contracts.Document) error {
	if doc.Agreement == nil {
		return ErrNoAgreement
	}
	lock, err := computeLock(doc, doc.Agreement)
	if err != nil {
		return err
	}
	if lock != doc.AgreementHash {
		return fmt.Errorf("%w: lock %s, document %s", ErrAgreementTampered, doc.AgreementHash, lock)
	}
	return nil
}

// Sign appends the signature of agentID, produced by signFn over the frozen
// lock. The lock is re-validated first so a signature can never be added to
// tampered content.
func Sign(doc *contracts.Document, agentID string, response contracts.ResponseType, signFn SignFunc) error {
	if err := verifyLock(doc); err != nil {
		return err
	}
	agr := doc.Agreement
	if !agr.Required(agentID) {
		return fmt.Errorf("%w: %s", ErrNotRequiredSigner, agentID)
	}
	if _, dup := agr.Signatures[agentID]; dup {
		return fmt.Errorf("%w: %s", ErrAlreadySigned, agentID)
	}

	sig, err := signFn([]byte(doc.AgreementHash))
	if err != nil {
		return fmt.Errorf("agreement signing: %w", err)
	}
	if response == "" {
		response = contracts.ResponseAgree
	}
	sig.Response = response
	if sig.Date.IsZero() {
		sig.Date = time.Now().UTC()
	}

	if agr.Signatures == nil {
		agr.Signatures = make(map[string]contracts.Signature)
	}
	agr.Signatures[agentID] = *sig
	return nil
}

// Check reports completion. Idempotent: re-checking a complete agreement
// yields the same answer. A tampered document fails here with
// ErrAgreementTampered so incompleteness and tampering are never conflated.
func Check(doc *contracts.Document) (*contracts.AgreementStatus, error) {
	if err := verifyLock(doc); err != nil {
		return nil, err
	}
	agr := doc.Agreement

	status := &contracts.AgreementStatus{Quorum: agr.Quorum}
	for _, id := range agr.AgentIDs {
		if _, ok := agr.Signatures[id]; ok {
			status.Signed = append(status.Signed, id)
		} else {
			status.Pending = append(status.Pending, id)
		}
	}
	sort.Strings(status.Signed)
	sort.Strings(status.Pending)

	if agr.Quorum > 0 {
		status.Complete = len(status.Signed) >= agr.Quorum
	} else {
		status.Complete = len(status.Pending) == 0
	}
	return status, nil
}

// RequireComplete is the gate for callers that accept only settled
// agreements. An incomplete agreement fails with ErrQuorumNotMet; tampering
// still surfaces as ErrAgreementTampered.
func RequireComplete(doc *contracts.Document) (*contracts.AgreementStatus, error) {
	status, err := Check(doc)
	if err != nil {
		return nil, err
	}
	if !status.Complete {
		return status, fmt.Errorf("%w: %d of %d signatures, quorum %d",
			ErrQuorumNotMet, len(status.Signed), len(doc.Agreement.AgentIDs), status.Quorum)
	}
	return status, nil
}

// Merge folds the signatures of src into dst. Both must carry the same
// frozen lock. Entries are immutable per agent: on conflict the entry
// already in dst wins and src's copy is ignored.
func Merge(dst, src *contracts.Document) error {
	if err := verifyLock(dst); err != nil {
		return err
	}
	if src.Agreement == nil {
		return ErrNoAgreement
	}
	if src.AgreementHash != dst.AgreementHash {
		return fmt.Errorf("%w: merging documents with different locks", ErrAgreementTampered)
	}

	if dst.Agreement.Signatures == nil {
		dst.Agreement.Signatures = make(map[string]contracts.Signature)
	}
	for id, sig := range src.Agreement.Signatures {
		if _, exists := dst.Agreement.Signatures[id]; !exists {
			dst.Agreement.Signatures[id] = sig
		}
	}
	return nil
}
