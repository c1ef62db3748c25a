// Package document is the signing and verification engine for versioned
// document envelopes. It wires canonicalization, key resolution, the DNS
// trust anchor and storage behind four operations: create, update, sign,
// verify.
//
// Verification keeps failure kinds apart on purpose: a content hash mismatch
// is tampering, a resolution failure means the signer is unknown, a storage
// failure means nothing about the document at all.
package document

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/anchor/pkg/canonicalize"
	"github.com/Mindburn-Labs/anchor/pkg/contracts"
	"github.com/Mindburn-Labs/anchor/pkg/crypto"
	"github.com/Mindburn-Labs/anchor/pkg/dnsanchor"
	"github.com/Mindburn-Labs/anchor/pkg/identity"
	"github.com/Mindburn-Labs/anchor/pkg/schema"
	"github.com/Mindburn-Labs/anchor/pkg/store"
	"github.com/Mindburn-Labs/anchor/pkg/trust"
)

var (
	// ErrHashMismatch: the content no longer matches the embedded sha256.
	// Tampering, never conflated with a bad signature or a missing key.
	ErrHashMismatch = errors.New("document content hash mismatch")

	// ErrNotSigned: the operation needs a signed document.
	ErrNotSigned = errors.New("document is not signed")

	// ErrAlreadySigned: signing is write-once per version.
	ErrAlreadySigned = errors.New("document version is already signed")
)

// hashFields are the fields bound by the document's sha256.
var hashFields = []string{"id", "version", "originalVersion", "content"}

const lockStripes = 32

// Engine executes document operations against injected collaborators.
// Storage is required; the rest are optional and disable their feature
// when nil.
type Engine struct {
	storage  store.Storage
	resolver *trust.Resolver
	anchor   *dnsanchor.Anchor
	schemas  *schema.Registry

	dnsFlags   dnsanchor.Flags
	verifyOpts crypto.VerifyOptions

	locks [lockStripes]sync.Mutex
	log   *slog.Logger
}

// Options configure an engine.
type Options struct {
	Storage  store.Storage
	Resolver *trust.Resolver
	Anchor   *dnsanchor.Anchor
	Schemas  *schema.Registry

	// DNSFlags is the process-wide DNS posture applied to every
	// verification. Per-call flags and verified claims can force it upward.
	DNSFlags dnsanchor.Flags

	// MaxSignatureAge rejects signatures older than this. Zero disables.
	MaxSignatureAge time.Duration
}

// NewEngine wires an engine. Storage must be set.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Storage == nil {
		return nil, fmt.Errorf("document engine: storage is required")
	}
	return &Engine{
		storage:    opts.Storage,
		resolver:   opts.Resolver,
		anchor:     opts.Anchor,
		schemas:    opts.Schemas,
		dnsFlags:   opts.DNSFlags,
		verifyOpts: crypto.VerifyOptions{MaxAge: opts.MaxSignatureAge},
		log:        slog.Default().With("component", "document"),
	}, nil
}

// lock serializes operations per document id.
func (e *Engine) lock(id string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &e.locks[h.Sum32()%lockStripes]
}

// Create builds version one of a new document, validates its content when a
// schema is registered for the type, signs it and stores it.
func (e *Engine) Create(ctx context.Context, docType string, content any, agent *identity.Agent, password string) (*contracts.Document, error) {
	version := uuid.NewString()
	doc := &contracts.Document{
		ID:              uuid.NewString(),
		Version:         version,
		OriginalVersion: version,
		Type:            docType,
		Content:         content,
	}
	mu := e.lock(doc.ID)
	mu.Lock()
	defer mu.Unlock()

	if err := e.signAndStore(ctx, doc, agent, password); err != nil {
		return nil, err
	}
	e.log.Info("document created", "key", doc.StorageKey(), "type", docType, "agent_id", agent.ID)
	return doc, nil
}

// Update derives the next version of an existing document with new content,
// signs it and stores it. The previous version stays in storage untouched.
func (e *Engine) Update(ctx context.Context, prev *contracts.Document, content any, agent *identity.Agent, password string) (*contracts.Document, error) {
	if prev.Signature == nil {
		return nil, fmt.Errorf("%w: refusing to derive from unsigned %s", ErrNotSigned, prev.StorageKey())
	}
	doc := &contracts.Document{
		ID:              prev.ID,
		Version:         uuid.NewString(),
		PreviousVersion: prev.Version,
		OriginalVersion: prev.OriginalVersion,
		Type:            prev.Type,
		Content:         content,
		Agreement:       prev.Agreement,
		AgreementHash:   prev.AgreementHash,
	}
	mu := e.lock(doc.ID)
	mu.Lock()
	defer mu.Unlock()

	if err := e.signAndStore(ctx, doc, agent, password); err != nil {
		return nil, err
	}
	return doc, nil
}

// Sign signs a document built elsewhere (an imported envelope, an agreement
// copy) and stores it. The version must not be signed or stored yet.
func (e *Engine) Sign(ctx context.Context, doc *contracts.Document, agent *identity.Agent, password string) error {
	if doc.Signature != nil {
		return fmt.Errorf("%w: %s", ErrAlreadySigned, doc.StorageKey())
	}
	mu := e.lock(doc.ID)
	mu.Lock()
	defer mu.Unlock()
	return e.signAndStore(ctx, doc, agent, password)
}

func (e *Engine) signAndStore(ctx context.Context, doc *contracts.Document, agent *identity.Agent, password string) error {
	if e.schemas != nil && doc.Type != "" && e.schemas.Has(doc.Type) {
		if err := e.schemas.Validate(doc.Type, doc.Content); err != nil {
			return err
		}
	}

	doc.AgentDomain = agent.Domain
	doc.VerificationClaim = agent.VerificationClaim

	m, err := doc.AsMap()
	if err != nil {
		return err
	}
	doc.SHA256, err = canonicalize.CanonicalHash(m, hashFields)
	if err != nil {
		return err
	}

	fields := signedFields(doc)
	m["sha256"] = doc.SHA256
	payload, err := canonicalize.Canonical(m, fields)
	if err != nil {
		return err
	}
	raw, err := agent.Sign(password, payload)
	if err != nil {
		return err
	}

	doc.Signature = &contracts.Signature{
		AgentID:          agent.ID,
		AgentVersion:     agent.Version,
		PublicKeyHash:    agent.PublicKeyHash,
		SigningAlgorithm: agent.Algorithm,
		Signature:        base64.StdEncoding.EncodeToString(raw),
		Date:             time.Now().UTC(),
		Fields:           fields,
	}
	return e.storage.Put(ctx, doc)
}

// signedFields lists what the signature covers, in canonical order. Optional
// fields join only when present so older envelopes verify unchanged.
func signedFields(doc *contracts.Document) []string {
	fields := []string{"id", "version"}
	if doc.PreviousVersion != "" {
		fields = append(fields, "previousVersion")
	}
	fields = append(fields, "originalVersion")
	if doc.Type != "" {
		fields = append(fields, "type")
	}
	fields = append(fields, "content", "sha256")
	if doc.AgreementHash != "" {
		fields = append(fields, "agreementHash")
	}
	return fields
}

// VerifyParams tune a single verification call.
type VerifyParams struct {
	// CandidateKey lets the caller supply an out-of-band public key
	// (typically from an agent card) for DNS-anchored resolution of signers
	// absent from the trust store.
	CandidateKey []byte
	CandidateAlg contracts.Algorithm

	// DNSFlags override the engine posture for this call. Overrides only
	// raise; defaults and verified claims still apply.
	DNSFlags *dnsanchor.Flags
}

// Verify checks a document end to end: content hash, key resolution,
// signature meta, the signature itself, then the DNS posture. It returns a
// result rather than an error for verification failures; errors are reserved
// for the engine itself being unable to attempt verification.
func (e *Engine) Verify(ctx context.Context, doc *contracts.Document, params VerifyParams) *contracts.VerificationResult {
	result := &contracts.VerificationResult{}
	sig := doc.Signature
	if sig == nil {
		result.Fail(ErrNotSigned.Error())
		return result
	}
	result.SignerID = sig.AgentID
	result.Algorithm = sig.SigningAlgorithm
	result.Timestamp = sig.Date

	m, err := doc.AsMap()
	if err != nil {
		result.Fail(err.Error())
		return result
	}

	// Tampering check before any cryptography.
	computed, err := canonicalize.CanonicalHash(m, hashFields)
	if err != nil {
		result.Fail(err.Error())
		return result
	}
	if computed != doc.SHA256 {
		result.Fail(fmt.Sprintf("%v: stored %s, computed %s", ErrHashMismatch, doc.SHA256, computed))
		return result
	}

	key := e.resolveSigner(ctx, doc, sig, params, result)
	if key == nil {
		return result
	}

	if err := crypto.CheckSignatureMeta(sig, key.Algorithm, e.verifyOpts); err != nil {
		result.Fail(err.Error())
		return result
	}

	payload, err := canonicalize.Canonical(m, sig.Fields)
	if err != nil {
		result.Fail(err.Error())
		return result
	}
	rawSig, err := base64.StdEncoding.DecodeString(sig.Signature)
	if err != nil {
		result.Fail(fmt.Sprintf("signature decode: %v", err))
		return result
	}
	if err := crypto.Verify(key.PublicKey, key.Algorithm, payload, rawSig); err != nil {
		result.Fail(err.Error())
		return result
	}
	result.Valid = true

	e.checkDNS(ctx, doc, sig, key.PublicKey, params, result)
	return result
}

// resolveSigner runs key resolution and records the failure on the result
// when the signer cannot be identified.
func (e *Engine) resolveSigner(ctx context.Context, doc *contracts.Document, sig *contracts.Signature, params VerifyParams, result *contracts.VerificationResult) *trust.ResolvedKey {
	if e.resolver == nil {
		result.Fail("no key resolver configured")
		return nil
	}
	ref := trust.KeyRef{
		AgentID:       sig.AgentID,
		AgentVersion:  sig.AgentVersion,
		PublicKeyHash: sig.PublicKeyHash,
		Domain:        doc.AgentDomain,
		Candidate:     params.CandidateKey,
		CandidateAlg:  params.CandidateAlg,
	}
	if ref.CandidateAlg == "" {
		ref.CandidateAlg = sig.SigningAlgorithm
	}
	key, err := e.resolver.ResolveKey(ctx, ref)
	if err != nil {
		result.Fail(err.Error())
		return nil
	}
	if key.Source == trust.SourceDNS {
		result.DNSAttempted = true
		result.DNSVerified = true
	}
	return key
}

// checkDNS applies the DNS posture after the signature itself verified.
// A posture failure downgrades the result to invalid; a skipped or merely
// attempted lookup leaves validity alone.
func (e *Engine) checkDNS(ctx context.Context, doc *contracts.Document, sig *contracts.Signature, pub []byte, params VerifyParams, result *contracts.VerificationResult) {
	if e.anchor == nil {
		return
	}
	flags := e.dnsFlags
	if params.DNSFlags != nil {
		flags.Validate = flags.Validate || params.DNSFlags.Validate
		flags.Required = flags.Required || params.DNSFlags.Required
		flags.Strict = flags.Strict || params.DNSFlags.Strict
	}
	caller := &flags
	if !flags.Validate && !flags.Required && !flags.Strict {
		if doc.AgentDomain == "" && !doc.VerificationClaim.Verified() {
			return
		}
		// No posture configured anywhere: let the defaulting rules run, so
		// a declared domain still anchors with validate+required.
		caller = nil
	}

	verified, err := e.anchor.VerifyAgent(ctx, sig.AgentID, doc.AgentDomain, pub, doc.VerificationClaim, caller)
	result.DNSAttempted = true
	result.DNSVerified = result.DNSVerified || verified
	if err != nil {
		result.Fail(fmt.Sprintf("dns anchor: %v", err))
	}
}

// Get loads one stored version.
func (e *Engine) Get(ctx context.Context, id, version string) (*contracts.Document, error) {
	return e.storage.Get(ctx, id, version)
}

// Latest loads the newest stored version of id.
func (e *Engine) Latest(ctx context.Context, id string) (*contracts.Document, error) {
	return e.storage.Latest(ctx, id)
}
