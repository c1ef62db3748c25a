package document

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/anchor/pkg/agreement"
	"github.com/Mindburn-Labs/anchor/pkg/contracts"
	"github.com/Mindburn-Labs/anchor/pkg/crypto"
	"github.com/Mindburn-Labs/anchor/pkg/identity"
	"github.com/Mindburn-Labs/anchor/pkg/trust"
)

// AgreementSigner binds an identity to the agreement engine's signing hook.
// The password stays inside the closure and signing still goes through the
// scoped decrypt.
func AgreementSigner(agent *identity.Agent, password string) agreement.SignFunc {
	return func(subject []byte) (*contracts.Signature, error) {
		raw, err := agent.Sign(password, subject)
		if err != nil {
			return nil, err
		}
		return &contracts.Signature{
			AgentID:          agent.ID,
			AgentVersion:     agent.Version,
			PublicKeyHash:    agent.PublicKeyHash,
			SigningAlgorithm: agent.Algorithm,
			Signature:        base64.StdEncoding.EncodeToString(raw),
			Date:             time.Now().UTC(),
			Fields:           []string{"agreementHash"},
		}, nil
	}
}

// VerifyAgreement checks every signature in the document's agreement block
// against its frozen lock, resolving each signer independently so a quorum
// can mix algorithms. The status reflects only signatures that verified.
func (e *Engine) VerifyAgreement(ctx context.Context, doc *contracts.Document) (*contracts.AgreementStatus, error) {
	status, err := agreement.Check(doc)
	if err != nil {
		return nil, err
	}
	if e.resolver == nil {
		return nil, fmt.Errorf("no key resolver configured")
	}

	subject := []byte(doc.AgreementHash)
	for agentID, sig := range doc.Agreement.Signatures {
		if sig.AgentID != agentID {
			return nil, fmt.Errorf("agreement entry %s signed by %s", agentID, sig.AgentID)
		}
		key, err := e.resolver.ResolveKey(ctx, trust.KeyRef{
			AgentID:       sig.AgentID,
			AgentVersion:  sig.AgentVersion,
			PublicKeyHash: sig.PublicKeyHash,
			Domain:        doc.AgentDomain,
		})
		if err != nil {
			return nil, fmt.Errorf("agreement signer %s: %w", agentID, err)
		}
		if err := crypto.CheckSignatureMeta(&sig, key.Algorithm, e.verifyOpts); err != nil {
			return nil, fmt.Errorf("agreement signer %s: %w", agentID, err)
		}
		raw, err := base64.StdEncoding.DecodeString(sig.Signature)
		if err != nil {
			return nil, fmt.Errorf("agreement signer %s: signature decode: %v", agentID, err)
		}
		if err := crypto.Verify(key.PublicKey, key.Algorithm, subject, raw); err != nil {
			return nil, fmt.Errorf("agreement signer %s: %w", agentID, err)
		}
	}
	return status, nil
}
