package trust

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
	"github.com/Mindburn-Labs/anchor/pkg/crypto"
	"github.com/Mindburn-Labs/anchor/pkg/identity"
)

const testPassword = "correct-horse battery staple 42!"

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func newTestAgent(t *testing.T) *identity.Agent {
	t.Helper()
	a, err := identity.Create(identity.CreateParams{Name: "peer"}, testPassword)
	require.NoError(t, err)
	return a
}

func TestTrustUntrust(t *testing.T) {
	s := newTestStore(t)
	a := newTestAgent(t)

	require.NoError(t, s.TrustCard(a.ExportCard()))

	rec, err := s.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.PublicKeyHash, rec.CurrentKeyHash)
	require.Len(t, rec.KeyHistory, 1)

	require.NoError(t, s.Untrust(a.ID))
	_, err = s.Get(a.ID)
	require.ErrorIs(t, err, ErrAgentNotTrusted)
}

func TestUntrust_UnknownAgentFails(t *testing.T) {
	s := newTestStore(t)
	err := s.Untrust(uuid.NewString())
	require.ErrorIs(t, err, ErrAgentNotTrusted)
}

func TestTrust_IsIdempotentAndPreservesHistory(t *testing.T) {
	s := newTestStore(t)
	a := newTestAgent(t)
	require.NoError(t, s.TrustCard(a.ExportCard()))

	// Rotate and record, then re-trust: history must survive.
	card := a.ExportCard()
	stmt, err := a.Rotate(testPassword, identity.RotateParams{})
	require.NoError(t, err)
	require.NoError(t, s.RecordRotation(stmt, a.KeyHistory[1]))

	require.NoError(t, s.TrustCard(card))
	rec, err := s.Get(a.ID)
	require.NoError(t, err)
	assert.Len(t, rec.KeyHistory, 2)
}

func TestValidateAgentID(t *testing.T) {
	require.NoError(t, ValidateAgentID(uuid.NewString()))
	for _, bad := range []string{"", "not-a-uuid", "../../etc/passwd", "abc/def"} {
		require.ErrorIs(t, ValidateAgentID(bad), ErrInvalidAgentID, "id %q", bad)
	}
}

func TestPathSafety_RejectedBeforeFilesystemAccess(t *testing.T) {
	s := newTestStore(t)
	r := NewResolver(s, nil)

	_, err := r.ResolveKey(context.Background(), KeyRef{
		AgentID:       uuid.NewString(),
		AgentVersion:  uuid.NewString(),
		PublicKeyHash: "../../etc/passwd",
	})
	require.ErrorIs(t, err, ErrPathTraversal)
}

func TestSafeJoin_Containment(t *testing.T) {
	_, err := safeJoin("/store", "agent.json")
	require.NoError(t, err)

	for _, bad := range []string{"..", "a/../../b", `a\b`, "x\x00y"} {
		_, err := safeJoin("/store", bad)
		require.ErrorIs(t, err, ErrPathTraversal, "component %q", bad)
	}
}

func TestRecordRotation_ContinuityEnforced(t *testing.T) {
	s := newTestStore(t)
	a := newTestAgent(t)
	require.NoError(t, s.TrustCard(a.ExportCard()))

	stmt, err := a.Rotate(testPassword, identity.RotateParams{})
	require.NoError(t, err)

	// A statement that does not chain from the stored current key fails.
	forged := *stmt
	forged.OldKeyHash = "deadbeef"
	require.ErrorIs(t, s.RecordRotation(&forged, a.KeyHistory[1]), ErrRotationContinuity)

	require.NoError(t, s.RecordRotation(stmt, a.KeyHistory[1]))
	rec, err := s.Get(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.PublicKeyHash, rec.CurrentKeyHash)
	assert.Equal(t, contracts.KeyRotated, rec.KeyHistory[0].Status)
	assert.Equal(t, stmt.FromVersion, rec.KeyHistory[0].LastVersion)
	assert.Equal(t, []string{stmt.FromVersion, stmt.ToVersion}, rec.VersionChain)
}

func TestRevoke_Monotonic(t *testing.T) {
	s := newTestStore(t)
	a := newTestAgent(t)
	require.NoError(t, s.TrustCard(a.ExportCard()))

	require.NoError(t, s.Revoke(a.ID, a.PublicKeyHash))

	// Revoking again is a regression, as would be any revival.
	err := s.Revoke(a.ID, a.PublicKeyHash)
	require.ErrorIs(t, err, ErrKeyStatusRegression)

	// Revoked key no longer resolves.
	r := NewResolver(s, nil)
	_, err = r.ResolveKey(context.Background(), KeyRef{
		AgentID:       a.ID,
		AgentVersion:  a.Version,
		PublicKeyHash: a.PublicKeyHash,
	})
	require.ErrorIs(t, err, ErrKeyResolutionFailed)
}

func TestResolveKey_HistoricalVersionRange(t *testing.T) {
	s := newTestStore(t)
	a := newTestAgent(t)
	require.NoError(t, s.TrustCard(a.ExportCard()))

	v1 := a.Version
	k1 := a.PublicKeyHash

	stmt, err := a.Rotate(testPassword, identity.RotateParams{})
	require.NoError(t, err)
	require.NoError(t, s.RecordRotation(stmt, a.KeyHistory[1]))

	r := NewResolver(s, nil)

	// A signature made under V1/K1 still resolves via the version range,
	// without needing the current key.
	rk, err := r.ResolveKey(context.Background(), KeyRef{
		AgentID:       a.ID,
		AgentVersion:  v1,
		PublicKeyHash: k1,
	})
	require.NoError(t, err)
	assert.Equal(t, SourceVersion, rk.Source)
	assert.Equal(t, k1, crypto.PublicKeyHash(rk.PublicKey))

	// Second lookup hits the cache.
	rk, err = r.ResolveKey(context.Background(), KeyRef{
		AgentID:       a.ID,
		AgentVersion:  v1,
		PublicKeyHash: k1,
	})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, rk.Source)
}

func TestResolveKey_HashFallback(t *testing.T) {
	s := newTestStore(t)
	a := newTestAgent(t)
	require.NoError(t, s.TrustCard(a.ExportCard()))

	// Unknown version, known hash: source 3.
	rk, err := NewResolver(s, nil).ResolveKey(context.Background(), KeyRef{
		AgentID:       a.ID,
		AgentVersion:  uuid.NewString(),
		PublicKeyHash: a.PublicKeyHash,
	})
	require.NoError(t, err)
	assert.Equal(t, SourceKeyHash, rk.Source)
}

type stubDNS struct{ err error }

func (s *stubDNS) ConfirmKey(context.Context, string, string, []byte, contracts.Algorithm) error {
	return s.err
}

func TestResolveKey_DNSFallbackAndExhaustion(t *testing.T) {
	s := newTestStore(t)
	a := newTestAgent(t)
	pub, err := a.PublicKeyBytes()
	require.NoError(t, err)

	ref := KeyRef{
		AgentID:       a.ID,
		AgentVersion:  a.Version,
		PublicKeyHash: a.PublicKeyHash,
		Domain:        "example.com",
		Candidate:     pub,
		CandidateAlg:  a.Algorithm,
	}

	// DNS confirms the embedded candidate: source 4.
	rk, err := NewResolver(s, &stubDNS{}).ResolveKey(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, SourceDNS, rk.Source)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pub),
		base64.StdEncoding.EncodeToString(rk.PublicKey))

	// DNS refuses: every source exhausted.
	_, err = NewResolver(s, &stubDNS{err: errors.New("no record")}).ResolveKey(context.Background(), ref)
	require.ErrorIs(t, err, ErrKeyResolutionFailed)
}

func TestKeyForVersion_RangeSemantics(t *testing.T) {
	now := time.Now().UTC()
	rec := &contracts.TrustedAgent{
		VersionChain: []string{"v1", "v2", "v3"},
		KeyHistory: []contracts.KeyHistoryEntry{
			{PublicKeyHash: "k1", FirstVersion: "v1", LastVersion: "v2", Status: contracts.KeyRotated, TrustedAt: now},
			{PublicKeyHash: "k2", FirstVersion: "v3", Status: contracts.KeyActive, TrustedAt: now},
		},
	}

	assert.Equal(t, "k1", rec.KeyForVersion("v1").PublicKeyHash)
	assert.Equal(t, "k1", rec.KeyForVersion("v2").PublicKeyHash)
	assert.Equal(t, "k2", rec.KeyForVersion("v3").PublicKeyHash)
	assert.Nil(t, rec.KeyForVersion("v9"))
}
