package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
	"github.com/Mindburn-Labs/anchor/pkg/crypto"
)

const testPassword = "correct-horse battery staple 42!"

func TestCreate_Defaults(t *testing.T) {
	a, err := Create(CreateParams{Name: "alpha"}, testPassword)
	require.NoError(t, err)

	assert.Equal(t, contracts.AlgorithmEd25519, a.Algorithm)
	assert.Equal(t, contracts.ClaimUnverified, a.VerificationClaim)
	assert.Equal(t, a.Version, a.OriginalVersion)
	assert.Empty(t, a.PreviousVersion)
	require.Len(t, a.KeyHistory, 1)
	assert.True(t, a.KeyHistory[0].Current())

	pub, err := a.PublicKeyBytes()
	require.NoError(t, err)
	assert.Equal(t, crypto.PublicKeyHash(pub), a.PublicKeyHash)
}

func TestCreate_WeakPasswordRejected(t *testing.T) {
	weak := []string{
		"short",
		"aaaaaaaaaaaa", // 12 chars, one class, trivial pool
		"abcdefghijkl", // one class, 12 * log2(26) < 60 bits
	}
	for _, pw := range weak {
		_, err := Create(CreateParams{Name: "x"}, pw)
		require.ErrorIs(t, err, ErrWeakPassword, "password %q", pw)
	}

	// Two classes over the 40-bit floor is accepted.
	_, err := Create(CreateParams{Name: "x"}, "password1234")
	require.NoError(t, err)
}

func TestCreate_LegacyAlgorithmRefused(t *testing.T) {
	_, err := Create(CreateParams{Name: "x", Algorithm: contracts.AlgorithmDilithiumLegacy}, testPassword)
	require.ErrorIs(t, err, ErrAlgorithmNotSigningCapable)
}

func TestWithPrivateKey_WrongPassword(t *testing.T) {
	a, err := Create(CreateParams{Name: "alpha"}, testPassword)
	require.NoError(t, err)

	err = a.WithPrivateKey("not the password but long!", func([]byte) error { return nil })
	require.ErrorIs(t, err, ErrKeyDecryptionFailed)
}

func TestSign_Verifiable(t *testing.T) {
	a, err := Create(CreateParams{Name: "alpha"}, testPassword)
	require.NoError(t, err)

	sig, err := a.Sign(testPassword, []byte("payload"))
	require.NoError(t, err)

	pub, err := a.PublicKeyBytes()
	require.NoError(t, err)
	require.NoError(t, crypto.Verify(pub, a.Algorithm, []byte("payload"), sig))
}

func TestRotate_ClosesHistoryAndLinksVersions(t *testing.T) {
	a, err := Create(CreateParams{Name: "alpha"}, testPassword)
	require.NoError(t, err)

	v1 := a.Version
	k1 := a.PublicKeyHash
	oldPub, err := a.PublicKeyBytes()
	require.NoError(t, err)

	stmt, err := a.Rotate(testPassword, RotateParams{})
	require.NoError(t, err)

	assert.Equal(t, v1, a.PreviousVersion)
	assert.NotEqual(t, v1, a.Version)
	assert.Equal(t, a.OriginalVersion, v1, "original version is the chain terminus")
	assert.NotEqual(t, k1, a.PublicKeyHash)

	require.Len(t, a.KeyHistory, 2)
	closed := a.KeyHistory[0]
	assert.Equal(t, contracts.KeyRotated, closed.Status)
	assert.Equal(t, v1, closed.LastVersion)
	assert.True(t, a.KeyHistory[1].Current())

	// The transition statement is signed by the old key and binds the new hash.
	assert.Equal(t, k1, stmt.OldKeyHash)
	assert.Equal(t, a.PublicKeyHash, stmt.NewKeyHash)
	require.NoError(t, VerifyTransition(stmt, oldPub))

	// Old key can still sign nothing: the envelope now holds the new key.
	sig, err := a.Sign(testPassword, []byte("after rotation"))
	require.NoError(t, err)
	newPub, err := a.PublicKeyBytes()
	require.NoError(t, err)
	require.NoError(t, crypto.Verify(newPub, a.Algorithm, []byte("after rotation"), sig))
}

func TestRotate_ClaimDowngradeRejected(t *testing.T) {
	a, err := Create(CreateParams{Name: "alpha", Claim: contracts.ClaimVerified}, testPassword)
	require.NoError(t, err)

	_, err = a.Rotate(testPassword, RotateParams{Claim: contracts.ClaimUnverified})
	require.ErrorIs(t, err, contracts.ErrClaimDowngrade)

	// Raising is fine.
	_, err = a.Rotate(testPassword, RotateParams{Claim: contracts.ClaimVerifiedStrong})
	require.NoError(t, err)
	assert.Equal(t, contracts.ClaimVerifiedStrong, a.VerificationClaim)
}

func TestSetVerificationClaim_Monotonic(t *testing.T) {
	a, err := Create(CreateParams{Name: "alpha"}, testPassword)
	require.NoError(t, err)

	require.NoError(t, a.SetVerificationClaim(contracts.ClaimVerified))
	require.ErrorIs(t, a.SetVerificationClaim(contracts.ClaimUnverified), contracts.ErrClaimDowngrade)
}

func TestEncryptedEnvelope_RoundTrip(t *testing.T) {
	env, err := encryptPrivateKey([]byte("secret key bytes"), testPassword)
	require.NoError(t, err)

	raw, err := marshalEnvelope(env)
	require.NoError(t, err)
	back, err := unmarshalEnvelope(raw)
	require.NoError(t, err)

	priv, err := decryptPrivateKey(back, testPassword)
	require.NoError(t, err)
	assert.Equal(t, []byte("secret key bytes"), priv)

	_, err = decryptPrivateKey(back, "wrong password entirely!!")
	require.ErrorIs(t, err, ErrKeyDecryptionFailed)
}
