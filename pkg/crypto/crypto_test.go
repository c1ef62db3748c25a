package crypto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
)

func signingAlgorithms() []contracts.Algorithm {
	return []contracts.Algorithm{
		contracts.AlgorithmEd25519,
		contracts.AlgorithmRSAPSS,
		contracts.AlgorithmMLDSA87,
		contracts.AlgorithmHybrid,
	}
}

func TestSignVerify_RoundTripAllAlgorithms(t *testing.T) {
	msg := []byte(`{"a":1}`)
	for _, alg := range signingAlgorithms() {
		t.Run(string(alg), func(t *testing.T) {
			pub, priv, err := GenerateKeyPair(alg)
			require.NoError(t, err)

			sig, err := Sign(priv, alg, msg)
			require.NoError(t, err)

			require.NoError(t, Verify(pub, alg, msg, sig))

			// Tamper detection.
			err = Verify(pub, alg, []byte(`{"a":2}`), sig)
			require.ErrorIs(t, err, ErrSignatureInvalid)
		})
	}
}

func TestSign_LegacyRefused(t *testing.T) {
	_, priv, err := GenerateKeyPair(contracts.AlgorithmDilithiumLegacy)
	require.NoError(t, err)

	_, err = Sign(priv, contracts.AlgorithmDilithiumLegacy, []byte("x"))
	require.ErrorIs(t, err, ErrLegacySignRefused)
}

func TestVerify_LegacyStillVerifies(t *testing.T) {
	// A pre-cutover signer would have used the legacy scheme directly; the
	// verify path must keep working for those signatures.
	pub, priv, err := GenerateKeyPair(contracts.AlgorithmDilithiumLegacy)
	require.NoError(t, err)

	sig, err := schemeSign(legacySchemeName, priv, []byte("old document"))
	require.NoError(t, err)

	require.NoError(t, Verify(pub, contracts.AlgorithmDilithiumLegacy, []byte("old document"), sig))
}

func TestVerify_CrossAlgorithmKeysRejected(t *testing.T) {
	edPub, _, err := GenerateKeyPair(contracts.AlgorithmEd25519)
	require.NoError(t, err)
	_, rsaPriv, err := GenerateKeyPair(contracts.AlgorithmRSAPSS)
	require.NoError(t, err)

	sig, err := Sign(rsaPriv, contracts.AlgorithmRSAPSS, []byte("msg"))
	require.NoError(t, err)

	// An RSA signature presented against an Ed25519 key fails on material,
	// never passes.
	err = Verify(edPub, contracts.AlgorithmRSAPSS, []byte("msg"), sig)
	require.Error(t, err)
}

func TestVerify_UnknownAlgorithm(t *testing.T) {
	err := Verify([]byte("k"), contracts.Algorithm("rot13"), []byte("m"), []byte("s"))
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestHybrid_BothHalvesRequired(t *testing.T) {
	pub, priv, err := GenerateKeyPair(contracts.AlgorithmHybrid)
	require.NoError(t, err)

	msg := []byte("dual signature")
	sig, err := Sign(priv, contracts.AlgorithmHybrid, msg)
	require.NoError(t, err)
	require.NoError(t, Verify(pub, contracts.AlgorithmHybrid, msg, sig))

	// Corrupt the Ed25519 half.
	bad := append([]byte{}, sig...)
	bad[0] ^= 0xff
	require.ErrorIs(t, Verify(pub, contracts.AlgorithmHybrid, msg, bad), ErrSignatureInvalid)

	// Corrupt the ML-DSA half.
	bad = append([]byte{}, sig...)
	bad[len(bad)-1] ^= 0xff
	require.ErrorIs(t, Verify(pub, contracts.AlgorithmHybrid, msg, bad), ErrSignatureInvalid)
}

func TestPublicKeyHash(t *testing.T) {
	pub, _, err := GenerateKeyPair(contracts.AlgorithmEd25519)
	require.NoError(t, err)

	h := PublicKeyHash(pub)
	assert.Len(t, h, 64)
	assert.Equal(t, h, PublicKeyHash(pub), "fingerprint must be deterministic")
}

func TestCheckSignatureMeta_AlgorithmMismatch(t *testing.T) {
	sig := &contracts.Signature{
		SigningAlgorithm: contracts.AlgorithmEd25519,
		Date:             time.Now().UTC(),
	}
	err := CheckSignatureMeta(sig, contracts.AlgorithmMLDSA87, VerifyOptions{})
	require.ErrorIs(t, err, ErrAlgorithmMismatch)
}

func TestCheckSignatureMeta_FutureDated(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	opts := VerifyOptions{Now: func() time.Time { return now }}

	sig := &contracts.Signature{
		SigningAlgorithm: contracts.AlgorithmEd25519,
		Date:             now.Add(10 * time.Minute),
	}
	err := CheckSignatureMeta(sig, contracts.AlgorithmEd25519, opts)
	require.ErrorIs(t, err, ErrSignatureFromFuture)

	// Inside the skew window passes.
	sig.Date = now.Add(2 * time.Minute)
	require.NoError(t, CheckSignatureMeta(sig, contracts.AlgorithmEd25519, opts))
}

func TestCheckSignatureMeta_MaxAge(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	sig := &contracts.Signature{
		SigningAlgorithm: contracts.AlgorithmEd25519,
		Date:             now.Add(-48 * time.Hour),
	}

	// Disabled by default: old signatures are eternal.
	require.NoError(t, CheckSignatureMeta(sig, contracts.AlgorithmEd25519,
		VerifyOptions{Now: func() time.Time { return now }}))

	err := CheckSignatureMeta(sig, contracts.AlgorithmEd25519,
		VerifyOptions{MaxAge: 24 * time.Hour, Now: func() time.Time { return now }})
	require.ErrorIs(t, err, ErrSignatureExpired)
}
