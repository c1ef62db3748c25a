package agreement

import (
	"encoding/json"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
)

func testDoc(t *testing.T) *contracts.Document {
	t.Helper()
	return &contracts.Document{
		ID:              "doc-1",
		Version:         "v-1",
		OriginalVersion: "v-1",
		Type:            "task",
		Content:         json.RawMessage(`{"plan":"deploy"}`),
	}
}

func stubSigner(agentID string) SignFunc {
	return func(subject []byte) (*contracts.Signature, error) {
		return &contracts.Signature{
			AgentID:          agentID,
			AgentVersion:     "av-1",
			PublicKeyHash:    "hash-" + agentID,
			SigningAlgorithm: contracts.AlgorithmEd25519,
			Signature:        "c2ln",
			Fields:           []string{"agreementHash"},
		}, nil
	}
}

func TestCreate(t *testing.T) {
	doc := testDoc(t)
	require.NoError(t, Create(doc, []string{"a", "b", "c"}, "ship it?", "release", 2))

	require.NotNil(t, doc.Agreement)
	assert.Equal(t, []string{"a", "b", "c"}, doc.Agreement.AgentIDs)
	assert.Equal(t, 2, doc.Agreement.Quorum)
	assert.NotEmpty(t, doc.AgreementHash)

	t.Run("refuses overwrite", func(t *testing.T) {
		err := Create(doc, []string{"x"}, "again?", "", 0)
		assert.ErrorIs(t, err, ErrAgreementExists)
	})

	t.Run("rejects empty signer set", func(t *testing.T) {
		err := Create(testDoc(t), nil, "q", "", 0)
		assert.Error(t, err)
	})

	t.Run("rejects quorum above signer count", func(t *testing.T) {
		err := Create(testDoc(t), []string{"a"}, "q", "", 2)
		assert.ErrorIs(t, err, ErrBadQuorum)
	})
}

func TestSignAndCheck(t *testing.T) {
	doc := testDoc(t)
	require.NoError(t, Create(doc, []string{"a", "b", "c"}, "ship it?", "", 2))

	status, err := Check(doc)
	require.NoError(t, err)
	assert.False(t, status.Complete)
	assert.Equal(t, []string{"a", "b", "c"}, status.Pending)

	require.NoError(t, Sign(doc, "a", contracts.ResponseAgree, stubSigner("a")))

	status, err = Check(doc)
	require.NoError(t, err)
	assert.False(t, status.Complete)
	assert.Equal(t, []string{"a"}, status.Signed)

	require.NoError(t, Sign(doc, "c", contracts.ResponseAgree, stubSigner("c")))

	status, err = Check(doc)
	require.NoError(t, err)
	assert.True(t, status.Complete, "quorum of 2 met by {a, c}")
	assert.Equal(t, []string{"b"}, status.Pending)

	// Idempotent: re-checking does not change the answer.
	again, err := Check(doc)
	require.NoError(t, err)
	assert.Equal(t, status, again)
}

func TestRequireComplete(t *testing.T) {
	doc := testDoc(t)
	require.NoError(t, Create(doc, []string{"a", "b"}, "ship it?", "", 2))

	status, err := RequireComplete(doc)
	require.ErrorIs(t, err, ErrQuorumNotMet)
	assert.False(t, status.Complete)

	require.NoError(t, Sign(doc, "a", contracts.ResponseAgree, stubSigner("a")))
	_, err = RequireComplete(doc)
	require.ErrorIs(t, err, ErrQuorumNotMet)

	require.NoError(t, Sign(doc, "b", contracts.ResponseAgree, stubSigner("b")))
	status, err = RequireComplete(doc)
	require.NoError(t, err)
	assert.True(t, status.Complete)

	t.Run("tampering is not incompleteness", func(t *testing.T) {
		doc.Content = map[string]any{"changed": true}
		_, err := RequireComplete(doc)
		require.ErrorIs(t, err, ErrAgreementTampered)
		assert.NotErrorIs(t, err, ErrQuorumNotMet)
	})
}

func TestSignRejections(t *testing.T) {
	doc := testDoc(t)
	require.NoError(t, Create(doc, []string{"a", "b"}, "q", "", 0))
	require.NoError(t, Sign(doc, "a", contracts.ResponseAgree, stubSigner("a")))

	t.Run("outsider", func(t *testing.T) {
		err := Sign(doc, "mallory", contracts.ResponseAgree, stubSigner("mallory"))
		assert.ErrorIs(t, err, ErrNotRequiredSigner)
	})

	t.Run("double sign", func(t *testing.T) {
		err := Sign(doc, "a", contracts.ResponseAgree, stubSigner("a"))
		assert.ErrorIs(t, err, ErrAlreadySigned)
	})

	t.Run("no agreement", func(t *testing.T) {
		err := Sign(testDoc(t), "a", contracts.ResponseAgree, stubSigner("a"))
		assert.ErrorIs(t, err, ErrNoAgreement)
	})
}

func TestTamperDetection(t *testing.T) {
	doc := testDoc(t)
	require.NoError(t, Create(doc, []string{"a", "b"}, "q", "", 0))
	require.NoError(t, Sign(doc, "a", contracts.ResponseAgree, stubSigner("a")))

	doc.Content = json.RawMessage(`{"plan":"rm -rf"}`)

	err := Sign(doc, "b", contracts.ResponseAgree, stubSigner("b"))
	assert.ErrorIs(t, err, ErrAgreementTampered)

	_, err = Check(doc)
	assert.ErrorIs(t, err, ErrAgreementTampered)
	assert.NotErrorIs(t, err, ErrQuorumNotMet, "tampering is not incompleteness")
}

func TestSigningDoesNotBreakLock(t *testing.T) {
	doc := testDoc(t)
	require.NoError(t, Create(doc, []string{"a", "b"}, "q", "", 0))
	require.NoError(t, Sign(doc, "a", contracts.ResponseAgree, stubSigner("a")))

	// Version metadata changes on save; the lock must survive both.
	doc.Version = "v-2"
	doc.PreviousVersion = "v-1"

	require.NoError(t, Sign(doc, "b", contracts.ResponseDisagree, stubSigner("b")))
	status, err := Check(doc)
	require.NoError(t, err)
	assert.True(t, status.Complete)
	assert.Equal(t, contracts.ResponseDisagree, doc.Agreement.Signatures["b"].Response)
}

func TestMerge(t *testing.T) {
	base := testDoc(t)
	require.NoError(t, Create(base, []string{"a", "b"}, "q", "", 0))

	copyDoc := func(src *contracts.Document) *contracts.Document {
		raw, err := json.Marshal(src)
		require.NoError(t, err)
		var out contracts.Document
		require.NoError(t, json.Unmarshal(raw, &out))
		return &out
	}

	left := copyDoc(base)
	right := copyDoc(base)
	require.NoError(t, Sign(left, "a", contracts.ResponseAgree, stubSigner("a")))
	require.NoError(t, Sign(right, "b", contracts.ResponseAgree, stubSigner("b")))

	require.NoError(t, Merge(left, right))
	status, err := Check(left)
	require.NoError(t, err)
	assert.True(t, status.Complete)

	t.Run("keep-first on conflict", func(t *testing.T) {
		other := copyDoc(base)
		require.NoError(t, Sign(other, "a", contracts.ResponseReject, stubSigner("a")))
		require.NoError(t, Merge(left, other))
		assert.Equal(t, contracts.ResponseAgree, left.Agreement.Signatures["a"].Response)
	})

	t.Run("different locks refuse to merge", func(t *testing.T) {
		other := testDoc(t)
		other.Content = json.RawMessage(`{"plan":"other"}`)
		require.NoError(t, Create(other, []string{"a", "b"}, "q", "", 0))
		err := Merge(left, other)
		assert.ErrorIs(t, err, ErrAgreementTampered)
	})
}

func TestQuorumArithmetic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("complete iff signed >= quorum (or all signed when quorum is 0)", prop.ForAll(
		func(n int, quorum int, signers int) bool {
			if quorum > n {
				quorum = quorum % (n + 1)
			}
			if signers > n {
				signers = signers % (n + 1)
			}
			ids := make([]string, n)
			for i := range ids {
				ids[i] = string(rune('a' + i))
			}
			doc := &contracts.Document{
				ID:      "doc-p",
				Content: json.RawMessage(`{}`),
			}
			if err := Create(doc, ids, "q", "", quorum); err != nil {
				return false
			}
			for i := 0; i < signers; i++ {
				if err := Sign(doc, ids[i], contracts.ResponseAgree, stubSigner(ids[i])); err != nil {
					return false
				}
			}
			status, err := Check(doc)
			if err != nil {
				return false
			}
			want := signers == n
			if quorum > 0 {
				want = signers >= quorum
			}
			return status.Complete == want &&
				len(status.Signed) == signers &&
				len(status.Pending) == n-signers
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 20),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}
