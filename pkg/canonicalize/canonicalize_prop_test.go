package canonicalize

import (
	"bytes"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// Canonicalization must be a pure function of field content: re-canonicalizing
// the same logical map always yields identical bytes.
func TestCanonical_Deterministic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("same map canonicalizes identically", prop.ForAll(
		func(m map[string]int) bool {
			if len(m) == 0 {
				return true
			}
			doc := make(map[string]any, len(m))
			fields := make([]string, 0, len(m))
			for k, v := range m {
				doc[k] = v
				fields = append(fields, k)
			}
			c1, err := Canonical(doc, fields)
			if err != nil {
				return false
			}
			c2, err := Canonical(doc, fields)
			if err != nil {
				return false
			}
			return bytes.Equal(c1, c2)
		},
		gen.MapOf(gen.Identifier(), gen.Int()),
	))

	properties.Property("hash is 64 hex chars", prop.ForAll(
		func(s string) bool {
			return len(HashBytes([]byte(s))) == 64
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
