// Package canonicalize provides RFC 8785 (JSON Canonicalization Scheme)
// serialization of a selected document field set, and SHA-256 digesting over
// it. Signature subjects and agreement content locks are both built here so
// the two can never drift apart.
package canonicalize

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gowebpki/jcs"
)

// ErrFieldMissing is returned when a field named in the signing set is absent
// from the document.
var ErrFieldMissing = errors.New("required field missing")

// Canonical serializes the named fields of doc into RFC 8785 canonical JSON.
//
// Field selection happens before canonicalization, so two documents that agree
// on the selected fields produce identical bytes regardless of any other
// content or of input key ordering. Every name in fields must be present.
func Canonical(doc map[string]any, fields []string) ([]byte, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("canonicalize: empty field list")
	}
	subset := make(map[string]any, len(fields))
	for _, f := range fields {
		v, ok := doc[f]
		if !ok {
			return nil, fmt.Errorf("canonicalize: %w: %q", ErrFieldMissing, f)
		}
		subset[f] = v
	}
	raw, err := json.Marshal(subset)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: pre-marshal failed: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: jcs transform failed: %w", err)
	}
	return canonical, nil
}

// CanonicalHash returns the SHA-256 hex digest of the canonical form of the
// selected fields.
func CanonicalHash(doc map[string]any, fields []string) (string, error) {
	b, err := Canonical(doc, fields)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA-256 hash of raw bytes and returns it hex encoded.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashAny canonicalizes an arbitrary JSON-encodable value and hashes it.
// Used for content locks over values that are not field subsets.
func HashAny(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("canonicalize: encode failed: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize: jcs transform failed: %w", err)
	}
	return HashBytes(canonical), nil
}
