package crypto

import "errors"

var (
	// ErrUnsupportedAlgorithm is returned for a tag outside the closed set.
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

	// ErrLegacySignRefused is returned when signing is attempted with an
	// algorithm retained for verification only.
	ErrLegacySignRefused = errors.New("legacy algorithm is verify-only")

	// ErrBadKeyMaterial is returned when key bytes cannot be decoded for the
	// stated algorithm.
	ErrBadKeyMaterial = errors.New("malformed key material")

	// ErrSignatureInvalid is returned when the cryptographic check fails.
	ErrSignatureInvalid = errors.New("signature verification failed")

	// ErrAlgorithmMismatch is returned when the algorithm recorded in a
	// signature does not match the algorithm bound to the resolved key.
	// This is the downgrade guard: it fires before any cryptographic check.
	ErrAlgorithmMismatch = errors.New("signature algorithm does not match resolved key algorithm")

	// ErrSignatureFromFuture is returned when a signature is dated further in
	// the future than the allowed clock skew.
	ErrSignatureFromFuture = errors.New("signature date is in the future")

	// ErrSignatureExpired is returned when a maximum signature age is
	// configured and exceeded. Disabled by default; signatures are otherwise
	// eternal.
	ErrSignatureExpired = errors.New("signature exceeds maximum age")
)
