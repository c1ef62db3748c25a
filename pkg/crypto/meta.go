package crypto

import (
	"fmt"
	"time"

	"github.com/Mindburn-Labs/anchor/pkg/contracts"
)

// DefaultClockSkew is the tolerance for signature dates that are slightly in
// the future, covering ordinary clock drift between agents.
const DefaultClockSkew = 5 * time.Minute

// VerifyOptions parameterize the non-cryptographic checks applied to a
// signature's metadata.
type VerifyOptions struct {
	// ClockSkew is the future-dating tolerance. Zero means DefaultClockSkew.
	ClockSkew time.Duration

	// MaxAge, when > 0, rejects signatures older than this. Zero disables
	// the check: signatures are eternal by default.
	MaxAge time.Duration

	// Now overrides the reference time in tests.
	Now func() time.Time
}

func (o VerifyOptions) skew() time.Duration {
	if o.ClockSkew > 0 {
		return o.ClockSkew
	}
	return DefaultClockSkew
}

func (o VerifyOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now().UTC()
}

// CheckSignatureMeta enforces the policy checks that precede any
// cryptographic verification: the recorded algorithm must match the algorithm
// bound to the resolved key (no silent downgrade), the date must not be
// further in the future than the skew tolerance, and an optional maximum age
// applies if configured.
func CheckSignatureMeta(sig *contracts.Signature, resolvedAlg contracts.Algorithm, opts VerifyOptions) error {
	if sig == nil {
		return fmt.Errorf("%w: no signature present", ErrSignatureInvalid)
	}
	if !sig.SigningAlgorithm.Known() {
		return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, sig.SigningAlgorithm)
	}
	if sig.SigningAlgorithm != resolvedAlg {
		return fmt.Errorf("%w: signature says %q, key is %q",
			ErrAlgorithmMismatch, sig.SigningAlgorithm, resolvedAlg)
	}

	now := opts.now()
	if sig.Date.After(now.Add(opts.skew())) {
		return fmt.Errorf("%w: dated %s, now %s",
			ErrSignatureFromFuture, sig.Date.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	if opts.MaxAge > 0 && now.Sub(sig.Date) > opts.MaxAge {
		return fmt.Errorf("%w: dated %s, max age %s",
			ErrSignatureExpired, sig.Date.Format(time.RFC3339), opts.MaxAge)
	}
	return nil
}
