package identity

import (
	"errors"
	"fmt"
	"math"
	"unicode"
)

// ErrWeakPassword is returned before any key material is encrypted when the
// supplied password does not meet the entropy policy.
var ErrWeakPassword = errors.New("password below minimum entropy")

const (
	minPasswordLength = 12

	// Estimated-entropy floors in bits. Single-character-class passwords
	// need substantially more length to reach the same resistance.
	minEntropyBits            = 40.0
	minEntropyBitsSingleClass = 60.0
)

// checkPasswordStrength enforces the entropy policy. The estimate is
// pool-size based: length * log2(pool), with the pool taken from the
// character classes actually present.
func checkPasswordStrength(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: need at least %d characters", ErrWeakPassword, minPasswordLength)
	}

	var lower, upper, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}

	pool := 0
	classes := 0
	for _, c := range []struct {
		present bool
		size    int
	}{{lower, 26}, {upper, 26}, {digit, 10}, {symbol, 33}} {
		if c.present {
			pool += c.size
			classes++
		}
	}

	bits := float64(len(password)) * math.Log2(float64(pool))
	floor := minEntropyBits
	if classes == 1 {
		floor = minEntropyBitsSingleClass
	}
	if bits < floor {
		return fmt.Errorf("%w: estimated %.0f bits, need %.0f", ErrWeakPassword, bits, floor)
	}
	return nil
}
