package dnsanchor

import "github.com/Mindburn-Labs/anchor/pkg/contracts"

// Action is what the verification flags demand of the DNS check.
type Action int

const (
	// ActionSkip: no DNS check; trust the embedded fingerprint alone.
	ActionSkip Action = iota

	// ActionAttempt: try DNS; on any lookup or match failure fall back to
	// the embedded fingerprint.
	ActionAttempt

	// ActionRequire: the record must exist and match; no fallback.
	ActionRequire

	// ActionRequireAuthenticated: ActionRequire plus a DNSSEC-authenticated
	// answer.
	ActionRequireAuthenticated
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionAttempt:
		return "attempt"
	case ActionRequire:
		return "require"
	case ActionRequireAuthenticated:
		return "require-authenticated"
	}
	return "unknown"
}

// Flags are the three independent verification switches.
type Flags struct {
	Validate bool
	Required bool
	Strict   bool
}

// Decide maps the three flags to an action. Pure function, the whole
// fallback table in one place:
//
//	validate required strict -> action
//	false    *        *        skip
//	true     false    *        attempt (fallback allowed)
//	true     true     false    require
//	true     true     true     require + DNSSEC
func Decide(f Flags) Action {
	switch {
	case !f.Validate:
		return ActionSkip
	case !f.Required:
		return ActionAttempt
	case !f.Strict:
		return ActionRequire
	default:
		return ActionRequireAuthenticated
	}
}

// EffectiveFlags applies the defaulting rules. When the caller supplies no
// flags: a declared domain turns validate and required on; strict stays off.
// A verified claim tier forces all three on regardless of caller flags —
// the claim's requirements cannot be waived.
func EffectiveFlags(domain string, claim contracts.VerificationClaim, caller *Flags) Flags {
	var f Flags
	if caller != nil {
		f = *caller
	} else if domain != "" {
		f = Flags{Validate: true, Required: true}
	}
	if claim.Verified() {
		f = Flags{Validate: true, Required: true, Strict: true}
	}
	return f
}
