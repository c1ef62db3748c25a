package contracts

import "errors"

// ErrClaimDowngrade is the one cross-cutting sentinel: a verification claim
// is monotonic per identity, and both the local identity lifecycle and the
// trust anchoring path must reject a lower tier on a later version with the
// same kind.
var ErrClaimDowngrade = errors.New("verification claim downgrade rejected")
