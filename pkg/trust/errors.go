package trust

import "errors"

var (
	// ErrAgentNotTrusted is returned when an operation names an agent with no
	// trust-store record. Untrusting an unknown agent is an error, not a
	// silent success.
	ErrAgentNotTrusted = errors.New("agent is not trusted")

	// ErrKeyNotFound is returned when a specific key hash has no entry for a
	// known agent.
	ErrKeyNotFound = errors.New("key not found in trust store")

	// ErrKeyResolutionFailed is returned when every lookup source, cache
	// through DNS, has been exhausted.
	ErrKeyResolutionFailed = errors.New("key resolution failed: all sources exhausted")

	// ErrInvalidAgentID is returned for identifiers that do not match the
	// structured UUID pattern.
	ErrInvalidAgentID = errors.New("invalid agent id")

	// ErrPathTraversal is returned when a value that participates in a
	// storage path carries traversal or separator characters. Raised before
	// any filesystem access.
	ErrPathTraversal = errors.New("path-unsafe value rejected")

	// ErrKeyStatusRegression is returned on an attempt to move a key history
	// entry backwards, e.g. reviving a revoked key.
	ErrKeyStatusRegression = errors.New("key status transition not allowed")

	// ErrRotationContinuity is returned when a rotation record does not chain
	// from the agent's current key.
	ErrRotationContinuity = errors.New("rotation does not chain from current key")
)
