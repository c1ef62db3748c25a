package contracts

// Algorithm identifies a signature scheme on the wire.
//
// The tag set is closed: every supported scheme is listed here and dispatched
// through pkg/crypto in a single switch, so an unknown tag can never verify.
type Algorithm string

const (
	// AlgorithmEd25519 is the default for new agents: small keys, small signatures.
	AlgorithmEd25519 Algorithm = "ring-Ed25519"

	// AlgorithmRSAPSS is RSA-PSS over SHA-256 with 2048-bit keys, kept for
	// interoperability with agents that cannot use Ed25519.
	AlgorithmRSAPSS Algorithm = "RSA-PSS"

	// AlgorithmMLDSA87 is ML-DSA-87 (NIST FIPS 204), the compliance-grade
	// post-quantum lattice scheme. Signatures are roughly 80x larger than
	// Ed25519.
	AlgorithmMLDSA87 Algorithm = "ML-DSA-87"

	// AlgorithmDilithiumLegacy is round-3 Dilithium5. Retained so signatures
	// produced before the FIPS 204 cutover still verify. New signing with
	// this tag is refused.
	AlgorithmDilithiumLegacy Algorithm = "pq-dilithium"

	// AlgorithmHybrid concatenates an Ed25519 signature with an ML-DSA-87
	// signature over the same message; both halves must verify.
	AlgorithmHybrid Algorithm = "hybrid-Ed25519-ML-DSA-87"
)

// Algorithms returns every supported tag, signing-capable or not.
func Algorithms() []Algorithm {
	return []Algorithm{
		AlgorithmEd25519,
		AlgorithmRSAPSS,
		AlgorithmMLDSA87,
		AlgorithmDilithiumLegacy,
		AlgorithmHybrid,
	}
}

// Known reports whether alg is one of the supported tags.
func (a Algorithm) Known() bool {
	switch a {
	case AlgorithmEd25519, AlgorithmRSAPSS, AlgorithmMLDSA87,
		AlgorithmDilithiumLegacy, AlgorithmHybrid:
		return true
	}
	return false
}

// SigningCapable reports whether new signatures may be produced with alg.
func (a Algorithm) SigningCapable() bool {
	return a.Known() && a != AlgorithmDilithiumLegacy
}
