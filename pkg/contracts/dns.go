package contracts

// DNS trust record constants. The record is published externally under the
// agent's domain; this system only formats and consumes it.
const (
	// DNSOwnerPrefix is prepended to the agent's domain to form the TXT
	// owner name, e.g. _v1.agent.jacs.example.com.
	DNSOwnerPrefix = "_v1.agent.jacs."

	// DNSVersionTag is the fixed v= value identifying the record grammar.
	DNSVersionTag = "hai.ai"

	// DNSHashAlg is the only supported fingerprint hash tag.
	DNSHashAlg = "sha256"

	// DNSEncoding is the only supported fingerprint encoding tag.
	DNSEncoding = "base64"
)

// DNSTrustRecord is the parsed form of the TXT record
//
//	v=hai.ai; id=<agent-uuid>; alg=sha256; enc=base64; fp=<digest>
type DNSTrustRecord struct {
	AgentID     string `json:"id"`
	HashAlg     string `json:"alg"`
	Encoding    string `json:"enc"`
	Fingerprint string `json:"fp"`
}

// DNSOwnerName returns the TXT owner name for a domain.
func DNSOwnerName(domain string) string {
	return DNSOwnerPrefix + domain
}
