package contracts

// Agreement is a multi-party signing block attached to a document.
//
// Signatures is keyed by agent id and is strictly additive: entries are never
// removed or reordered, which is what makes copy-merge between independently
// signed copies safe.
type Agreement struct {
	AgentIDs   []string             `json:"agentIds"`
	Signatures map[string]Signature `json:"signatures,omitempty"`
	Question   string               `json:"question"`
	Context    string               `json:"context"`

	// Quorum, when > 0, completes the agreement once that many of the
	// required agents have signed, regardless of which subset. Zero means
	// unanimity.
	Quorum int `json:"quorum,omitempty"`
}

// Required reports whether agentID is one of the required signers.
func (a *Agreement) Required(agentID string) bool {
	for _, id := range a.AgentIDs {
		if id == agentID {
			return true
		}
	}
	return false
}

// AgreementStatus is the result of checking an agreement's progress.
type AgreementStatus struct {
	Complete bool     `json:"complete"`
	Signed   []string `json:"signed"`
	Pending  []string `json:"pending"`
	Quorum   int      `json:"quorum,omitempty"`
}
