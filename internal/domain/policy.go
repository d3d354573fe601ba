package domain

// PolicyInput is evaluated by the issuance policy before the service signs.
type PolicyInput struct {
	Action      string           `json:"action"`
	Certificate CertificateInput `json:"certificate"`
	Signer      string           `json:"signer"`
	ChainID     string           `json:"chain_id"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

type PolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny,omitempty"`
}

type PolicyEvaluation struct {
	BundleID   string       `json:"bundle_id,omitempty"`
	BundleHash string       `json:"bundle_hash"`
	Result     PolicyResult `json:"result"`
}
