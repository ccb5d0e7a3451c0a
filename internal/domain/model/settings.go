package model

// Settings is the per-integration configuration. Read-only after construction.
type Settings struct {
	// APIKey is the public token sent with every identify/track call.
	APIKey string
	// PrivateKey is only needed for list membership calls.
	PrivateKey    string
	ListID        string
	ConfirmOptin  bool
	SendAnonymous bool
	EnforceEmail  bool
}

// Validate rejects settings that cannot produce a single valid call.
func (s Settings) Validate() error {
	if s.APIKey == "" {
		return &ConfigurationError{Field: "apiKey"}
	}
	return nil
}
