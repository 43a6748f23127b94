package providers

// CredentialSource is the read side of the two-layer credential store
// (internal/credentials.Store satisfies it). Provider adapters consult it
// at call time rather than caching a key, so a PUT /settings update takes
// effect on the very next request without restarting the process.
type CredentialSource interface {
	Get(provider string) (string, bool)
}

func lookup(creds CredentialSource, provider string) string {
	if creds == nil {
		return ""
	}

	v, _ := creds.Get(provider)

	return v
}
