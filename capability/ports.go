package capability

// Request represents a single capability request presented for a grant
// decision.
type Request struct {
	ExtensionID string
	Capability  Capability
	Description string
	// IsBroad marks requests that reach beyond a single extension's
	// natural footprint (currently only the wildcard).
	IsBroad bool
}

// GrantStore persists and retrieves host-approved capability grants,
// keyed by extension id.
type GrantStore interface {
	Load() (map[string]Set, error)
	Save(grants map[string]Set) error
	ConfigPath() string
}

// Prompter handles interactive capability authorization by the host
// operator.
type Prompter interface {
	IsInteractive() bool
	PromptForCapability(req Request) (granted bool, always bool, err error)
	FormatNonInteractiveError(missing []Request) error
}
