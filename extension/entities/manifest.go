package entities

// Manifest is the raw, untrusted description shipped inside an
// extension package. The loader parses and schema-validates it before
// the registry turns it into a Descriptor.
type Manifest struct {
	// ID is the unique extension identifier (e.g. "weather-effects").
	ID string `json:"id" yaml:"id"`

	// DisplayName is the human-readable name shown in host tooling.
	DisplayName string `json:"displayName" yaml:"displayName"`

	// Version is the extension's semantic version.
	Version string `json:"version" yaml:"version"`

	// Author identifies the publisher.
	Author string `json:"author" yaml:"author"`

	// APIVersion is the host API version the extension was built
	// against, as a semver constraint (e.g. "^2.0").
	APIVersion string `json:"apiVersion" yaml:"apiVersion"`

	// Permissions lists the capabilities the extension declares.
	Permissions []string `json:"permissions,omitempty" yaml:"permissions,omitempty"`

	// Dependencies lists ids of extensions that must be Active before
	// this one activates.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`

	// LoadOrder is the deterministic tie-breaker between extensions
	// with no dependency relation. Lower loads first.
	LoadOrder int `json:"loadOrder,omitempty" yaml:"loadOrder,omitempty"`

	// Description is optional free text.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}
