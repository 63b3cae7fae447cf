// Package validation checks parsed manifests against the manifest
// schema before they are allowed near the registry.
package validation

import "github.com/tabletop-dev/tabletop-host-sdk/extension/entities"

// ManifestValidator validates a manifest against the schema.
type ManifestValidator interface {
	// Validate checks the manifest's shape and field constraints.
	Validate(manifest *entities.Manifest) (*ValidationResult, error)
}

// ValidationResult collects validation findings.
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// AddError records a finding and marks the result invalid.
func (r *ValidationResult) AddError(msg string) {
	r.Valid = false
	r.Errors = append(r.Errors, msg)
}
