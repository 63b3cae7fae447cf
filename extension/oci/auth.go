package oci

import (
	"context"
	"os"
)

// EnvAuthProvider retrieves registry credentials from environment
// variables.
type EnvAuthProvider struct{}

// NewEnvAuthProvider creates a new environment-based auth provider.
func NewEnvAuthProvider() *EnvAuthProvider {
	return &EnvAuthProvider{}
}

// GetCredentials returns username and password for a registry.
func (p *EnvAuthProvider) GetCredentials(ctx context.Context, registry string) (username, password string, err error) {
	return os.Getenv("TABLETOP_REGISTRY_USERNAME"), os.Getenv("TABLETOP_REGISTRY_PASSWORD"), nil
}
