package services

import (
	"context"
	"fmt"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// IntegrityService decides what integrity checks a package must pass.
type IntegrityService struct {
	requireSigning bool
}

// NewIntegrityService creates an integrity service.
func NewIntegrityService(requireSigning bool) *IntegrityService {
	return &IntegrityService{requireSigning: requireSigning}
}

// VerifyDigest checks the package digest against an expected value.
func (s *IntegrityService) VerifyDigest(pkg *entities.Package, expected values.Digest) error {
	return pkg.VerifyIntegrity(expected)
}

// ShouldVerifySignature reports whether signature verification is
// required for pulled packages.
func (s *IntegrityService) ShouldVerifySignature() bool {
	return s.requireSigning
}

// ValidatePackage performs the digest check. Signature verification is
// a separate port; cryptography stays out of the domain layer.
func (s *IntegrityService) ValidatePackage(ctx context.Context, pkg *entities.Package, expected values.Digest) error {
	if err := s.VerifyDigest(pkg, expected); err != nil {
		return fmt.Errorf("digest verification failed: %w", err)
	}
	return nil
}
