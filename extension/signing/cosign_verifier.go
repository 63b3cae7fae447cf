// Package signing verifies extension package signatures with Cosign.
package signing

import (
	"context"
	"fmt"

	"github.com/google/go-containerregistry/pkg/name"
	"github.com/sigstore/cosign/v2/pkg/cosign"
	"github.com/sigstore/cosign/v2/pkg/oci/remote"
	sigs "github.com/sigstore/cosign/v2/pkg/signature"
	"github.com/sigstore/sigstore/pkg/signature"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/ports"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

// CosignVerifier implements ports.IntegrityVerifier using Cosign.
// With public keys configured it verifies against those; otherwise it
// falls back to keyless verification against the configured OIDC
// issuers and the transparency log.
type CosignVerifier struct {
	publicKeys  []string
	oidcIssuers []string
}

// NewCosignVerifier creates a Cosign-based verifier.
func NewCosignVerifier(publicKeys []string, oidcIssuers []string) *CosignVerifier {
	if len(oidcIssuers) == 0 {
		oidcIssuers = []string{
			"https://token.actions.githubusercontent.com",
			"https://gitlab.com",
		}
	}
	return &CosignVerifier{
		publicKeys:  publicKeys,
		oidcIssuers: oidcIssuers,
	}
}

// VerifySignature checks the package's signature.
func (v *CosignVerifier) VerifySignature(ctx context.Context, ref values.PackageReference) (*ports.SignatureResult, error) {
	if !ref.IsOCI() {
		return nil, fmt.Errorf("signature verification requires an OCI reference, got %s", ref.String())
	}

	opts := &cosign.CheckOpts{
		RegistryClientOpts: []remote.Option{},
	}
	if len(v.publicKeys) > 0 {
		return v.verifyWithPublicKeys(ctx, ref, opts)
	}
	return v.verifyKeyless(ctx, ref, opts)
}

// Sign signs a package artifact for publishing.
func (v *CosignVerifier) Sign(ctx context.Context, ref values.PackageReference) error {
	return fmt.Errorf("signing is performed by the publishing pipeline, not the host")
}

func (v *CosignVerifier) verifyWithPublicKeys(ctx context.Context, ref values.PackageReference, opts *cosign.CheckOpts) (*ports.SignatureResult, error) {
	for _, keyPath := range v.publicKeys {
		verifier, err := loadPublicKeyVerifier(ctx, keyPath)
		if err != nil {
			continue
		}
		opts.SigVerifier = verifier
		opts.IgnoreTlog = true
		if result, err := verifyWithOpts(ctx, ref, opts); err == nil {
			return result, nil
		}
	}
	return nil, fmt.Errorf("no configured public key verified %s", ref.String())
}

func (v *CosignVerifier) verifyKeyless(ctx context.Context, ref values.PackageReference, opts *cosign.CheckOpts) (*ports.SignatureResult, error) {
	opts.IgnoreTlog = false
	opts.Identities = identitiesForIssuers(v.oidcIssuers)
	return verifyWithOpts(ctx, ref, opts)
}

func identitiesForIssuers(issuers []string) []cosign.Identity {
	identities := make([]cosign.Identity, 0, len(issuers))
	for _, issuer := range issuers {
		identities = append(identities, cosign.Identity{Issuer: issuer, SubjectRegExp: ".*"})
	}
	return identities
}

func loadPublicKeyVerifier(ctx context.Context, keyRef string) (signature.Verifier, error) {
	return sigs.PublicKeyFromKeyRef(ctx, keyRef)
}

func verifyWithOpts(ctx context.Context, ref values.PackageReference, opts *cosign.CheckOpts) (*ports.SignatureResult, error) {
	imageRef, err := name.ParseReference(ref.String())
	if err != nil {
		return nil, fmt.Errorf("parse reference: %w", err)
	}

	verified, _, err := cosign.VerifyImageSignatures(ctx, imageRef, opts)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", ref.String(), err)
	}
	if len(verified) == 0 {
		return nil, fmt.Errorf("no valid signatures found for %s", ref.String())
	}

	result := &ports.SignatureResult{Verified: true}
	if cert, err := verified[0].Cert(); err == nil && cert != nil {
		result.Signer = sigs.CertSubject(cert)
		result.Certificate = cert.Raw
	}
	if bundle, err := verified[0].Bundle(); err == nil && bundle != nil {
		result.TransparencyLog = fmt.Sprintf("%d", bundle.Payload.LogIndex)
	}
	return result, nil
}
