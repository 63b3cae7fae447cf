package extension_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabletop-dev/tabletop-host-sdk/extension"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/services"
	"github.com/tabletop-dev/tabletop-host-sdk/extension/values"
)

func testManifest() *entities.Manifest {
	return &entities.Manifest{
		ID:          "weather",
		DisplayName: "Weather Effects",
		Version:     "1.2.0",
		Author:      "tabletop",
		APIVersion:  "1.0.0",
	}
}

func testPackage(t *testing.T) *entities.Package {
	t.Helper()
	ref := values.NewOCIReference("reg.io", "tabletop/extensions", "weather", "1.2.0")
	digest, err := values.NewDigest("sha256", "abc123")
	require.NoError(t, err)
	return entities.NewPackage(ref, digest, testManifest(), nil)
}

func newService(t *testing.T, opts ...extension.ServiceOption) *extension.Service {
	t.Helper()
	opts = append(opts, extension.WithServiceLogger(extension.NewTestLogger()))
	svc, err := extension.NewService(&extension.MockRepository{}, opts...)
	require.NoError(t, err)
	return svc
}

func TestService_LoadPackage(t *testing.T) {
	pkg := testPackage(t)
	resolver := &extension.MockResolver{FoundPackage: pkg}

	t.Run("Success_NoVerification", func(t *testing.T) {
		svc := newService(t, extension.WithResolver(resolver))

		decl := &entities.Declaration{Alias: "weather", Source: "reg.io/tabletop/extensions/weather:1.2.0"}
		got, err := svc.LoadPackage(context.Background(), decl)
		require.NoError(t, err)
		assert.Same(t, pkg, got)
	})

	t.Run("Success_WithDigestVerification", func(t *testing.T) {
		svc := newService(t, extension.WithResolver(resolver))

		decl := &entities.Declaration{
			Alias:  "weather",
			Source: "reg.io/tabletop/extensions/weather:1.2.0",
			Digest: "sha256:abc123",
		}
		_, err := svc.LoadPackage(context.Background(), decl)
		require.NoError(t, err)
	})

	t.Run("Fail_DigestMismatch", func(t *testing.T) {
		svc := newService(t, extension.WithResolver(resolver))

		decl := &entities.Declaration{
			Alias:  "weather",
			Source: "reg.io/tabletop/extensions/weather:1.2.0",
			Digest: "sha256:bad0",
		}
		_, err := svc.LoadPackage(context.Background(), decl)
		require.Error(t, err)

		var integrityErr *entities.IntegrityError
		assert.ErrorAs(t, err, &integrityErr)
	})

	t.Run("Success_WithSignatureVerification", func(t *testing.T) {
		verifier := &extension.MockVerifier{}
		svc := newService(t,
			extension.WithResolver(resolver),
			extension.WithIntegrityVerifier(verifier),
			extension.WithIntegrityService(services.NewIntegrityService(true)),
		)

		decl := &entities.Declaration{Alias: "weather", Source: "reg.io/tabletop/extensions/weather:1.2.0"}
		_, err := svc.LoadPackage(context.Background(), decl)
		require.NoError(t, err)
		assert.Len(t, verifier.Verified, 1)
	})

	t.Run("Fail_SignatureVerification", func(t *testing.T) {
		verifier := &extension.MockVerifier{VerifyErr: errors.New("sig fail")}
		svc := newService(t,
			extension.WithResolver(resolver),
			extension.WithIntegrityVerifier(verifier),
			extension.WithIntegrityService(services.NewIntegrityService(true)),
		)

		decl := &entities.Declaration{Alias: "weather", Source: "reg.io/tabletop/extensions/weather:1.2.0"}
		_, err := svc.LoadPackage(context.Background(), decl)
		require.Error(t, err)
	})

	t.Run("Fail_SignatureRequiredWithoutVerifier", func(t *testing.T) {
		svc := newService(t,
			extension.WithResolver(resolver),
			extension.WithIntegrityService(services.NewIntegrityService(true)),
		)

		decl := &entities.Declaration{Alias: "weather", Source: "reg.io/tabletop/extensions/weather:1.2.0"}
		_, err := svc.LoadPackage(context.Background(), decl)
		require.Error(t, err)
	})

	t.Run("Fail_Resolution", func(t *testing.T) {
		badResolver := &extension.MockResolver{Err: errors.New("not found")}
		svc := newService(t, extension.WithResolver(badResolver))

		decl := &entities.Declaration{Alias: "weather", Source: "reg.io/tabletop/extensions/weather:1.2.0"}
		_, err := svc.LoadPackage(context.Background(), decl)
		require.Error(t, err)
	})

	t.Run("Fail_InvalidSource", func(t *testing.T) {
		svc := newService(t, extension.WithResolver(resolver))

		decl := &entities.Declaration{Alias: "weather", Source: ""}
		_, err := svc.LoadPackage(context.Background(), decl)
		require.Error(t, err)
	})

	t.Run("ConstraintPinsUnversionedRef", func(t *testing.T) {
		local := values.NewLocalReference("weather").WithVersion("1.2.0")
		localPkg := entities.NewPackage(local, pkg.Digest(), testManifest(), nil)
		svc := newService(t, extension.WithResolver(&extension.MockResolver{FoundPackage: localPkg}))

		decl := &entities.Declaration{Alias: "weather", Source: "weather", Constraint: "1.2.0"}
		got, err := svc.LoadPackage(context.Background(), decl)
		require.NoError(t, err)
		assert.Equal(t, "1.2.0", got.Reference().Version())
	})
}

func TestService_PublishPackage(t *testing.T) {
	pkg := testPackage(t)

	t.Run("Success", func(t *testing.T) {
		registry := &extension.MockRegistry{}
		svc := newService(t,
			extension.WithResolver(&extension.MockResolver{FoundPackage: pkg}),
			extension.WithRegistry(registry),
		)

		err := svc.PublishPackage(context.Background(), pkg, bytes.NewReader([]byte("payload")))
		require.NoError(t, err)
		assert.Len(t, registry.Pushed, 1)
	})

	t.Run("Fail_NoRegistry", func(t *testing.T) {
		svc := newService(t, extension.WithResolver(&extension.MockResolver{FoundPackage: pkg}))

		err := svc.PublishPackage(context.Background(), pkg, bytes.NewReader(nil))
		require.Error(t, err)
	})

	t.Run("Fail_NonOCIReference", func(t *testing.T) {
		registry := &extension.MockRegistry{}
		svc := newService(t,
			extension.WithResolver(&extension.MockResolver{FoundPackage: pkg}),
			extension.WithRegistry(registry),
		)

		local := entities.NewPackage(values.NewLocalReference("weather"), pkg.Digest(), testManifest(), nil)
		err := svc.PublishPackage(context.Background(), local, bytes.NewReader(nil))
		require.Error(t, err)
	})
}
