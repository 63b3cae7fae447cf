package dto

import (
	"io"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
)

// PackageArtifactDTO is a data transfer object for extension package
// artifacts moving between the registry adapter and the service layer.
type PackageArtifactDTO struct {
	Package *entities.Package
	Payload io.ReadCloser
}

// NewPackageArtifactDTO wraps a package and its payload stream.
func NewPackageArtifactDTO(pkg *entities.Package, payload io.ReadCloser) *PackageArtifactDTO {
	return &PackageArtifactDTO{
		Package: pkg,
		Payload: payload,
	}
}

// Close releases the payload stream.
func (d *PackageArtifactDTO) Close() error {
	if d.Payload != nil {
		return d.Payload.Close()
	}
	return nil
}
