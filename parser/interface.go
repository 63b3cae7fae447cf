package parser

import "github.com/tabletop-dev/tabletop-host-sdk/extension/entities"

// ManifestParser parses raw manifest bytes into a Manifest.
type ManifestParser interface {
	// Parse unmarshals manifest bytes into a Manifest struct.
	Parse(data []byte) (*entities.Manifest, error)
}
