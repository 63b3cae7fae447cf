package parser

import (
	"encoding/json"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
)

// JSONManifestParser implements ManifestParser for JSON.
type JSONManifestParser struct{}

// NewJSONManifestParser creates a new JSONManifestParser.
func NewJSONManifestParser() ManifestParser {
	return &JSONManifestParser{}
}

// Parse unmarshals JSON bytes into a Manifest struct.
func (p *JSONManifestParser) Parse(data []byte) (*entities.Manifest, error) {
	var manifest entities.Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}
