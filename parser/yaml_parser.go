// Package parser provides functionality for parsing extension manifests.
package parser

import (
	"github.com/goccy/go-yaml"

	"github.com/tabletop-dev/tabletop-host-sdk/extension/entities"
)

// YamlManifestParser implements ManifestParser for YAML.
type YamlManifestParser struct{}

// NewYamlManifestParser creates a new YamlManifestParser.
func NewYamlManifestParser() ManifestParser {
	return &YamlManifestParser{}
}

// Parse unmarshals YAML bytes into a Manifest struct.
func (p *YamlManifestParser) Parse(data []byte) (*entities.Manifest, error) {
	var manifest entities.Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}
