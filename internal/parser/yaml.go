package parser

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/imishinist/markercheck/internal/models"
)

func ParseYAMLRegistry(reader io.Reader) ([]models.Marker, error) {
	var data models.RegistryFile
	decoder := yaml.NewDecoder(reader)
	decoder.KnownFields(true)

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse YAML registry: %w", err)
	}

	return data.Markers, nil
}
