package parser

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/imishinist/markercheck/internal/models"
)

func ParseJSONRegistry(reader io.Reader) ([]models.Marker, error) {
	var data models.RegistryFile
	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON registry: %w", err)
	}

	return data.Markers, nil
}
