// Package referencedata loads the conductor and insulation reference dataset from YAML.
package referencedata

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/innovites/cableaudit/internal/domain/model"
)

//go:embed is8130.yaml
var defaultDataset []byte

// Default returns the built-in IS 8130 / IEC 60502-1 dataset.
func Default() (*model.ReferenceDataset, error) {
	return Decode(bytes.NewReader(defaultDataset))
}

// LoadFile reads a dataset from path, or the built-in one when path is empty.
func LoadFile(path string) (*model.ReferenceDataset, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference dataset: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses and validates a YAML dataset. Unknown keys are rejected.
func Decode(r io.Reader) (*model.ReferenceDataset, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var ds model.ReferenceDataset
	if err := dec.Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode reference dataset: %w", err)
	}
	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("invalid reference dataset: %w", err)
	}
	return &ds, nil
}
