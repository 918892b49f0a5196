package population

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Decode reads a YAML population from r. Unknown fields are rejected.
func Decode(r io.Reader) (*Population, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var p Population
	if err := dec.Decode(&p); err != nil {
		if err == io.EOF {
			return &Population{}, nil
		}
		return nil, fmt.Errorf("failed to parse population YAML: %w", err)
	}
	return &p, nil
}

// Parse decodes a YAML population from data.
func Parse(data []byte) (*Population, error) {
	return Decode(bytes.NewReader(data))
}

// Load reads a YAML population file.
func Load(path string) (*Population, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open population: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Encode writes p as YAML.
func Encode(w io.Writer, p *Population) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return fmt.Errorf("failed to encode population YAML: %w", err)
	}
	return enc.Close()
}
