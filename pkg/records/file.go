package records

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format names a record file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the encoding from a file extension, YAML by default.
func FormatOf(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// Decode reads a list of records.
func Decode(r io.Reader, f Format) ([]*Record, error) {
	var recs []*Record
	switch f {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&recs); err != nil {
			return nil, fmt.Errorf("decoding records: %w", err)
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&recs); err != nil && err != io.EOF {
			return nil, fmt.Errorf("decoding records: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown record format %q", f)
	}

	seen := make(map[string]bool, len(recs))
	for i, rec := range recs {
		if rec == nil || rec.ID == "" {
			return nil, fmt.Errorf("record %d has no id", i+1)
		}
		if seen[rec.ID] {
			return nil, fmt.Errorf("duplicate record id %q", rec.ID)
		}
		seen[rec.ID] = true
		if rec.Fields == nil {
			rec.Fields = map[string]any{}
		}
		rec.Fields = normalize(rec.Fields).(map[string]any)
	}
	return recs, nil
}

// Encode writes a list of records.
func Encode(w io.Writer, recs []*Record, f Format) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(recs); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown record format %q", f)
}

// ReadFile loads the records in a JSON or YAML file.
func ReadFile(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f, FormatOf(path))
}
