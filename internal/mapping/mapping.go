// Package mapping provides the source-type to catalog-blueprint table.
//
// The table decides both which control-plane types are synced and which
// blueprint each one lands in. Order is significant: types are synced in
// table order, after services. A built-in default is used unless a
// mapping file is configured.
//
// Supports both YAML (.yaml, .yml) and JSON (.json) mapping files.
package mapping

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry maps one source type to a blueprint
type Entry struct {
	Type      string `yaml:"type" json:"type"`
	Blueprint string `yaml:"blueprint" json:"blueprint"`
}

// Mapping is the ordered type to blueprint table
type Mapping []Entry

// File is the on-disk layout of a mapping file
type File struct {
	Mappings Mapping `yaml:"mappings" json:"mappings"`
}

// Default returns the built-in table
func Default() Mapping {
	return Mapping{
		{Type: "api_product", Blueprint: "kongApiProduct"},
		{Type: "api_product_version", Blueprint: "kongApiVersion"},
		{Type: "service", Blueprint: "kongApi"},
		{Type: "route", Blueprint: "kongApiRoute"},
		{Type: "consumer", Blueprint: "consumer"},
	}
}

// Blueprint returns the blueprint mapped to typ
func (m Mapping) Blueprint(typ string) (string, bool) {
	for _, e := range m {
		if e.Type == typ {
			return e.Blueprint, true
		}
	}
	return "", false
}

// Load loads and parses a mapping file (supports .yaml, .yml, and .json)
func Load(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	var file File

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse mapping JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse mapping YAML: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse mapping (unknown extension %s, tried YAML): %w", ext, err)
		}
	}

	return file.Mappings, nil
}

// Resolve returns the mapping in path, or the built-in table when path is empty
func Resolve(path string) (Mapping, error) {
	if path == "" {
		return Default(), nil
	}

	m, err := Load(path)
	if err != nil {
		return nil, err
	}

	if result := m.Validate(); !result.Valid {
		return nil, fmt.Errorf("invalid mapping file %s: %s", path, strings.Join(result.Errors, "; "))
	}

	return m, nil
}

// Save saves the mapping to file (format determined by file extension)
func Save(m Mapping, path string) error {
	file := File{Mappings: m}

	var data []byte
	var err error

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		data, err = json.MarshalIndent(file, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal mapping JSON: %w", err)
		}
	default:
		data, err = yaml.Marshal(file)
		if err != nil {
			return fmt.Errorf("failed to marshal mapping YAML: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write mapping file: %w", err)
	}

	return nil
}

// ValidationResult collects every problem found in a mapping
type ValidationResult struct {
	Valid  bool
	Errors []string
}

func (r *ValidationResult) addError(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

var blueprintPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate checks entries for empty fields, duplicate types and blueprint
// identifiers the catalog would reject in a URL path.
func (m Mapping) Validate() *ValidationResult {
	result := &ValidationResult{Valid: true, Errors: []string{}}

	if len(m) == 0 {
		result.addError("mapping has no entries")
		return result
	}

	seen := map[string]int{}
	for i, e := range m {
		if e.Type == "" {
			result.addError("entry %d: type is required", i)
		}

		if e.Blueprint == "" {
			result.addError("entry %d: blueprint is required", i)
		} else if !blueprintPattern.MatchString(e.Blueprint) {
			result.addError("entry %d: invalid blueprint identifier %q", i, e.Blueprint)
		}

		if e.Type == "" {
			continue
		}
		if prev, ok := seen[e.Type]; ok {
			result.addError("entry %d: type %q already mapped by entry %d", i, e.Type, prev)
			continue
		}
		seen[e.Type] = i
	}

	return result
}
