package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/graft/errors"
	"github.com/c360/graft/pipeline"
)

// Format identifies a pipeline document encoding.
type Format int

const (
	// FormatJSON is a plain JSON document.
	FormatJSON Format = iota

	// FormatYAML is a YAML document, normalized to JSON before validation.
	FormatYAML
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// Document is a complete pipeline description file: a schema version and the
// pipeline spec itself.
type Document struct {
	Version  string        `json:"version"`
	Pipeline pipeline.Spec `json:"pipeline"`
}

// Load reads a pipeline document from disk, detecting the format from the
// file extension (.json, .yaml, .yml). The document is validated against the
// embedded schema and the pipeline's own structural rules before it is
// returned, so a non-nil result is buildable as far as configuration goes.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("read pipeline document %q: %w", path, err),
			"config", "Load", "read file")
	}

	var format Format
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = FormatJSON
	case ".yaml", ".yml":
		format = FormatYAML
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("unsupported document extension %q", filepath.Ext(path)),
			"config", "Load", "detect format")
	}
	return Parse(data, format)
}

// Parse decodes and validates a pipeline document held in memory.
func Parse(data []byte, format Format) (*Document, error) {
	if format == FormatYAML {
		normalized, err := yamlToJSON(data)
		if err != nil {
			return nil, err
		}
		data = normalized
	}

	if err := validateSchema(data); err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("decode pipeline document: %w", err),
			"config", "Parse", "decode document")
	}

	if err := doc.Pipeline.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// yamlToJSON re-encodes a YAML document as JSON so one schema and one
// decoder serve both formats.
func yamlToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("decode yaml: %w", err),
			"config", "Parse", "decode yaml")
	}
	out, err := json.Marshal(normalizeKeys(raw))
	if err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("normalize yaml to json: %w", err),
			"config", "Parse", "normalize yaml")
	}
	return out, nil
}

// normalizeKeys rewrites YAML's occasional map[any]any nodes into
// map[string]any so the result survives json.Marshal.
func normalizeKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeKeys(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeKeys(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalizeKeys(val)
		}
		return t
	default:
		return v
	}
}
