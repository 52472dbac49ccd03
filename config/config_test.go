package config

import (
	stderrors "errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/c360/graft/errors"
	"github.com/c360/graft/pipeline"
)

// Stage configs accumulate build state once a pipeline runs; document tests
// only care about the declared fields.
var ignoreBuildState = cmpopts.IgnoreUnexported(pipeline.StageConfig{})

func TestLoad_JSON(t *testing.T) {
	doc, err := Load("testdata/pipeline.json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := &Document{
		Version: "1.0.0",
		Pipeline: pipeline.Spec{
			Name:   "capture",
			Source: &pipeline.StageConfig{Kind: "source"},
			Stages: []*pipeline.StageConfig{
				{GoTo: "source", Kind: "decode", Alias: "d"},
				{GoTo: "d", Kind: "queue", Alias: "queueA"},
				{LinkTo: "mux"},
				{GoTo: "d", Kind: "queue", Alias: "queueB"},
				{Kind: "mux", Alias: "mux"},
			},
			Sink: &pipeline.StageConfig{Kind: "sink"},
		},
	}
	if diff := cmp.Diff(want, doc, ignoreBuildState); diff != "" {
		t.Errorf("document mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_YAML(t *testing.T) {
	doc, err := Load("testdata/pipeline.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if doc.Version != "1.0.0" {
		t.Errorf("version = %q, want 1.0.0", doc.Version)
	}
	if doc.Pipeline.Name != "capture" {
		t.Errorf("pipeline name = %q, want capture", doc.Pipeline.Name)
	}

	src := doc.Pipeline.Source.Properties
	if got := GetInt(src, "rate", 0); got != 48000 {
		t.Errorf("source rate = %d, want 48000", got)
	}
	if got := GetString(src, "device", ""); got != "default" {
		t.Errorf("source device = %q, want default", got)
	}

	if len(doc.Pipeline.Stages) != 1 {
		t.Fatalf("stages = %d, want 1", len(doc.Pipeline.Stages))
	}
	decode := doc.Pipeline.Stages[0].Properties
	if got := GetString(decode, "format", ""); got != "wav" {
		t.Errorf("decode format = %q, want wav", got)
	}
	if got := GetInt(decode, "channels", 0); got != 2 {
		t.Errorf("decode channels = %d, want 2", got)
	}
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load("testdata/pipeline.txt")
	if err == nil {
		t.Fatal("Load accepted a .txt document")
	}
	if !errors.IsInvalid(err) {
		t.Errorf("error class = %v, want invalid", err)
	}
	if !strings.Contains(err.Error(), "unsupported document extension") {
		t.Errorf("error %q does not name the extension problem", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("testdata/absent.json")
	if err == nil {
		t.Fatal("Load succeeded on a missing file")
	}
	if !errors.IsInvalid(err) {
		t.Errorf("error class = %v, want invalid", err)
	}
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		contains string
	}{
		{
			name:     "missing version",
			doc:      `{"pipeline": {"source": {"kind": "s"}, "sink": {"kind": "k"}}}`,
			contains: "version",
		},
		{
			name:     "version not semantic",
			doc:      `{"version": "1.0", "pipeline": {"source": {"kind": "s"}, "sink": {"kind": "k"}}}`,
			contains: "version",
		},
		{
			name:     "missing sink",
			doc:      `{"version": "1.0.0", "pipeline": {"source": {"kind": "s"}}}`,
			contains: "sink",
		},
		{
			name:     "unknown stage key",
			doc:      `{"version": "1.0.0", "pipeline": {"source": {"kind": "s", "speed": 3}, "sink": {"kind": "k"}}}`,
			contains: "speed",
		},
		{
			name:     "unknown document key",
			doc:      `{"version": "1.0.0", "extra": true, "pipeline": {"source": {"kind": "s"}, "sink": {"kind": "k"}}}`,
			contains: "extra",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc), FormatJSON)
			if err == nil {
				t.Fatal("Parse accepted an invalid document")
			}
			if !errors.IsInvalid(err) {
				t.Errorf("error class = %v, want invalid", err)
			}
			if !strings.Contains(err.Error(), tc.contains) {
				t.Errorf("error %q does not mention %q", err, tc.contains)
			}
		})
	}
}

func TestParse_WalkRulesEnforced(t *testing.T) {
	// Schema-valid, but go_to names an alias nobody declares.
	doc := `{
		"version": "1.0.0",
		"pipeline": {
			"source": {"kind": "s"},
			"stages": [{"go_to": "nowhere", "kind": "q"}],
			"sink": {"kind": "k"}
		}
	}`

	_, err := Parse([]byte(doc), FormatJSON)
	if err == nil {
		t.Fatal("Parse accepted an unresolvable go_to")
	}
	if !errors.IsInvalid(err) {
		t.Errorf("error class = %v, want invalid", err)
	}
	if !stderrors.Is(err, errors.ErrUnknownAlias) {
		t.Errorf("error %v does not wrap ErrUnknownAlias", err)
	}
}

func TestParse_MalformedInput(t *testing.T) {
	if _, err := Parse([]byte(`{"version": `), FormatJSON); err == nil || !errors.IsInvalid(err) {
		t.Errorf("malformed json: err = %v, want invalid", err)
	}
	if _, err := Parse([]byte(":\n  - ]["), FormatYAML); err == nil || !errors.IsInvalid(err) {
		t.Errorf("malformed yaml: err = %v, want invalid", err)
	}
}

func TestParse_YAMLMatchesJSON(t *testing.T) {
	jsonDoc := `{
		"version": "2.1.0",
		"pipeline": {
			"source": {"kind": "source"},
			"stages": [{"kind": "decode", "alias": "d", "properties": {"format": "wav"}}],
			"sink": {"kind": "sink"}
		}
	}`
	yamlDoc := `
version: "2.1.0"
pipeline:
  source:
    kind: source
  stages:
    - kind: decode
      alias: d
      properties:
        format: wav
  sink:
    kind: sink
`

	fromJSON, err := Parse([]byte(jsonDoc), FormatJSON)
	if err != nil {
		t.Fatalf("Parse json: %v", err)
	}
	fromYAML, err := Parse([]byte(yamlDoc), FormatYAML)
	if err != nil {
		t.Fatalf("Parse yaml: %v", err)
	}
	if diff := cmp.Diff(fromJSON, fromYAML, ignoreBuildState); diff != "" {
		t.Errorf("formats decode differently (-json +yaml):\n%s", diff)
	}
}

func TestFormatString(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatJSON, "json"},
		{FormatYAML, "yaml"},
		{Format(42), "unknown"},
	}
	for _, tc := range tests {
		if got := tc.format.String(); got != tc.want {
			t.Errorf("Format(%d).String() = %q, want %q", int(tc.format), got, tc.want)
		}
	}
}
