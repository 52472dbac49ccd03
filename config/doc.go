// Package config loads and validates pipeline documents.
//
// A document is a JSON or YAML file carrying a schema version and a
// pipeline spec:
//
//	version: "1.0.0"
//	pipeline:
//	  name: capture
//	  source:
//	    kind: source
//	  stages:
//	    - kind: decode
//	      alias: d
//	  sink:
//	    kind: sink
//
// Load detects the format from the file extension and Parse accepts bytes
// with an explicit Format. YAML input is normalized to JSON first so a
// single embedded JSON Schema and a single decoder cover both encodings.
//
// Validation happens in two layers. The embedded schema rejects structural
// problems with field-level positions (unknown keys, wrong types, missing
// sections). The pipeline's own Validate then enforces the walk rules the
// schema cannot express, such as alias ordering and directive placement.
// Every failure surfaces as a configuration error; nothing is instantiated
// from an invalid document.
//
// The Get* helpers read typed values out of stage property bags after
// decoding, with defaults instead of panics when a key is absent or
// mistyped.
package config
