package config

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/c360/graft/errors"
)

//go:embed schema.json
var documentSchema []byte

// DocumentSchema returns a copy of the embedded JSON Schema that pipeline
// documents are validated against, for export and editor integration.
func DocumentSchema() []byte {
	out := make([]byte, len(documentSchema))
	copy(out, documentSchema)
	return out
}

// validateSchema checks a JSON pipeline document against the embedded
// schema. All violations are reported in one error rather than the first
// one found.
func validateSchema(data []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(documentSchema)
	docLoader := gojsonschema.NewBytesLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("validate pipeline document: %w", err),
			"config", "Parse", "run schema validation")
	}
	if result.Valid() {
		return nil
	}

	var b strings.Builder
	b.WriteString("pipeline document violates schema:")
	for _, violation := range result.Errors() {
		fmt.Fprintf(&b, "\n  %s: %s", violation.Field(), violation.Description())
	}
	return errors.WrapInvalid(
		fmt.Errorf("%s", b.String()),
		"config", "Parse", "check document schema")
}
