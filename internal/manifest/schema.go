package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed manifest_schema.json
var manifestSchemaJSON []byte

var manifestSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("manifest_schema.json", bytes.NewReader(manifestSchemaJSON)); err != nil {
		panic(fmt.Sprintf("manifest: failed to load schema: %v", err))
	}
	schema, err := compiler.Compile("manifest_schema.json")
	if err != nil {
		panic(fmt.Sprintf("manifest: failed to compile schema: %v", err))
	}
	return schema
}

// validateDocument checks raw manifest JSON against the embedded schema, so a
// corrupted or hand-edited manifest surfaces as a typed load error instead of
// bad data flowing into the pipeline.
func validateDocument(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("manifest is not valid JSON: %w", err)
	}
	if err := manifestSchema.Validate(doc); err != nil {
		return fmt.Errorf("manifest does not match schema: %w", err)
	}
	return nil
}
