package store

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemasFS embed.FS

const schemaBaseURL = "https://geotasks.local/schemas/"

var (
	schemasOnce sync.Once
	schemas     map[string]*jsonschema.Schema
	schemasErr  error
)

// compileSchemas compiles one schema per document key.
func compileSchemas() (map[string]*jsonschema.Schema, error) {
	schemasOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiled := make(map[string]*jsonschema.Schema)

		for _, key := range []string{KeyTasks, KeyFavorites} {
			data, err := schemasFS.ReadFile("schemas/" + key + ".json")
			if err != nil {
				schemasErr = fmt.Errorf("read schema %s: %w", key, err)
				return
			}
			url := schemaBaseURL + key + ".json"
			if err := compiler.AddResource(url, bytes.NewReader(data)); err != nil {
				schemasErr = fmt.Errorf("add schema %s: %w", key, err)
				return
			}
			schema, err := compiler.Compile(url)
			if err != nil {
				schemasErr = fmt.Errorf("compile schema %s: %w", key, err)
				return
			}
			compiled[key] = schema
		}
		schemas = compiled
	})
	return schemas, schemasErr
}

// ValidateDocument checks payload against the schema registered for key.
// Keys without a schema are accepted as long as the payload is valid JSON.
func ValidateDocument(key string, payload []byte) error {
	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}

	compiled, err := compileSchemas()
	if err != nil {
		return err
	}

	schema, ok := compiled[key]
	if !ok {
		return nil
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("document %s does not match schema: %s", key, firstSchemaError(err))
	}
	return nil
}

// DecodeDocument validates payload and unmarshals it into v.
func DecodeDocument(key string, payload []byte, v interface{}) error {
	if err := ValidateDocument(key, payload); err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

// firstSchemaError digs out the deepest leaf message, which names the
// offending field instead of the enclosing array.
func firstSchemaError(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	if ve.InstanceLocation == "" {
		return ve.Message
	}
	return ve.InstanceLocation + ": " + ve.Message
}
