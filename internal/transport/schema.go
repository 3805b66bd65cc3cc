package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaBaseURL = "https://trustlens.local/schemas/"

// JSONSchema compiles a JSON Schema (draft 2020-12) into a Validator.
func JSONSchema(name, schema string) (Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020

	url := schemaBaseURL + name + ".json"
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}

	return func(data []byte) error {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return compiled.Validate(v)
	}, nil
}

// MustJSONSchema is JSONSchema for package-level schemas known to compile.
func MustJSONSchema(name, schema string) Validator {
	v, err := JSONSchema(name, schema)
	if err != nil {
		panic(err)
	}
	return v
}
