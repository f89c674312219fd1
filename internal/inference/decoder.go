package inference

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"CloseForecaster/internal/model"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	SchemaObjectV1 = "object.v1"
	SchemaListV1   = "list.v1"
)

// Decoder validates endpoint responses against one named schema version and
// extracts the Prediction.
type Decoder struct {
	name   string
	schema *jsonschema.Schema
}

// NewDecoder compiles the embedded schema registered under name.
func NewDecoder(name string) (*Decoder, error) {
	raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("unknown response schema %q (known: %s)", name, strings.Join(Schemas(), ", "))
	}
	resource := name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("load schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return &Decoder{name: name, schema: schema}, nil
}

// Schemas lists the response schema versions this build understands.
func Schemas() []string {
	entries, _ := schemaFS.ReadDir("schemas")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}

func (d *Decoder) Name() string { return d.name }

// Decode validates body and returns the prediction it carries.
func (d *Decoder) Decode(body []byte) (model.Prediction, error) {
	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		return model.Prediction{}, fmt.Errorf("%w: malformed response: %w", model.ErrInferenceFailure, err)
	}
	if err := d.schema.Validate(doc); err != nil {
		return model.Prediction{}, fmt.Errorf("%w: response does not match %s: %w", model.ErrInferenceFailure, d.name, err)
	}

	var pred model.Prediction
	switch d.name {
	case SchemaListV1:
		// Only the first element is the prediction.
		var list []json.RawMessage
		if err := json.Unmarshal(body, &list); err != nil {
			return model.Prediction{}, fmt.Errorf("%w: decode %s: %w", model.ErrInferenceFailure, d.name, err)
		}
		if err := json.Unmarshal(list[0], &pred); err != nil {
			return model.Prediction{}, fmt.Errorf("%w: decode %s: %w", model.ErrInferenceFailure, d.name, err)
		}
	default:
		if err := json.Unmarshal(body, &pred); err != nil {
			return model.Prediction{}, fmt.Errorf("%w: decode %s: %w", model.ErrInferenceFailure, d.name, err)
		}
	}
	return pred, nil
}
