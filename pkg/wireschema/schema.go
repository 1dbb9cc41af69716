// Package wireschema validates a workflow document against its JSON Schema
// before structural unmarshal, catching missing-required-field and
// wrong-shape problems with a precise field path ahead of Go's own
// unmarshal error: marshal the input to bytes, run gojsonschema, then
// inspect .Valid()/.Errors() — applied here to the wire format as a whole
// at construction time.
package wireschema

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/flowforge/ruleengine/pkg/types"
)

// workflowSetSchema is the JSON Schema (draft-07) for the persistent wire
// format: an array of Workflow documents, each with an ordered task list.
const workflowSetSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": { "$ref": "#/definitions/workflow" },
  "definitions": {
    "workflow": {
      "type": "object",
      "required": ["id", "tasks"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string" },
        "description": { "type": "string" },
        "priority": { "type": "number" },
        "condition": {},
        "continue_on_error": { "type": "boolean" },
        "tasks": {
          "type": "array",
          "items": { "$ref": "#/definitions/task" }
        }
      }
    },
    "task": {
      "type": "object",
      "required": ["id", "function"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string" },
        "description": { "type": "string" },
        "condition": {},
        "continue_on_error": { "type": "boolean" },
        "function": { "$ref": "#/definitions/functionRef" }
      }
    },
    "functionRef": {
      "type": "object",
      "required": ["name"],
      "properties": {
        "name": { "type": "string", "minLength": 1 },
        "input": { "type": "object" }
      }
    }
  }
}`

var schemaLoader = gojsonschema.NewStringLoader(workflowSetSchema)

// Validate checks raw — a JSON array of workflow documents — against the
// wire schema. It returns nil if raw is structurally valid, or a
// *types.ConfigError{Kind: ConfigErrorSchema} describing the first
// violation gojsonschema reports.
func Validate(raw []byte) error {
	documentLoader := gojsonschema.NewBytesLoader(raw)
	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return &types.ConfigError{Kind: types.ConfigErrorParse, Reason: err.Error()}
	}
	if result.Valid() {
		return nil
	}
	first := result.Errors()[0]
	return &types.ConfigError{
		Kind:   types.ConfigErrorSchema,
		Path:   first.Field(),
		Reason: fmt.Sprintf("%s: %s", first.Field(), first.Description()),
	}
}

// ParseWorkflows validates raw against the wire schema, then unmarshals it
// into []types.Workflow. Malformed JSON surfaces as ConfigError::Parse;
// structural violations (missing id, missing tasks, missing function name)
// surface as ConfigError::Schema with the offending field path.
func ParseWorkflows(raw []byte) ([]types.Workflow, error) {
	var probe interface{}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, &types.ConfigError{Kind: types.ConfigErrorParse, Reason: err.Error()}
	}

	if err := Validate(raw); err != nil {
		return nil, err
	}

	var workflows []types.Workflow
	if err := json.Unmarshal(raw, &workflows); err != nil {
		return nil, &types.ConfigError{Kind: types.ConfigErrorParse, Reason: err.Error()}
	}
	return workflows, nil
}
