// Package types defines the wire format for workflows: the JSON shapes the
// engine is constructed from. All core data structures shared across
// packages live here to avoid import cycles.
package types

import "encoding/json"

// Expression is a JSONLogic-shaped declarative value: a scalar, an array of
// expressions, or an object with exactly one operator key. It is decoded
// verbatim from JSON and compiled by pkg/logic.
type Expression = interface{}

// Workflow is an ordered collection of tasks gated by an optional condition
// and a priority. Lower priority runs first.
type Workflow struct {
	ID              string     `json:"id"`
	Name            string     `json:"name,omitempty"`
	Priority        int        `json:"priority,omitempty"`
	Description     string     `json:"description,omitempty"`
	Condition       Expression `json:"condition,omitempty"`
	ContinueOnError bool       `json:"continue_on_error,omitempty"`
	Tasks           []Task     `json:"tasks"`
}

// Task is one atomic processing step: a function reference plus an
// optional condition. ContinueOnError is a tri-state: nil means "inherit
// the workflow's policy."
type Task struct {
	ID              string     `json:"id"`
	Name            string     `json:"name,omitempty"`
	Description     string     `json:"description,omitempty"`
	Condition       Expression `json:"condition,omitempty"`
	ContinueOnError *bool      `json:"continue_on_error,omitempty"`
	Function        FuncRef    `json:"function"`
}

// EffectiveContinueOnError resolves the task's error policy, falling back
// to the owning workflow's policy when the task does not set one.
func (t Task) EffectiveContinueOnError(workflow Workflow) bool {
	if t.ContinueOnError != nil {
		return *t.ContinueOnError
	}
	return workflow.ContinueOnError
}

// FuncRef names a function and carries its opaque input. Built-in function
// names are recognized and their input is pre-compiled at construction
// time; any other name is treated as custom and its input is passed to the
// registered handler unparsed.
type FuncRef struct {
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// Built-in function names recognized by the engine. Any other name is a
// custom function reference.
const (
	FuncParseJSON   = "parse_json"
	FuncParseXML    = "parse_xml"
	FuncMap         = "map"
	FuncValidation  = "validation"
	FuncPublishJSON = "publish_json"
	FuncPublishXML  = "publish_xml"
)

// IsBuiltin reports whether name is one of the six built-in functions.
func IsBuiltin(name string) bool {
	switch name {
	case FuncParseJSON, FuncParseXML, FuncMap, FuncValidation, FuncPublishJSON, FuncPublishXML:
		return true
	default:
		return false
	}
}
