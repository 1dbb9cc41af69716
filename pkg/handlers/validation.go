package handlers

import (
	"context"
	"encoding/json"

	"github.com/flowforge/ruleengine/pkg/logic"
	"github.com/flowforge/ruleengine/pkg/message"
	"github.com/flowforge/ruleengine/pkg/types"
)

// ValidationHandler implements the validation built-in:
// evaluates a list of rules against the current context and records an
// ErrorInfo for every rule whose logic is not strictly true. Never
// mutates context.data/metadata/temp_data.
type ValidationHandler struct{}

type ruleRaw struct {
	Logic   json.RawMessage `json:"logic"`
	Message string          `json:"message"`
	Code    string          `json:"code,omitempty"`
}

// ValidationInput is the wire shape of validation's function.input.
type ValidationInput struct {
	Rules []ruleRaw `json:"rules"`
}

type compiledRule struct {
	Logic   *logic.CompiledExpr
	Message string
	Code    string
}

// PreparedValidationInput is the compiled form of ValidationInput.
type PreparedValidationInput struct {
	Rules []compiledRule
}

// Prepare compiles every rule's logic field.
func (h *ValidationHandler) Prepare(raw json.RawMessage, cache *logic.Cache) (PreparedInput, error) {
	var in ValidationInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	prepared := &PreparedValidationInput{Rules: make([]compiledRule, len(in.Rules))}
	for i, r := range in.Rules {
		compiled, err := compileField(r.Logic, cache)
		if err != nil {
			return nil, err
		}
		code := r.Code
		if code == "" {
			code = "VALIDATION_ERROR"
		}
		prepared.Rules[i] = compiledRule{Logic: compiled, Message: r.Message, Code: code}
	}
	return prepared, nil
}

// Execute runs the handler.
func (h *ValidationHandler) Execute(_ context.Context, req ExecRequest, prepared PreparedInput) (int, []message.Change, []interface{}, error) {
	in, ok := prepared.(*PreparedValidationInput)
	if !ok {
		return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorHandler, "validation: invalid prepared input", nil)
	}

	evalCtx := req.Msg.EvalContext()
	failed := false
	for _, rule := range in.Rules {
		ok, err := rule.Logic.StrictlyTrue(evalCtx)
		if err != nil {
			return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorEvaluation, "validation: rule evaluation failed", err)
		}
		if !ok {
			failed = true
			req.Msg.AddError(message.ErrorInfo{
				Code:       rule.Code,
				Message:    rule.Message,
				WorkflowID: req.WorkflowID,
				TaskID:     req.TaskID,
			})
		}
	}

	if failed {
		return 400, nil, nil, nil
	}
	return 200, nil, nil, nil
}
