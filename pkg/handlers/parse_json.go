package handlers

import (
	"context"
	"encoding/json"

	"github.com/flowforge/ruleengine/pkg/logic"
	"github.com/flowforge/ruleengine/pkg/message"
	"github.com/flowforge/ruleengine/pkg/types"
)

// ParseJSONHandler implements the parse_json built-in: reads
// the value addressed by source and stores it, parsed if it is a string,
// at context.data.<target>.
type ParseJSONHandler struct{}

// ParseJSONInput is the decoded function.input shape for parse_json.
type ParseJSONInput struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Prepare decodes ParseJSONInput. parse_json has no expression fields, so
// nothing is pre-compiled.
func (h *ParseJSONHandler) Prepare(raw json.RawMessage, _ *logic.Cache) (PreparedInput, error) {
	var in ParseJSONInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// Execute runs the handler.
func (h *ParseJSONHandler) Execute(_ context.Context, req ExecRequest, prepared PreparedInput) (int, []message.Change, []interface{}, error) {
	in, ok := prepared.(*ParseJSONInput)
	if !ok {
		return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorHandler, "parse_json: invalid prepared input", nil)
	}

	raw, err := resolveSource(req.Msg, in.Source)
	if err != nil {
		return 0, nil, nil, err
	}

	var parsed interface{}
	if s, ok := raw.(string); ok {
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorParse, "parse_json: invalid JSON source", err)
		}
	} else {
		parsed = message.DeepCopy(raw)
	}

	old, err := req.Msg.Context.Set("data."+in.Target, parsed)
	if err != nil {
		return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorHandler, "parse_json: invalid target path", err)
	}
	req.Msg.InvalidateView()

	change := message.Change{Path: "data." + in.Target, OldValue: message.DeepCopy(old), NewValue: message.DeepCopy(parsed)}
	return 200, []message.Change{change}, nil, nil
}
