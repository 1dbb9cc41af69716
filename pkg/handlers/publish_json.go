package handlers

import (
	"context"
	"encoding/json"

	"github.com/flowforge/ruleengine/pkg/logic"
	"github.com/flowforge/ruleengine/pkg/message"
	"github.com/flowforge/ruleengine/pkg/types"
)

// PublishJSONHandler implements the publish_json built-in:
// serializes the value at data.<source> to a JSON string and writes it at
// data.<target>.
type PublishJSONHandler struct{}

// PublishJSONInput is the decoded function.input shape for publish_json.
type PublishJSONInput struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Pretty bool   `json:"pretty,omitempty"`
}

// Prepare decodes PublishJSONInput.
func (h *PublishJSONHandler) Prepare(raw json.RawMessage, _ *logic.Cache) (PreparedInput, error) {
	var in PublishJSONInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// Execute runs the handler.
func (h *PublishJSONHandler) Execute(_ context.Context, req ExecRequest, prepared PreparedInput) (int, []message.Change, []interface{}, error) {
	in, ok := prepared.(*PublishJSONInput)
	if !ok {
		return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorHandler, "publish_json: invalid prepared input", nil)
	}

	value, found := req.Msg.Context.Get("data." + in.Source)
	if !found {
		value = nil
	}

	var encoded []byte
	var err error
	if in.Pretty {
		encoded, err = json.MarshalIndent(value, "", "  ")
	} else {
		encoded, err = json.Marshal(value)
	}
	if err != nil {
		return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorHandler, "publish_json: encode failed", err)
	}

	old, err := req.Msg.Context.Set("data."+in.Target, string(encoded))
	if err != nil {
		return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorHandler, "publish_json: invalid target path", err)
	}
	req.Msg.InvalidateView()

	change := message.Change{Path: "data." + in.Target, OldValue: message.DeepCopy(old), NewValue: string(encoded)}
	return 200, []message.Change{change}, nil, nil
}
