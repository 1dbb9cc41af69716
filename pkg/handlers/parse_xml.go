package handlers

import (
	"context"
	"encoding/json"

	"github.com/beevik/etree"

	"github.com/flowforge/ruleengine/pkg/logic"
	"github.com/flowforge/ruleengine/pkg/message"
	"github.com/flowforge/ruleengine/pkg/types"
)

// ParseXMLHandler implements the parse_xml built-in: same
// input shape as parse_json, but the source must resolve to a string of
// well-formed XML, which is converted to a structured value and stored at
// context.data.<target>.
type ParseXMLHandler struct{}

// ParseXMLInput is the decoded function.input shape for parse_xml.
type ParseXMLInput struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Prepare decodes ParseXMLInput.
func (h *ParseXMLHandler) Prepare(raw json.RawMessage, _ *logic.Cache) (PreparedInput, error) {
	var in ParseXMLInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// Execute runs the handler.
func (h *ParseXMLHandler) Execute(_ context.Context, req ExecRequest, prepared PreparedInput) (int, []message.Change, []interface{}, error) {
	in, ok := prepared.(*ParseXMLInput)
	if !ok {
		return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorHandler, "parse_xml: invalid prepared input", nil)
	}

	raw, err := resolveSource(req.Msg, in.Source)
	if err != nil {
		return 0, nil, nil, err
	}

	s, ok := raw.(string)
	if !ok {
		return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorParse, "parse_xml: source is not a string", nil)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromString(s); err != nil {
		return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorParse, "parse_xml: malformed XML", err)
	}
	root := doc.Root()
	if root == nil {
		return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorParse, "parse_xml: document has no root element", nil)
	}

	parsed := map[string]interface{}{root.Tag: elementToValue(root)}

	old, err := req.Msg.Context.Set("data."+in.Target, parsed)
	if err != nil {
		return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorHandler, "parse_xml: invalid target path", err)
	}
	req.Msg.InvalidateView()

	change := message.Change{Path: "data." + in.Target, OldValue: message.DeepCopy(old), NewValue: message.DeepCopy(parsed)}
	return 200, []message.Change{change}, nil, nil
}
