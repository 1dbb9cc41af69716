package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/beevik/etree"

	"github.com/flowforge/ruleengine/pkg/logic"
	"github.com/flowforge/ruleengine/pkg/message"
	"github.com/flowforge/ruleengine/pkg/types"
)

// PublishXMLHandler implements the publish_xml built-in: the
// inverse of parse_xml. Serializes the value at data.<source> back into an
// XML document string and writes it at data.<target>.
type PublishXMLHandler struct{}

// PublishXMLInput is the decoded function.input shape for publish_xml.
// RootElement, when set, names the root element and the whole source value
// becomes its content. When empty, a single-keyed map supplies its own root
// tag from its key, and any other value is wrapped in a <root> element.
type PublishXMLInput struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	RootElement string `json:"root_element,omitempty"`
	Pretty      bool   `json:"pretty,omitempty"`
}

// Prepare decodes PublishXMLInput.
func (h *PublishXMLHandler) Prepare(raw json.RawMessage, _ *logic.Cache) (PreparedInput, error) {
	var in PublishXMLInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// Execute runs the handler.
func (h *PublishXMLHandler) Execute(_ context.Context, req ExecRequest, prepared PreparedInput) (int, []message.Change, []interface{}, error) {
	in, ok := prepared.(*PublishXMLInput)
	if !ok {
		return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorHandler, "publish_xml: invalid prepared input", nil)
	}

	value, found := req.Msg.Context.Get("data." + in.Source)
	if !found {
		value = nil
	}

	rootTag := in.RootElement
	rootValue := value
	if rootTag == "" {
		if m, ok := value.(map[string]interface{}); ok && len(m) == 1 {
			for k, v := range m {
				rootTag = k
				rootValue = v
			}
		} else {
			rootTag = "root"
		}
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.AddChild(valueToElement(rootTag, rootValue))

	if in.Pretty {
		doc.Indent(2)
	}
	encoded, err := doc.WriteToString()
	if err != nil {
		return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorHandler, fmt.Sprintf("publish_xml: encode failed: %v", err), err)
	}

	old, err := req.Msg.Context.Set("data."+in.Target, encoded)
	if err != nil {
		return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorHandler, "publish_xml: invalid target path", err)
	}
	req.Msg.InvalidateView()

	change := message.Change{Path: "data." + in.Target, OldValue: message.DeepCopy(old), NewValue: encoded}
	return 200, []message.Change{change}, nil, nil
}
