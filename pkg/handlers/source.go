package handlers

import (
	"strings"

	"github.com/flowforge/ruleengine/pkg/message"
	"github.com/flowforge/ruleengine/pkg/types"
)

// resolveSource reads the value addressed by a parse_json/parse_xml "source"
// field: "payload", "payload.<dotted>", or "data.<dotted>". publish_json and
// publish_xml do not use it; they read data.<source> directly.
func resolveSource(msg *message.Message, source string) (interface{}, error) {
	switch {
	case source == "payload":
		return msg.Payload, nil
	case strings.HasPrefix(source, "payload."):
		rest := strings.TrimPrefix(source, "payload.")
		v, ok := message.LookupPath(msg.Payload, rest)
		if !ok {
			return nil, types.NewExecutionError(types.ExecutionErrorParse, "source path not found: "+source, nil)
		}
		return v, nil
	case strings.HasPrefix(source, "data."):
		v, ok := msg.Context.Get(source)
		if !ok {
			return nil, types.NewExecutionError(types.ExecutionErrorParse, "source path not found: "+source, nil)
		}
		return v, nil
	default:
		return nil, types.NewExecutionError(types.ExecutionErrorParse, "unsupported source form: "+source, nil)
	}
}
