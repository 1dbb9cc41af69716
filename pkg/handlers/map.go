package handlers

import (
	"context"
	"encoding/json"

	"github.com/flowforge/ruleengine/pkg/logic"
	"github.com/flowforge/ruleengine/pkg/message"
	"github.com/flowforge/ruleengine/pkg/types"
)

// MapHandler implements the map built-in: evaluates each
// mapping's logic against the current context in order and writes the
// result at its target path.
type MapHandler struct{}

// mappingRaw is the on-wire shape of one mapping entry before compilation.
type mappingRaw struct {
	Path  string          `json:"path"`
	Logic json.RawMessage `json:"logic"`
}

// MapInput is the wire shape of map's function.input.
type MapInput struct {
	Mappings []mappingRaw `json:"mappings"`
}

// compiledMapping pairs a mapping's target path with its compiled logic.
type compiledMapping struct {
	Path  string
	Logic *logic.CompiledExpr
}

// PreparedMapInput is the compiled form of MapInput stored on the task.
type PreparedMapInput struct {
	Mappings []compiledMapping
}

// Prepare compiles every mapping's logic field.
func (h *MapHandler) Prepare(raw json.RawMessage, cache *logic.Cache) (PreparedInput, error) {
	var in MapInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}
	prepared := &PreparedMapInput{Mappings: make([]compiledMapping, len(in.Mappings))}
	for i, m := range in.Mappings {
		compiled, err := compileField(m.Logic, cache)
		if err != nil {
			return nil, err
		}
		prepared.Mappings[i] = compiledMapping{Path: m.Path, Logic: compiled}
	}
	return prepared, nil
}

// Execute runs the handler.
func (h *MapHandler) Execute(_ context.Context, req ExecRequest, prepared PreparedInput) (int, []message.Change, []interface{}, error) {
	in, ok := prepared.(*PreparedMapInput)
	if !ok {
		return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorHandler, "map: invalid prepared input", nil)
	}

	changes := make([]message.Change, 0, len(in.Mappings))
	var mappingContexts []interface{}
	if req.Capture {
		mappingContexts = make([]interface{}, 0, len(in.Mappings))
	}

	for _, mapping := range in.Mappings {
		if req.Capture {
			mappingContexts = append(mappingContexts, req.Msg.SnapshotView())
		}

		result, err := mapping.Logic.Evaluate(req.Msg.EvalContext())
		if err != nil {
			return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorEvaluation, "map: mapping at "+mapping.Path+" failed", err)
		}

		old, err := req.Msg.Context.Set(mapping.Path, result)
		if err != nil {
			return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorHandler, "map: invalid path "+mapping.Path, err)
		}
		req.Msg.InvalidateView()

		// Copy both sides: old and result alias live context structure, and
		// audit entries must never mutate after insertion.
		changes = append(changes, message.Change{
			Path:     mapping.Path,
			OldValue: message.DeepCopy(old),
			NewValue: message.DeepCopy(result),
		})
	}

	return 200, changes, mappingContexts, nil
}
