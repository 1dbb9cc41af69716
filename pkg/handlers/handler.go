package handlers

import (
	"context"
	"encoding/json"

	"github.com/flowforge/ruleengine/pkg/logic"
	"github.com/flowforge/ruleengine/pkg/message"
)

// PreparedInput is whatever a Handler's Prepare step produces: its
// function-specific input struct, with any expression fields already
// compiled against the shared cache. Custom handlers are free to use it
// however they like, including ignoring it and re-parsing raw input.
type PreparedInput interface{}

// ExecRequest bundles everything a handler's Execute call needs besides
// its prepared input: the message to mutate, the ids of the task driving
// it (for error attribution), and whether the caller wants mapping-level
// context snapshots captured for the trace recorder.
type ExecRequest struct {
	Msg        *message.Message
	WorkflowID string
	TaskID     string
	Capture    bool
}

// Handler is the contract every built-in and custom function implements.
// status_code is a small integer (200 success, 400 validation rejection,
// 500 handler-internal failure); only a non-nil err is treated as an
// ExecutionError by the executor. changes must faithfully describe every
// mutation made to msg.Context during this call.
type Handler interface {
	Prepare(raw json.RawMessage, cache *logic.Cache) (PreparedInput, error)
	Execute(ctx context.Context, req ExecRequest, prepared PreparedInput) (statusCode int, changes []message.Change, mappingContexts []interface{}, err error)
}

// compileField compiles a single raw JSON expression field into a
// CompiledExpr, decoding it into interface{} first.
func compileField(raw json.RawMessage, cache *logic.Cache) (*logic.CompiledExpr, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return cache.Compile(v)
}
