package message

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowforge/ruleengine/pkg/logic"
)

// Context is the three-part workspace expressions read and handlers
// mutate. All three fields are mutable for the lifetime of a Message.
type Context struct {
	Data     map[string]interface{} `json:"data"`
	Metadata map[string]interface{} `json:"metadata"`
	TempData map[string]interface{} `json:"temp_data"`

	// MaxDepth, if non-zero, bounds the path depth a single Set call may
	// address (a host's resource-limit policy; see pkg/config.Config).
	// Zero means unlimited. Not serialized: it is a runtime guard set by
	// the engine, not part of the wire-format context.
	MaxDepth int `json:"-"`
}

func newContext() *Context {
	return &Context{
		Data:     map[string]interface{}{},
		Metadata: map[string]interface{}{},
		TempData: map[string]interface{}{},
	}
}

// view returns the map shape expressions address paths like "data.name"
// and "metadata.route" against.
func (c *Context) view() map[string]interface{} {
	return map[string]interface{}{
		"data":      c.Data,
		"metadata":  c.Metadata,
		"temp_data": c.TempData,
	}
}

// Change is an atomic record of one path mutation to a Message's context.
// new_value == nil denotes removal; old_value == nil denotes creation.
type Change struct {
	Path     string      `json:"path"`
	OldValue interface{} `json:"old_value"`
	NewValue interface{} `json:"new_value"`
}

// ErrorInfo records a single failure attributed to a workflow/task.
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	WorkflowID string `json:"workflow_id,omitempty"`
	TaskID     string `json:"task_id,omitempty"`
}

// AuditTrail records everything one executed task did.
type AuditTrail struct {
	WorkflowID string    `json:"workflow_id"`
	TaskID     string    `json:"task_id"`
	Timestamp  time.Time `json:"timestamp"`
	StatusCode int       `json:"status_code"`
	Changes    []Change  `json:"changes"`
}

// Message is the mutable in-memory record the engine drives through a
// workflow set. Exclusively owned by a single executor call while being
// processed; the engine provides no internal locking of a Message's own
// state because it is never shared across concurrent process_message
// calls.
type Message struct {
	ID         string       `json:"id"`
	Payload    interface{}  `json:"payload"`
	Context    *Context     `json:"context"`
	Errors     []ErrorInfo  `json:"errors"`
	AuditTrail []AuditTrail `json:"audit_trail"`

	mu        sync.Mutex
	viewCache map[string]interface{}
}

// New constructs a Message wrapping payload, with a freshly generated ID
// and empty context/errors/audit_trail.
func New(payload interface{}) *Message {
	return &Message{
		ID:      uuid.NewString(),
		Payload: payload,
		Context: newContext(),
	}
}

// wireMessage is the shape a caller supplies to seed a Message from an
// external JSON document: a payload plus an optional initial context. A
// bare top-level data/metadata/temp_data is also accepted as shorthand for
// context.data/context.metadata/context.temp_data.
type wireMessage struct {
	Payload  interface{}            `json:"payload"`
	Context  *Context               `json:"context,omitempty"`
	Data     map[string]interface{} `json:"data,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
	TempData map[string]interface{} `json:"temp_data,omitempty"`
}

// FromJSON constructs a Message from a caller-supplied JSON document,
// generating a fresh ID the way New does. Used by hosts that seed a
// message from a file or request body rather than constructing one in
// code.
func FromJSON(raw []byte) (*Message, error) {
	var w wireMessage
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}

	m := New(w.Payload)
	if w.Context != nil {
		if w.Context.Data != nil {
			m.Context.Data = w.Context.Data
		}
		if w.Context.Metadata != nil {
			m.Context.Metadata = w.Context.Metadata
		}
		if w.Context.TempData != nil {
			m.Context.TempData = w.Context.TempData
		}
	}
	if w.Data != nil {
		m.Context.Data = w.Data
	}
	if w.Metadata != nil {
		m.Context.Metadata = w.Metadata
	}
	if w.TempData != nil {
		m.Context.TempData = w.TempData
	}
	return m, nil
}

// ContextView returns the cached evaluator-facing projection of the
// message's context, rebuilding it if it was invalidated since the last
// call.
func (m *Message) ContextView() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.viewCache == nil {
		m.viewCache = m.Context.view()
	}
	return m.viewCache
}

// EvalContext returns an evaluation context wrapping the message's current
// context view, ready to hand to a CompiledExpr.
func (m *Message) EvalContext() *logic.EvalContext {
	return logic.NewEvalContext(m.ContextView())
}

// SnapshotView returns a deep copy of the current context view, used by
// the map handler to record mapping_contexts[i] before each mapping is
// evaluated without aliasing state that later mappings will mutate.
func (m *Message) SnapshotView() map[string]interface{} {
	view := m.ContextView()
	out := make(map[string]interface{}, len(view))
	for k, v := range view {
		out[k] = deepCopy(v)
	}
	return out
}

// InvalidateView discards the cached context view. Must be called after
// any handler call that mutated context, per the executor's contract: the
// map returned by Context.view() aliases the live Data/Metadata/TempData
// maps, so in practice this only matters when those top-level map
// references themselves are replaced rather than mutated in place.
func (m *Message) InvalidateView() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewCache = nil
}

// AddError appends an ErrorInfo to the message's error list.
func (m *Message) AddError(e ErrorInfo) {
	m.Errors = append(m.Errors, e)
}

// AppendAudit appends an AuditTrail entry recording one executed task.
func (m *Message) AppendAudit(entry AuditTrail) {
	m.AuditTrail = append(m.AuditTrail, entry)
}

// Clone produces a deep copy of the message, used by the trace recorder to
// snapshot state after a step without aliasing mutable maps/slices with
// subsequent steps.
func (m *Message) Clone() *Message {
	clone := &Message{
		ID:      m.ID,
		Payload: deepCopy(m.Payload),
		Context: &Context{
			Data:     deepCopyMap(m.Context.Data),
			Metadata: deepCopyMap(m.Context.Metadata),
			TempData: deepCopyMap(m.Context.TempData),
		},
	}
	clone.Errors = append([]ErrorInfo(nil), m.Errors...)
	clone.AuditTrail = append([]AuditTrail(nil), m.AuditTrail...)
	return clone
}

// DeepCopy recursively copies maps and slices, leaving scalars untouched.
// Exported for handlers that need to snapshot a context value (e.g. parse_*
// copying a structured payload, or the trace recorder's mapping_contexts).
func DeepCopy(v interface{}) interface{} {
	return deepCopy(v)
}

func deepCopy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}

func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}
