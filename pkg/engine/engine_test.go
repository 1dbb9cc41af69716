package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/flowforge/ruleengine/pkg/config"
	"github.com/flowforge/ruleengine/pkg/handlers"
	"github.com/flowforge/ruleengine/pkg/logic"
	"github.com/flowforge/ruleengine/pkg/message"
	"github.com/flowforge/ruleengine/pkg/trace"
	"github.com/flowforge/ruleengine/pkg/types"
)

// panicHandler always panics on Execute, used to exercise the engine's
// panic-to-FatalError recovery path.
type panicHandler struct{}

func (panicHandler) Prepare(json.RawMessage, *logic.Cache) (handlers.PreparedInput, error) {
	return nil, nil
}

func (panicHandler) Execute(context.Context, handlers.ExecRequest, handlers.PreparedInput) (int, []message.Change, []interface{}, error) {
	panic("boom")
}

func rawJSON(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func mapTask(t *testing.T, id string, mappings ...map[string]interface{}) types.Task {
	return types.Task{
		ID: id,
		Function: types.FuncRef{
			Name:  types.FuncMap,
			Input: rawJSON(t, map[string]interface{}{"mappings": mappings}),
		},
	}
}

// A single workflow with a single map task produces one audit entry and
// writes the mapped value into context.data.
func TestMinimalGreeting(t *testing.T) {
	wf := types.Workflow{
		ID: "g",
		Tasks: []types.Task{
			mapTask(t, "t", map[string]interface{}{
				"path":  "data.greeting",
				"logic": map[string]interface{}{"cat": []interface{}{"Hello, ", map[string]interface{}{"var": "data.name"}, "!"}},
			}),
		},
	}

	eng, err := New([]types.Workflow{wf}, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := message.New(nil)
	msg.Context.Data["name"] = "World"

	if err := eng.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if msg.Context.Data["greeting"] != "Hello, World!" {
		t.Fatalf("expected greeting, got %v", msg.Context.Data["greeting"])
	}
	if len(msg.AuditTrail) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(msg.AuditTrail))
	}
	if len(msg.AuditTrail[0].Changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(msg.AuditTrail[0].Changes))
	}
}

// A workflow whose condition evaluates false is skipped, not executed, and
// records a workflow-level skip step rather than an audit entry.
func TestConditionalSkip(t *testing.T) {
	wf1 := types.Workflow{
		ID:       "wf1",
		Priority: 1,
		Tasks: []types.Task{
			mapTask(t, "set-route", map[string]interface{}{
				"path":  "metadata.route",
				"logic": "A",
			}),
		},
	}
	wf2 := types.Workflow{
		ID:        "wf2",
		Priority:  2,
		Condition: map[string]interface{}{"==": []interface{}{map[string]interface{}{"var": "metadata.route"}, "B"}},
		Tasks: []types.Task{
			mapTask(t, "noop", map[string]interface{}{"path": "data.never", "logic": true}),
		},
	}

	eng, err := New([]types.Workflow{wf1, wf2}, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := message.New(nil)
	execTrace, err := eng.ProcessMessageWithTrace(context.Background(), msg)
	if err != nil {
		t.Fatalf("ProcessMessageWithTrace: %v", err)
	}

	if len(execTrace.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(execTrace.Steps))
	}
	if execTrace.Steps[1].Result != trace.ResultSkipped {
		t.Fatalf("expected second step skipped, got %v", execTrace.Steps[1].Result)
	}
	if execTrace.Steps[1].TaskID != "" {
		t.Fatalf("expected workflow-level skip to have no task id, got %q", execTrace.Steps[1].TaskID)
	}
	if len(msg.AuditTrail) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(msg.AuditTrail))
	}
}

func validationTask(t *testing.T, id string, rules ...map[string]interface{}) types.Task {
	return types.Task{
		ID: id,
		Function: types.FuncRef{
			Name:  types.FuncValidation,
			Input: rawJSON(t, map[string]interface{}{"rules": rules}),
		},
	}
}

// Scenario 3: validation-then-transform with continue_on_error = true.
func TestValidationThenTransformContinueOnError(t *testing.T) {
	wf := types.Workflow{
		ID:              "wf",
		ContinueOnError: true,
		Tasks: []types.Task{
			validationTask(t, "v", map[string]interface{}{
				"logic":   map[string]interface{}{">": []interface{}{map[string]interface{}{"var": "data.age"}, 0}},
				"message": "age must be positive",
			}),
			mapTask(t, "m", map[string]interface{}{"path": "data.ok", "logic": true}),
		},
	}

	eng, err := New([]types.Workflow{wf}, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := message.New(nil)
	msg.Context.Data["age"] = -1.0
	msg.Context.Data["name"] = "x"

	if err := eng.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if len(msg.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d: %+v", len(msg.Errors), msg.Errors)
	}
	if msg.Context.Data["ok"] != true {
		t.Fatalf("expected data.ok=true, got %v", msg.Context.Data["ok"])
	}
	if len(msg.AuditTrail) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(msg.AuditTrail))
	}
	if msg.AuditTrail[0].StatusCode != 400 {
		t.Fatalf("expected first audit entry status 400, got %d", msg.AuditTrail[0].StatusCode)
	}
	if msg.AuditTrail[1].StatusCode != 200 {
		t.Fatalf("expected second audit entry status 200, got %d", msg.AuditTrail[1].StatusCode)
	}
}

// Scenario 4: validation-then-transform without continue_on_error.
func TestValidationThenTransformStopsOnError(t *testing.T) {
	wf := types.Workflow{
		ID:              "wf",
		ContinueOnError: false,
		Tasks: []types.Task{
			validationTask(t, "v", map[string]interface{}{
				"logic":   map[string]interface{}{">": []interface{}{map[string]interface{}{"var": "data.age"}, 0}},
				"message": "age must be positive",
			}),
			mapTask(t, "m", map[string]interface{}{"path": "data.ok", "logic": true}),
		},
	}

	eng, err := New([]types.Workflow{wf}, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := message.New(nil)
	msg.Context.Data["age"] = -1.0
	msg.Context.Data["name"] = "x"

	if err := eng.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if len(msg.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(msg.Errors))
	}
	if _, ok := msg.Context.Data["ok"]; ok {
		t.Fatalf("expected data.ok absent, got %v", msg.Context.Data["ok"])
	}
	if len(msg.AuditTrail) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(msg.AuditTrail))
	}
}

// Scenario 5: arithmetic chain, three sequential mappings.
func TestArithmeticChain(t *testing.T) {
	wf := types.Workflow{
		ID: "wf",
		Tasks: []types.Task{
			mapTask(t, "sub", map[string]interface{}{
				"path":  "data.sub",
				"logic": map[string]interface{}{"*": []interface{}{map[string]interface{}{"var": "data.p"}, map[string]interface{}{"var": "data.q"}}},
			}),
			mapTask(t, "tax", map[string]interface{}{
				"path":  "data.tax",
				"logic": map[string]interface{}{"*": []interface{}{map[string]interface{}{"var": "data.sub"}, 0.1}},
			}),
			mapTask(t, "total", map[string]interface{}{
				"path":  "data.total",
				"logic": map[string]interface{}{"+": []interface{}{map[string]interface{}{"var": "data.sub"}, map[string]interface{}{"var": "data.tax"}}},
			}),
		},
	}

	eng, err := New([]types.Workflow{wf}, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := message.New(nil)
	msg.Context.Data["p"] = 10.0
	msg.Context.Data["q"] = 5.0

	execTrace, err := eng.ProcessMessageWithTrace(context.Background(), msg)
	if err != nil {
		t.Fatalf("ProcessMessageWithTrace: %v", err)
	}

	if msg.Context.Data["sub"] != 50.0 {
		t.Fatalf("expected sub=50, got %v", msg.Context.Data["sub"])
	}
	if msg.Context.Data["tax"] != 5.0 {
		t.Fatalf("expected tax=5.0, got %v", msg.Context.Data["tax"])
	}
	if msg.Context.Data["total"] != 55.0 {
		t.Fatalf("expected total=55.0, got %v", msg.Context.Data["total"])
	}
	if len(msg.AuditTrail) != 3 {
		t.Fatalf("expected 3 audit entries, got %d", len(msg.AuditTrail))
	}
	if len(execTrace.Steps) != 3 {
		t.Fatalf("expected 3 trace steps, got %d", len(execTrace.Steps))
	}
	for _, step := range execTrace.Steps {
		if step.Result != trace.ResultExecuted || step.Message == nil {
			t.Fatalf("expected every step executed with a message snapshot, got %+v", step)
		}
	}
}

// Scenario 6: priority reordering.
func TestPriorityReordering(t *testing.T) {
	mkWorkflow := func(id string, priority int) types.Workflow {
		return types.Workflow{
			ID:       id,
			Priority: priority,
			Tasks: []types.Task{
				mapTask(t, "t", map[string]interface{}{"path": "data." + id, "logic": true}),
			},
		}
	}

	wfHigh := mkWorkflow("high", 5)
	wfLow := mkWorkflow("low", 1)

	eng, err := New([]types.Workflow{wfHigh, wfLow}, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := message.New(nil)
	if err := eng.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	if len(msg.AuditTrail) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(msg.AuditTrail))
	}
	if msg.AuditTrail[0].WorkflowID != "low" || msg.AuditTrail[1].WorkflowID != "high" {
		t.Fatalf("expected low-priority workflow first, got %v then %v", msg.AuditTrail[0].WorkflowID, msg.AuditTrail[1].WorkflowID)
	}
}

// Boundary: zero workflows.
func TestZeroWorkflows(t *testing.T) {
	eng, err := New(nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	msg := message.New(nil)
	if err := eng.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if len(msg.AuditTrail) != 0 {
		t.Fatalf("expected empty audit trail, got %d", len(msg.AuditTrail))
	}
}

// Boundary: workflow with zero tasks contributes no audit entries and no
// skip step.
func TestWorkflowWithZeroTasks(t *testing.T) {
	wf := types.Workflow{ID: "empty", Tasks: []types.Task{}}
	eng, err := New([]types.Workflow{wf}, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	msg := message.New(nil)
	execTrace, err := eng.ProcessMessageWithTrace(context.Background(), msg)
	if err != nil {
		t.Fatalf("ProcessMessageWithTrace: %v", err)
	}
	if len(execTrace.Steps) != 0 {
		t.Fatalf("expected no steps for an empty workflow, got %d", len(execTrace.Steps))
	}
	if len(msg.AuditTrail) != 0 {
		t.Fatalf("expected no audit entries, got %d", len(msg.AuditTrail))
	}
}

// Duplicate workflow ids are rejected at construction.
func TestDuplicateWorkflowIDRejected(t *testing.T) {
	wf := types.Workflow{ID: "dup", Tasks: []types.Task{mapTask(t, "t", map[string]interface{}{"path": "data.x", "logic": true})}}
	_, err := New([]types.Workflow{wf, wf}, nil, nil, nil)
	if err == nil {
		t.Fatal("expected duplicate workflow id to be rejected")
	}
	if _, ok := err.(*types.ConfigError); !ok {
		t.Fatalf("expected *types.ConfigError, got %T", err)
	}
}

// Unknown function at construction time is a ConfigError, not a runtime
// surprise: New() rejects it before any message is ever processed.
func TestUnknownFunctionRejectedAtConstruction(t *testing.T) {
	wf := types.Workflow{
		ID: "wf",
		Tasks: []types.Task{
			{ID: "t", Function: types.FuncRef{Name: "does_not_exist", Input: rawJSON(t, map[string]interface{}{})}},
		},
	}
	_, err := New([]types.Workflow{wf}, nil, nil, nil)
	if err == nil {
		t.Fatal("expected unknown function to be rejected at construction")
	}
}

// Task condition skip carries a task id, unlike a workflow-level skip.
func TestTaskConditionSkipCarriesTaskID(t *testing.T) {
	wf := types.Workflow{
		ID: "wf",
		Tasks: []types.Task{
			{
				ID:        "t",
				Condition: false,
				Function: types.FuncRef{
					Name:  types.FuncMap,
					Input: rawJSON(t, map[string]interface{}{"mappings": []interface{}{}}),
				},
			},
		},
	}
	eng, err := New([]types.Workflow{wf}, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	msg := message.New(nil)
	execTrace, err := eng.ProcessMessageWithTrace(context.Background(), msg)
	if err != nil {
		t.Fatalf("ProcessMessageWithTrace: %v", err)
	}
	if len(execTrace.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(execTrace.Steps))
	}
	if execTrace.Steps[0].Result != trace.ResultSkipped || execTrace.Steps[0].TaskID != "t" {
		t.Fatalf("expected task-level skip with task id, got %+v", execTrace.Steps[0])
	}
}

// MaxTasksPerMessage, once exceeded, surfaces as a FatalError rather than
// silently continuing forever.
func TestMaxTasksPerMessageExceeded(t *testing.T) {
	wf := types.Workflow{
		ID: "wf",
		Tasks: []types.Task{
			mapTask(t, "t1", map[string]interface{}{"path": "data.a", "logic": true}),
			mapTask(t, "t2", map[string]interface{}{"path": "data.b", "logic": true}),
			mapTask(t, "t3", map[string]interface{}{"path": "data.c", "logic": true}),
		},
	}

	eng, err := New([]types.Workflow{wf}, nil, nil, &config.Config{MaxTasksPerMessage: 2})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := message.New(nil)
	err = eng.ProcessMessage(context.Background(), msg)
	if err == nil {
		t.Fatal("expected a FatalError once the task limit is exceeded")
	}
	if _, ok := err.(*FatalError); !ok {
		t.Fatalf("expected *FatalError, got %T", err)
	}
	if len(msg.AuditTrail) != 2 {
		t.Fatalf("expected exactly 2 executed tasks before the limit tripped, got %d", len(msg.AuditTrail))
	}
}

// A handler panic is recovered into a FatalError and propagated out of
// process_message rather than being recorded as an ordinary task error.
func TestHandlerPanicPropagatesAsFatalError(t *testing.T) {
	wf := types.Workflow{
		ID: "wf",
		Tasks: []types.Task{
			{ID: "boom", Function: types.FuncRef{Name: "custom_panic", Input: rawJSON(t, map[string]interface{}{})}},
		},
	}

	eng, err := New([]types.Workflow{wf}, map[string]handlers.Handler{"custom_panic": panicHandler{}}, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := message.New(nil)
	err = eng.ProcessMessage(context.Background(), msg)
	if err == nil {
		t.Fatal("expected a FatalError from the panicking handler")
	}
	if _, ok := err.(*FatalError); !ok {
		t.Fatalf("expected *FatalError, got %T: %v", err, err)
	}
	if len(msg.AuditTrail) != 0 {
		t.Fatalf("expected no audit entry for a task that panicked, got %d", len(msg.AuditTrail))
	}
	if len(msg.Errors) != 0 {
		t.Fatalf("expected a panic not to be recorded as an ordinary message error, got %d: %+v", len(msg.Errors), msg.Errors)
	}
}

// MaxExpressionLength rejects an oversized condition at construction time.
func TestMaxExpressionLengthRejectsOversizedCondition(t *testing.T) {
	hugeValues := make([]interface{}, 0, 2000)
	for i := 0; i < 2000; i++ {
		hugeValues = append(hugeValues, "padding-value-to-inflate-expression-length")
	}
	wf := types.Workflow{
		ID:        "wf",
		Condition: map[string]interface{}{"in": []interface{}{"needle", hugeValues}},
		Tasks:     []types.Task{mapTask(t, "t", map[string]interface{}{"path": "data.x", "logic": true})},
	}

	_, err := New([]types.Workflow{wf}, nil, nil, &config.Config{MaxExpressionLength: 100})
	if err == nil {
		t.Fatal("expected oversized condition to be rejected")
	}
	ce, ok := err.(*types.ConfigError)
	if !ok {
		t.Fatalf("expected *types.ConfigError, got %T", err)
	}
	if ce.Kind != types.ConfigErrorSchema {
		t.Errorf("expected Kind=schema, got %v", ce.Kind)
	}
}

// flakyHandler fails its first failures Executes, then succeeds, counting
// attempts so tests can assert the retry discipline.
type flakyHandler struct {
	failures int
	attempts int
}

func (h *flakyHandler) Prepare(json.RawMessage, *logic.Cache) (handlers.PreparedInput, error) {
	return nil, nil
}

func (h *flakyHandler) Execute(_ context.Context, _ handlers.ExecRequest, _ handlers.PreparedInput) (int, []message.Change, []interface{}, error) {
	h.attempts++
	if h.attempts <= h.failures {
		return 0, nil, nil, types.NewExecutionError(types.ExecutionErrorHandler, "transient failure", nil)
	}
	return 200, nil, nil, nil
}

// A handler that fails transiently is re-invoked up to MaxRetries times
// and still produces a normal audit entry once an attempt succeeds.
func TestRetrySucceedsAfterTransientFailures(t *testing.T) {
	h := &flakyHandler{failures: 2}
	wf := types.Workflow{
		ID: "wf",
		Tasks: []types.Task{
			{ID: "t", Function: types.FuncRef{Name: "flaky", Input: rawJSON(t, map[string]interface{}{})}},
		},
	}

	retry := &config.RetryConfig{MaxRetries: 2, RetryDelay: 1}
	eng, err := New([]types.Workflow{wf}, map[string]handlers.Handler{"flaky": h}, retry, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := message.New(nil)
	if err := eng.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if h.attempts != 3 {
		t.Fatalf("expected 3 attempts (1 + 2 retries), got %d", h.attempts)
	}
	if len(msg.AuditTrail) != 1 {
		t.Fatalf("expected 1 audit entry after a successful retry, got %d", len(msg.AuditTrail))
	}
	if len(msg.Errors) != 0 {
		t.Fatalf("expected no errors recorded once an attempt succeeds, got %+v", msg.Errors)
	}
}

// Once retries are exhausted the failure is recorded like any other
// handler error, honoring the task's continue_on_error policy.
func TestRetryExhaustionRecordsError(t *testing.T) {
	h := &flakyHandler{failures: 10}
	wf := types.Workflow{
		ID: "wf",
		Tasks: []types.Task{
			{ID: "t", Function: types.FuncRef{Name: "flaky", Input: rawJSON(t, map[string]interface{}{})}},
		},
	}

	retry := &config.RetryConfig{MaxRetries: 1, RetryDelay: 1}
	eng, err := New([]types.Workflow{wf}, map[string]handlers.Handler{"flaky": h}, retry, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := message.New(nil)
	if err := eng.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if h.attempts != 2 {
		t.Fatalf("expected 2 attempts (1 + 1 retry), got %d", h.attempts)
	}
	if len(msg.AuditTrail) != 0 {
		t.Fatalf("expected no audit entry for an exhausted task, got %d", len(msg.AuditTrail))
	}
	if len(msg.Errors) != 1 {
		t.Fatalf("expected 1 recorded error, got %+v", msg.Errors)
	}
}

// An unrecognized operator key is reported under its own error kind, not
// folded into the generic invalid-expression kind.
func TestUnknownOperatorIsDistinctConfigError(t *testing.T) {
	wf := types.Workflow{
		ID:        "wf",
		Condition: map[string]interface{}{"bogus_op": []interface{}{1.0, 2.0}},
		Tasks:     []types.Task{mapTask(t, "t", map[string]interface{}{"path": "data.x", "logic": true})},
	}
	_, err := New([]types.Workflow{wf}, nil, nil, nil)
	if err == nil {
		t.Fatal("expected unknown operator to be rejected at construction")
	}
	ce, ok := err.(*types.ConfigError)
	if !ok {
		t.Fatalf("expected *types.ConfigError, got %T", err)
	}
	if ce.Kind != types.ConfigErrorUnknownOperator {
		t.Fatalf("expected Kind=unknown_operator, got %v", ce.Kind)
	}
}

// A task-condition evaluation failure records an error and stops the
// workflow; later tasks in the same workflow do not run, but later
// workflows still do.
func TestTaskConditionEvalFailureStopsWorkflow(t *testing.T) {
	wf1 := types.Workflow{
		ID: "wf1",
		Tasks: []types.Task{
			{
				ID:        "bad-cond",
				Condition: map[string]interface{}{"+": []interface{}{map[string]interface{}{"var": "data.name"}, 1.0}},
				Function: types.FuncRef{
					Name:  types.FuncMap,
					Input: rawJSON(t, map[string]interface{}{"mappings": []interface{}{}}),
				},
			},
			mapTask(t, "after", map[string]interface{}{"path": "data.after", "logic": true}),
		},
	}
	wf2 := types.Workflow{
		ID:    "wf2",
		Tasks: []types.Task{mapTask(t, "t", map[string]interface{}{"path": "data.second", "logic": true})},
	}

	eng, err := New([]types.Workflow{wf1, wf2}, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := message.New(nil)
	msg.Context.Data["name"] = "not-a-number"

	if err := eng.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if len(msg.Errors) != 1 {
		t.Fatalf("expected 1 condition error, got %+v", msg.Errors)
	}
	if _, ok := msg.Context.Data["after"]; ok {
		t.Fatal("expected the rest of wf1 to be skipped after the condition failure")
	}
	if msg.Context.Data["second"] != true {
		t.Fatal("expected wf2 to still run after wf1's condition failure")
	}
	if len(msg.AuditTrail) != 1 || msg.AuditTrail[0].WorkflowID != "wf2" {
		t.Fatalf("expected only wf2's audit entry, got %+v", msg.AuditTrail)
	}
}

// MaxContextDepth rejects a map write whose target path nests deeper than
// the configured limit, surfacing as a handler ExecutionError (recorded in
// message.Errors) rather than an unbounded allocation.
func TestMaxContextDepthRejectsDeepWrite(t *testing.T) {
	wf := types.Workflow{
		ID: "wf",
		Tasks: []types.Task{
			mapTask(t, "t", map[string]interface{}{"path": "data.a.b.c.d.e.f.g", "logic": true}),
		},
	}

	eng, err := New([]types.Workflow{wf}, nil, nil, &config.Config{MaxContextDepth: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	msg := message.New(nil)
	if err := eng.ProcessMessage(context.Background(), msg); err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if len(msg.Errors) != 1 {
		t.Fatalf("expected 1 error from the depth-limited write, got %d: %+v", len(msg.Errors), msg.Errors)
	}
	if len(msg.AuditTrail) != 0 {
		t.Fatalf("expected no audit entry for a task that failed the depth check, got %d", len(msg.AuditTrail))
	}
}
