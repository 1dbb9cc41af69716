package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/flowforge/ruleengine/pkg/config"
	"github.com/flowforge/ruleengine/pkg/handlers"
	"github.com/flowforge/ruleengine/pkg/logging"
	"github.com/flowforge/ruleengine/pkg/logic"
	"github.com/flowforge/ruleengine/pkg/message"
	"github.com/flowforge/ruleengine/pkg/telemetry"
	"github.com/flowforge/ruleengine/pkg/trace"
	"github.com/flowforge/ruleengine/pkg/types"
)

// compiledTask pairs a task's wire definition with its compiled condition,
// resolved handler, and prepared (expression-compiled) input.
type compiledTask struct {
	task      types.Task
	condition *logic.CompiledExpr
	handler   handlers.Handler
	prepared  handlers.PreparedInput
}

// compiledWorkflow pairs a workflow's wire definition with its compiled
// condition and compiled tasks, in declared task order.
type compiledWorkflow struct {
	workflow  types.Workflow
	condition *logic.CompiledExpr
	tasks     []compiledTask
}

// Engine is the rule engine executor. It is constructed once from an
// immutable workflow set and processes any number of messages thereafter;
// construction performs all parsing, schema checks, and expression
// compilation so the hot path never allocates a parser.
type Engine struct {
	workflows []compiledWorkflow
	cache     *logic.Cache
	registry  *handlers.Registry
	retry     config.RetryConfig
	limits    config.Config

	logger    *logging.Logger
	telemetry *telemetry.Provider
	tracer    oteltrace.Tracer
}

// New constructs an Engine from workflows, compiling every condition and
// every handler input's expression fields. customFunctions, if non-nil, is
// registered on top of the six built-ins and may shadow a built-in of the
// same name. retry, if nil, defaults to config.DefaultRetryConfig(); limits,
// if nil, defaults to config.Default().
//
// At-startup failures are total: if any workflow/task id collides, any
// expression fails to compile, or a workflow or task condition's source
// exceeds limits.MaxExpressionLength, New returns a *types.ConfigError and
// no Engine.
func New(workflows []types.Workflow, customFunctions map[string]handlers.Handler, retry *config.RetryConfig, limits *config.Config) (*Engine, error) {
	if err := validateIDs(workflows); err != nil {
		return nil, err
	}

	limitsCfg := config.Default()
	if limits != nil {
		limitsCfg = *limits
	}
	if err := limitsCfg.Validate(); err != nil {
		return nil, &types.ConfigError{Kind: types.ConfigErrorSchema, Reason: err.Error()}
	}

	cache := logic.NewCache()
	registry := handlers.NewRegistry()
	if len(customFunctions) > 0 {
		if err := registry.RegisterCustomFunctions(customFunctions); err != nil {
			return nil, &types.ConfigError{Kind: types.ConfigErrorSchema, Reason: err.Error()}
		}
	}

	compiled := make([]compiledWorkflow, len(workflows))
	for i, wf := range workflows {
		cw, err := compileWorkflow(wf, cache, registry, limitsCfg)
		if err != nil {
			return nil, err
		}
		compiled[i] = cw
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].workflow.Priority < compiled[j].workflow.Priority
	})

	retryCfg := config.DefaultRetryConfig()
	if retry != nil {
		retryCfg = *retry
	}

	return &Engine{
		workflows: compiled,
		cache:     cache,
		registry:  registry,
		retry:     retryCfg,
		limits:    limitsCfg,
		logger:    logging.MustNew(logging.DefaultConfig()),
		tracer:    oteltrace.NewNoopTracerProvider().Tracer("flowforge-ruleengine"),
	}, nil
}

// SetLogger overrides the engine's structured logger.
func (e *Engine) SetLogger(l *logging.Logger) *Engine {
	e.logger = l
	return e
}

// SetTelemetryProvider attaches a telemetry.Provider; its tracer replaces
// the engine's no-op tracer and its metrics are recorded at every
// workflow/task boundary.
func (e *Engine) SetTelemetryProvider(p *telemetry.Provider) *Engine {
	e.telemetry = p
	if p != nil && p.Tracer() != nil {
		e.tracer = p.Tracer()
	}
	return e
}

func validateIDs(workflows []types.Workflow) error {
	seen := make(map[string]bool, len(workflows))
	for _, wf := range workflows {
		if wf.ID == "" {
			return &types.ConfigError{Kind: types.ConfigErrorSchema, Reason: "workflow id is required"}
		}
		if seen[wf.ID] {
			return &types.ConfigError{Kind: types.ConfigErrorSchema, WorkflowID: wf.ID, Reason: "duplicate workflow id"}
		}
		seen[wf.ID] = true

		taskSeen := make(map[string]bool, len(wf.Tasks))
		for _, t := range wf.Tasks {
			if t.ID == "" {
				return &types.ConfigError{Kind: types.ConfigErrorSchema, WorkflowID: wf.ID, Reason: "task id is required"}
			}
			if taskSeen[t.ID] {
				return &types.ConfigError{Kind: types.ConfigErrorSchema, WorkflowID: wf.ID, TaskID: t.ID, Reason: "duplicate task id"}
			}
			taskSeen[t.ID] = true
		}
	}
	return nil
}

func compileWorkflow(wf types.Workflow, cache *logic.Cache, registry *handlers.Registry, limits config.Config) (compiledWorkflow, error) {
	cw := compiledWorkflow{workflow: wf}

	if wf.Condition != nil {
		if err := checkExpressionLength(wf.Condition, limits); err != nil {
			return compiledWorkflow{}, wrapLimitError(err, wf.ID, "", "condition")
		}
		compiled, err := cache.Compile(wf.Condition)
		if err != nil {
			return compiledWorkflow{}, wrapCompileError(err, wf.ID, "", "condition")
		}
		cw.condition = compiled
	}

	cw.tasks = make([]compiledTask, len(wf.Tasks))
	for i, task := range wf.Tasks {
		ct, err := compileTask(wf.ID, task, cache, registry, limits)
		if err != nil {
			return compiledWorkflow{}, err
		}
		cw.tasks[i] = ct
	}
	return cw, nil
}

func compileTask(workflowID string, task types.Task, cache *logic.Cache, registry *handlers.Registry, limits config.Config) (compiledTask, error) {
	ct := compiledTask{task: task}

	if task.Condition != nil {
		if err := checkExpressionLength(task.Condition, limits); err != nil {
			return compiledTask{}, wrapLimitError(err, workflowID, task.ID, "condition")
		}
		compiled, err := cache.Compile(task.Condition)
		if err != nil {
			return compiledTask{}, wrapCompileError(err, workflowID, task.ID, "condition")
		}
		ct.condition = compiled
	}

	handler, ok := registry.Lookup(task.Function.Name)
	if !ok {
		return compiledTask{}, &types.ConfigError{
			Kind:       types.ConfigErrorSchema,
			WorkflowID: workflowID,
			TaskID:     task.ID,
			Reason:     fmt.Sprintf("unknown function: %s", task.Function.Name),
		}
	}
	ct.handler = handler

	prepared, err := handler.Prepare(task.Function.Input, cache)
	if err != nil {
		return compiledTask{}, wrapCompileError(err, workflowID, task.ID, "function.input")
	}
	ct.prepared = prepared

	return ct, nil
}

// checkExpressionLength enforces limits.MaxExpressionLength, a
// resource-limit guard independent of the compiler itself, against an
// expression's serialized source before it is handed to the compiler.
func checkExpressionLength(expr types.Expression, limits config.Config) error {
	if limits.MaxExpressionLength <= 0 {
		return nil
	}
	raw, err := json.Marshal(expr)
	if err != nil {
		return fmt.Errorf("encoding expression for length check: %w", err)
	}
	if len(raw) > limits.MaxExpressionLength {
		return fmt.Errorf("expression source is %d bytes, exceeding the configured limit of %d", len(raw), limits.MaxExpressionLength)
	}
	return nil
}

func wrapLimitError(err error, workflowID, taskID, path string) error {
	return &types.ConfigError{
		Kind:       types.ConfigErrorSchema,
		WorkflowID: workflowID,
		TaskID:     taskID,
		Path:       path,
		Reason:     err.Error(),
		Cause:      err,
	}
}

func wrapCompileError(err error, workflowID, taskID, path string) error {
	if ce, ok := err.(*logic.CompileError); ok {
		kind := types.ConfigErrorInvalidExpression
		if ce.Operator != "" {
			kind = types.ConfigErrorUnknownOperator
		}
		return &types.ConfigError{
			Kind:       kind,
			WorkflowID: workflowID,
			TaskID:     taskID,
			Path:       path,
			Reason:     ce.Reason,
			Cause:      ce,
		}
	}
	return &types.ConfigError{
		Kind:       types.ConfigErrorSchema,
		WorkflowID: workflowID,
		TaskID:     taskID,
		Path:       path,
		Reason:     err.Error(),
		Cause:      err,
	}
}

// ProcessMessage drives msg through the workflow set exactly once, in
// place. Ordinary handler/validation failures are recorded in msg.Errors
// and never surface as a returned error; only a FatalError does.
func (e *Engine) ProcessMessage(ctx context.Context, msg *message.Message) error {
	_, err := e.run(ctx, msg, nil)
	return err
}

// ProcessMessageWithTrace is ProcessMessage plus a full ExecutionTrace of
// every workflow/task step taken, including skips.
func (e *Engine) ProcessMessageWithTrace(ctx context.Context, msg *message.Message) (*trace.ExecutionTrace, error) {
	rec := trace.NewRecorder()
	_, err := e.run(ctx, msg, rec)
	return rec.Trace(), err
}

func (e *Engine) run(ctx context.Context, msg *message.Message, rec *trace.Recorder) (*message.Message, error) {
	ctx, span := e.tracer.Start(ctx, "process_message")
	defer span.End()

	tasksExecuted := 0
	msg.Context.MaxDepth = e.limits.MaxContextDepth

	for _, wf := range e.workflows {
		wfStart := time.Now()
		if wf.condition != nil {
			ok, err := wf.condition.StrictlyTrue(msg.EvalContext())
			if err != nil {
				msg.AddError(message.ErrorInfo{
					Code:       "condition_evaluation_error",
					Message:    err.Error(),
					WorkflowID: wf.workflow.ID,
				})
				e.logger.ForWorkflow(wf.workflow.ID).WithError(err).Warn("workflow condition evaluation failed; skipping workflow")
				continue
			}
			if !ok {
				rec.RecordSkip(wf.workflow.ID, "")
				continue
			}
		}

		tasksBefore := tasksExecuted
		err := e.runWorkflow(ctx, wf, msg, rec, &tasksExecuted)
		if e.telemetry != nil {
			e.telemetry.RecordWorkflowExecution(ctx, wf.workflow.ID, time.Since(wfStart), err == nil, tasksExecuted-tasksBefore)
		}
		if err != nil {
			return msg, err
		}
	}

	return msg, nil
}

// runWorkflow executes every task of wf in order, incrementing
// *tasksExecuted for each task actually executed (not skipped) across the
// whole process_message call. Returns a non-nil error only for a
// FatalError, including a MaxTasksPerMessage breach.
func (e *Engine) runWorkflow(ctx context.Context, wf compiledWorkflow, msg *message.Message, rec *trace.Recorder, tasksExecuted *int) error {
	for _, ct := range wf.tasks {
		if ct.condition != nil {
			ok, err := ct.condition.StrictlyTrue(msg.EvalContext())
			if err != nil {
				msg.AddError(message.ErrorInfo{
					Code:       "condition_evaluation_error",
					Message:    err.Error(),
					WorkflowID: wf.workflow.ID,
					TaskID:     ct.task.ID,
				})
				e.logger.ForWorkflow(wf.workflow.ID).WithTaskID(ct.task.ID).WithError(err).Warn("task condition evaluation failed; stopping workflow")
				break
			}
			if !ok {
				rec.RecordSkip(wf.workflow.ID, ct.task.ID)
				continue
			}
		}

		if e.limits.MaxTasksPerMessage > 0 && *tasksExecuted >= e.limits.MaxTasksPerMessage {
			return &FatalError{
				WorkflowID: wf.workflow.ID,
				TaskID:     ct.task.ID,
				Reason:     fmt.Sprintf("maximum tasks per message exceeded: %d (limit: %d)", *tasksExecuted, e.limits.MaxTasksPerMessage),
			}
		}

		stop, err := e.runTask(ctx, wf, ct, msg, rec)
		if err != nil {
			return err
		}
		*tasksExecuted++
		if stop {
			break
		}
	}

	return nil
}

// runTask executes one task with retry, appends its audit entry or error,
// and records its trace step. It reports stop = true when the workflow's
// task loop must break: a failure, or a rejection status (>= 400) from a
// handler that executed normally, whose effective continue_on_error is
// false. A rejected task still gets its audit entry — it did execute.
func (e *Engine) runTask(ctx context.Context, wf compiledWorkflow, ct compiledTask, msg *message.Message, rec *trace.Recorder) (stop bool, fatalErr error) {
	taskLogger := e.logger.ForTask(wf.workflow.ID, ct.task.ID, ct.task.Function.Name)
	taskStart := time.Now()

	ctx, span := e.tracer.Start(ctx, "task:"+ct.task.Function.Name)
	defer span.End()

	status, changes, mappingContexts, err := e.executeWithRetry(ctx, wf.workflow.ID, ct, msg, rec.Active(), taskLogger)

	if e.telemetry != nil {
		e.telemetry.RecordTaskExecution(ctx, ct.task.ID, ct.task.Function.Name, time.Since(taskStart), err == nil)
	}

	if err != nil {
		if fatal, ok := err.(*FatalError); ok {
			taskLogger.WithError(fatal).Error("task execution hit a fatal error")
			return true, fatal
		}

		var execErr *types.ExecutionError
		code := string(types.ExecutionErrorHandler)
		if ok := asExecutionError(err, &execErr); ok {
			code = string(execErr.Kind)
		}
		msg.AddError(message.ErrorInfo{
			Code:       code,
			Message:    err.Error(),
			WorkflowID: wf.workflow.ID,
			TaskID:     ct.task.ID,
		})
		taskLogger.WithError(err).Error("task execution failed")

		if ct.task.EffectiveContinueOnError(wf.workflow) {
			return false, nil
		}
		return true, nil
	}

	msg.AppendAudit(message.AuditTrail{
		WorkflowID: wf.workflow.ID,
		TaskID:     ct.task.ID,
		Timestamp:  time.Now().UTC(),
		StatusCode: status,
		Changes:    changes,
	})
	msg.InvalidateView()
	rec.RecordExecuted(wf.workflow.ID, ct.task.ID, msg, mappingContexts)

	taskLogger.WithField("status_code", status).Debug("task executed")

	if status >= 400 && !ct.task.EffectiveContinueOnError(wf.workflow) {
		taskLogger.WithField("status_code", status).Warn("task rejected, stopping workflow")
		return true, nil
	}
	return false, nil
}

// executeWithRetry invokes ct.handler.Execute, retrying on error per the
// engine's retry config. Condition evaluation is never retried; only
// handler execution is.
func (e *Engine) executeWithRetry(ctx context.Context, workflowID string, ct compiledTask, msg *message.Message, capture bool, logger *logging.Logger) (status int, changes []message.Change, mappingContexts []interface{}, err error) {
	req := handlers.ExecRequest{Msg: msg, WorkflowID: workflowID, TaskID: ct.task.ID, Capture: capture}

	attempt := 0
	for {
		status, changes, mappingContexts, err = safeExecute(ctx, ct.handler, req, ct.prepared)
		if err == nil {
			return status, changes, mappingContexts, nil
		}
		if attempt >= e.retry.MaxRetries {
			return 0, nil, nil, err
		}
		attempt++
		if e.telemetry != nil {
			e.telemetry.RecordTaskRetry(ctx, ct.task.ID, ct.task.Function.Name, attempt)
		}
		logger.WithField("attempt", attempt).WithError(err).Warn("task failed, retrying")
		time.Sleep(e.retry.DelayForAttempt(attempt))
	}
}

// safeExecute recovers a handler panic into a FatalError-shaped error so a
// misbehaving custom handler cannot crash the process.
func safeExecute(ctx context.Context, h handlers.Handler, req handlers.ExecRequest, prepared handlers.PreparedInput) (status int, changes []message.Change, mappingContexts []interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &FatalError{WorkflowID: req.WorkflowID, TaskID: req.TaskID, Reason: fmt.Sprintf("handler panicked: %v", r)}
		}
	}()
	return h.Execute(ctx, req, prepared)
}

func asExecutionError(err error, target **types.ExecutionError) bool {
	if ee, ok := err.(*types.ExecutionError); ok {
		*target = ee
		return true
	}
	return false
}
