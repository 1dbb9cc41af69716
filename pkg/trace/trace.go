package trace

import "github.com/flowforge/ruleengine/pkg/message"

// Result classifies what the executor did with one step.
type Result string

const (
	ResultExecuted Result = "executed"
	ResultSkipped  Result = "skipped"
)

// ExecutionStep records one workflow- or task-level step the executor
// took. TaskID is empty for a workflow-level skip (the workflow's own
// condition was not strictly true). Message and MappingContexts are only
// populated for executed steps; MappingContexts is further only present
// for map tasks.
type ExecutionStep struct {
	WorkflowID      string           `json:"workflow_id"`
	TaskID          string           `json:"task_id,omitempty"`
	Result          Result           `json:"result"`
	Message         *message.Message `json:"message,omitempty"`
	MappingContexts []interface{}    `json:"mapping_contexts,omitempty"`
}

// ExecutionTrace is the full ordered record of a process_message_with_trace
// call.
type ExecutionTrace struct {
	Steps []ExecutionStep `json:"steps"`
}

// Recorder accumulates ExecutionSteps for a single process_message_with_trace
// call. A nil *Recorder is valid and its methods are no-ops, so the executor
// can share one control-flow path between traced and untraced runs.
type Recorder struct {
	trace *ExecutionTrace
}

// NewRecorder returns a Recorder ready to accumulate steps.
func NewRecorder() *Recorder {
	return &Recorder{trace: &ExecutionTrace{}}
}

// Active reports whether r will actually record anything.
func (r *Recorder) Active() bool {
	return r != nil
}

// RecordSkip appends a skipped step. taskID is empty for a workflow-level
// skip.
func (r *Recorder) RecordSkip(workflowID, taskID string) {
	if r == nil {
		return
	}
	r.trace.Steps = append(r.trace.Steps, ExecutionStep{
		WorkflowID: workflowID,
		TaskID:     taskID,
		Result:     ResultSkipped,
	})
}

// RecordExecuted appends an executed step, snapshotting msg via Clone so
// later mutations to the live message cannot alter the recorded step.
func (r *Recorder) RecordExecuted(workflowID, taskID string, msg *message.Message, mappingContexts []interface{}) {
	if r == nil {
		return
	}
	r.trace.Steps = append(r.trace.Steps, ExecutionStep{
		WorkflowID:      workflowID,
		TaskID:          taskID,
		Result:          ResultExecuted,
		Message:         msg.Clone(),
		MappingContexts: mappingContexts,
	})
}

// Trace returns the accumulated trace. Safe to call on a nil Recorder,
// returning nil.
func (r *Recorder) Trace() *ExecutionTrace {
	if r == nil {
		return nil
	}
	return r.trace
}
