// Package engine provides the rule engine executor: construction-time
// compilation of a workflow set's conditions and function inputs, and the
// process_message / process_message_with_trace control flow that drives a
// Message through that workflow set.
package engine
