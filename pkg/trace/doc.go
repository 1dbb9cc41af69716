// Package trace implements the opt-in execution-trace recorder: a record
// of every workflow/task step the executor took, with a deep message
// snapshot after each executed step and the per-mapping context snapshots
// map tasks captured along the way.
package trace
