// Package message defines the Message the engine mutates in place: its
// context (data, metadata, temp_data), accumulated errors, audit trail, and
// the cached evaluator view the expression engine reads.
package message
