// Package config centralizes engine configuration: retry discipline and
// the resource limits that bound a single process_message call.
package config
