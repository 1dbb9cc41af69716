package config

import "errors"

// Sentinel errors for configuration validation.
var (
	ErrInvalidExpressionLength = errors.New("invalid max expression length: must be non-negative")
	ErrInvalidMaxTasks         = errors.New("invalid max tasks per message: must be non-negative")
	ErrInvalidContextDepth     = errors.New("invalid max context depth: must be non-negative")
)
