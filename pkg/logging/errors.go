package logging

import "errors"

// Sentinel errors returned by Config.Validate: the three construction-time
// validation failures New can actually return.
var (
	ErrInvalidLogLevel  = errors.New("invalid log level")
	ErrInvalidLogFormat = errors.New("invalid log format")
	ErrInvalidOutput    = errors.New("invalid log output")
)
