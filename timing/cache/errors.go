package cache

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every error reported while building a
// hierarchy from a bad configuration.
var ErrInvalidConfig = errors.New("invalid cache configuration")

// ErrOutOfRange is wrapped by every error reported for an access that does
// not fit the hierarchy.
var ErrOutOfRange = errors.New("access out of range")

// ConfigError reports a configuration that cannot describe a hierarchy. There
// is no degraded mode; construction fails.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s %s", ErrInvalidConfig, e.Field, e.Reason)
}

// Unwrap returns ErrInvalidConfig.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func configErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// RangeError reports an access that touches memory that does not exist or
// does not fit a single word transfer. It is detected before any cache state
// changes.
type RangeError struct {
	Address uint64
	Size    int
	Limit   uint64
	Reason  string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%v: %d bytes at 0x%x %s (limit 0x%x)",
		ErrOutOfRange, e.Size, e.Address, e.Reason, e.Limit)
}

// Unwrap returns ErrOutOfRange.
func (e *RangeError) Unwrap() error {
	return ErrOutOfRange
}
