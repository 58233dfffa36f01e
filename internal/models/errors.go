package models

import (
	"errors"
	"fmt"
)

// ConfigError reports invalid input data or arguments: mismatched volume
// dimensions, anisotropic spacing, bad phase, radius or bin count.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Msg, e.Err)
	}
	return "configuration error: " + e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Configf builds a ConfigError from a format string
func Configf(format string, args ...interface{}) error {
	return &ConfigError{Msg: fmt.Sprintf(format, args...)}
}

// IOError reports an unreadable input or an unwritable output path
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// WrapIO wraps err as an IOError for path. A nil err stays nil and an
// existing ConfigError or IOError is returned unchanged.
func WrapIO(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if IsConfig(err) || IsIO(err) {
		return err
	}
	return &IOError{Op: op, Path: path, Err: err}
}

// IsConfig reports whether err carries a ConfigError
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsIO reports whether err carries an IOError
func IsIO(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}
