// Package faults defines the error taxonomy of a conversion run.
package faults

import (
	"errors"
	"fmt"
)

// ConfigurationError rejects invalid run parameters before any work starts.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SourceReadError reports an unreadable source document or a page index the
// document cannot resolve.
type SourceReadError struct {
	Path string
	Page int // -1 when the failure is not page specific
	Err  error
}

func (e *SourceReadError) Error() string {
	if e.Page >= 0 {
		return fmt.Sprintf("read source %s page %d: %v", e.Path, e.Page+1, e.Err)
	}
	return fmt.Sprintf("read source %s: %v", e.Path, e.Err)
}

func (e *SourceReadError) Unwrap() error { return e.Err }

// RenderError reports a rasterization or composition failure.
type RenderError struct {
	Page int // -1 for composed output pages
	Err  error
}

func (e *RenderError) Error() string {
	if e.Page >= 0 {
		return fmt.Sprintf("render page %d: %v", e.Page+1, e.Err)
	}
	return fmt.Sprintf("render: %v", e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// AssemblyError reports a failure writing a block document.
type AssemblyError struct {
	Block string
	Err   error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("assemble %s: %v", e.Block, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// Configf builds a ConfigurationError.
func Configf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// SourceRead wraps err as a SourceReadError not tied to a page.
func SourceRead(path string, err error) error {
	return &SourceReadError{Path: path, Page: -1, Err: err}
}

// IsConfiguration reports whether err is a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
