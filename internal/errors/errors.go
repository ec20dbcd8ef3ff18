// Package errors defines the daemon's typed error values.
package errors

import (
	"fmt"
	"time"
)

// ErrorType classifies a failure for logging and for the control surface's
// error reporting.
type ErrorType string

const (
	ErrorTypeCache      ErrorType = "cache"
	ErrorTypeSingleflight ErrorType = "singleflight"
	ErrorTypeAdapter    ErrorType = "adapter"
	ErrorTypeUpstream   ErrorType = "upstream"
	ErrorTypeResolver   ErrorType = "resolver"
	ErrorTypeWorkspace  ErrorType = "workspace"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeInternal   ErrorType = "internal"
)

// CacheError represents a failure in the cache layers (memory, disk, or
// the routing/invalidation operations built on top of them).
type CacheError struct {
	Type       ErrorType
	Operation  string
	Key        string
	Underlying error
	Timestamp  time.Time
}

// NewCacheError creates a cache error with context.
func NewCacheError(op, key string, err error) *CacheError {
	return &CacheError{
		Type:       ErrorTypeCache,
		Operation:  op,
		Key:        key,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("cache %s failed for key %s: %v", e.Operation, e.Key, e.Underlying)
	}
	return fmt.Sprintf("cache %s failed: %v", e.Operation, e.Underlying)
}

func (e *CacheError) Unwrap() error {
	return e.Underlying
}

// UpstreamError wraps a failure returned by the upstream LSP call a cache
// miss had to fall through to.
type UpstreamError struct {
	Method     string
	FilePath   string
	Underlying error
	Timestamp  time.Time
}

// NewUpstreamError creates an upstream error with context.
func NewUpstreamError(method, filePath string, err error) *UpstreamError {
	return &UpstreamError{
		Method:     method,
		FilePath:   filePath,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s failed for %s: %v", e.Method, e.FilePath, e.Underlying)
}

func (e *UpstreamError) Unwrap() error {
	return e.Underlying
}

// AdapterError represents a failure converting an upstream LSP response
// into symbol graph records (symbol states and edges).
type AdapterError struct {
	Operation  string
	SymbolUID  string
	Underlying error
	Timestamp  time.Time
}

// NewAdapterError creates an adapter error with context.
func NewAdapterError(op, symbolUID string, err error) *AdapterError {
	return &AdapterError{
		Operation:  op,
		SymbolUID:  symbolUID,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *AdapterError) Error() string {
	if e.SymbolUID != "" {
		return fmt.Sprintf("adapter %s failed for symbol %s: %v", e.Operation, e.SymbolUID, e.Underlying)
	}
	return fmt.Sprintf("adapter %s failed: %v", e.Operation, e.Underlying)
}

func (e *AdapterError) Unwrap() error {
	return e.Underlying
}

// WorkspaceError represents a failure discovering, opening, or closing a
// workspace's cache handle.
type WorkspaceError struct {
	Root       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewWorkspaceError creates a workspace error with context.
func NewWorkspaceError(op, root string, err error) *WorkspaceError {
	return &WorkspaceError{
		Root:       root,
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace %s failed for %s: %v", e.Operation, e.Root, e.Underlying)
}

func (e *WorkspaceError) Unwrap() error {
	return e.Underlying
}

// ConfigError represents a configuration validation or parse error.
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

// NewConfigError creates a config error with context.
func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{
		Field:      field,
		Value:      value,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %s): %v", e.Field, e.Value, e.Underlying)
}

func (e *ConfigError) Unwrap() error {
	return e.Underlying
}

// DatabaseError represents a failure in the symbol graph's relational
// store (batch writes, transactions, targeted clears).
type DatabaseError struct {
	Operation  string
	Underlying error
	Timestamp  time.Time
}

// NewDatabaseError creates a database error with context.
func NewDatabaseError(op string, err error) *DatabaseError {
	return &DatabaseError{
		Operation:  op,
		Underlying: err,
		Timestamp:  time.Now(),
	}
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s failed: %v", e.Operation, e.Underlying)
}

func (e *DatabaseError) Unwrap() error {
	return e.Underlying
}

// MultiError aggregates multiple errors, e.g. from a cache-warming sweep
// across several files.
type MultiError struct {
	Errors []error
}

// NewMultiError creates a multi-error, dropping any nil entries.
func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
}

func (e *MultiError) Unwrap() []error {
	return e.Errors
}
