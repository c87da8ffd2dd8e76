// Package errors provides centralized error handling for the ingestion pipeline
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

const (
	CategoryNetwork          ErrorCategory = "network"
	CategoryHTTP             ErrorCategory = "http-request"
	CategoryContentMismatch  ErrorCategory = "content-mismatch"
	CategoryParsing          ErrorCategory = "parsing"
	CategoryConflict         ErrorCategory = "conflict"
	CategoryMissingReference ErrorCategory = "missing-reference"
	CategoryValidation       ErrorCategory = "validation"
	CategoryConfiguration    ErrorCategory = "configuration"
	CategoryDatabase         ErrorCategory = "database"
	CategoryNotFound         ErrorCategory = "not-found"
	CategoryTimeout          ErrorCategory = "timeout"
	CategoryScheduler        ErrorCategory = "scheduler"
	CategoryImageFetch       ErrorCategory = "image-fetch"
	CategoryGeneric          ErrorCategory = "generic"
)

// Priority constants for error prioritization
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	Component string         // Component where the error occurred
	Category  ErrorCategory  // Error category for better grouping
	Priority  string         // Explicit priority override (optional)
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
	mu        sync.RWMutex
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is implements error type checking. Two enhanced errors match when their
// categories match, so callers can branch on taxonomy without string checks.
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return Is(ee.Err, target)
}

// GetCategory returns the error category
func (ee *EnhancedError) GetCategory() ErrorCategory {
	return ee.Category
}

// GetContext returns a copy of the error context
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()

	if ee.Context == nil {
		return nil
	}
	contextCopy := make(map[string]any, len(ee.Context))
	maps.Copy(contextCopy, ee.Context)
	return contextCopy
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New creates a new error builder wrapping err
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf creates a new error builder from a format string
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component sets the component name
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the error category for better grouping
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Priority sets the explicit priority override for the error
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		eb.priority = priority
	default:
		if priority != "" {
			eb.priority = PriorityMedium
		}
	}
	return eb
}

// Context adds a key-value pair to the error context
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build creates the enhanced error
func (eb *ErrorBuilder) Build() error {
	component := eb.component
	if component == "" {
		component = ComponentUnknown
	}
	category := eb.category
	if category == "" {
		category = CategoryGeneric
	}
	return &EnhancedError{
		Err:       eb.err,
		Component: component,
		Category:  category,
		Priority:  eb.priority,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
}

// CategoryOf returns the category of err, or CategoryGeneric for plain errors.
func CategoryOf(err error) ErrorCategory {
	var ee *EnhancedError
	if As(err, &ee) {
		return ee.Category
	}
	return CategoryGeneric
}

// HasCategory reports whether err carries the given category.
func HasCategory(err error, category ErrorCategory) bool {
	return CategoryOf(err) == category
}

// Standard library passthroughs so callers need only one errors import.

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join returns an error that wraps the given errors
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// Unwrap returns the result of calling the Unwrap method on err
func Unwrap(err error) error {
	return stderrors.Unwrap(err)
}
