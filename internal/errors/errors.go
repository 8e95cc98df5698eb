// Package errors provides centralized error handling with component and
// category tagging for the validation pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"time"
)

// ErrorCategory represents the type of error for better categorization
type ErrorCategory string

const (
	CategoryValidation       ErrorCategory = "validation"
	CategoryConfiguration    ErrorCategory = "configuration"
	CategoryFileIO           ErrorCategory = "file-io"
	CategoryCatalogue        ErrorCategory = "catalogue"
	CategoryCrossMatch       ErrorCategory = "cross-match"
	CategorySpectralFit      ErrorCategory = "spectral-fit"
	CategoryMetrics          ErrorCategory = "metrics"
	CategoryImageCorrection  ErrorCategory = "image-correction"
	CategoryDatabase         ErrorCategory = "database"
	CategoryInsufficientData ErrorCategory = "insufficient-data"
	CategoryNumerical        ErrorCategory = "numerical"
	CategoryNotFound         ErrorCategory = "not-found"
	CategoryCancellation     ErrorCategory = "cancellation"
	CategoryGeneric          ErrorCategory = "generic"
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

// Sentinel errors for the recoverable conditions the orchestrator and its
// callers branch on. Wrap these with the builder so errors.Is keeps working.
var (
	// ErrInsufficientData marks results that could not be computed because
	// too few inputs were available (too few matches, too few frequencies).
	ErrInsufficientData = stderrors.New("insufficient data")

	// ErrNotConverged marks a nonlinear fit that exhausted its iteration
	// budget or produced non-finite parameters.
	ErrNotConverged = stderrors.New("fit did not converge")

	// ErrDegenerateStatistics marks aggregations over samples with zero
	// variance or an empty clipped set.
	ErrDegenerateStatistics = stderrors.New("degenerate statistics")

	// ErrArtifactNotFound is returned by artifact stores on a cache miss.
	ErrArtifactNotFound = stderrors.New("artifact not found")
)

// EnhancedError wraps an error with additional context and metadata
type EnhancedError struct {
	Err       error          // Original error
	Component string         // Component where error occurred
	Category  ErrorCategory  // Error category for better grouping
	Context   map[string]any // Additional context data
	Timestamp time.Time      // When the error occurred
}

// Error implements the error interface
func (ee *EnhancedError) Error() string {
	return ee.Err.Error()
}

// Unwrap implements the error unwrapping interface
func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

// Is implements error type checking. Two enhanced errors compare by
// category; anything else is delegated to the wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if ee2, ok := target.(*EnhancedError); ok {
		return ee.Category == ee2.Category
	}
	return Is(ee.Err, target)
}

// GetContext returns a copy of the context map, or nil when no context was set.
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	return maps.Clone(ee.Context)
}

// ErrorBuilder provides a fluent interface for creating enhanced errors
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New creates a new error builder wrapping err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{
		err: err,
		// context is lazily initialized when needed
	}
}

// Newf creates a new formatted error with enhanced context
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

// Context adds context data to the error
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// CatalogueContext adds catalogue-specific context
func (eb *ErrorBuilder) CatalogueContext(name string, sources int) *ErrorBuilder {
	return eb.Context("catalogue", name).Context("source_count", sources)
}

// Build creates the EnhancedError
func (eb *ErrorBuilder) Build() *EnhancedError {
	ee := &EnhancedError{
		Err:       eb.err,
		Component: eb.component,
		Category:  eb.category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
	if ee.Component == "" {
		ee.Component = ComponentUnknown
	}
	if ee.Category == "" {
		ee.Category = CategoryGeneric
	}
	return ee
}

// --- Standard library pass-throughs so callers only import this package ---

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

// NewStd creates a plain standard library error without enhancement.
func NewStd(text string) error {
	return stderrors.New(text)
}
