// Package errors is the error type shared by every landcover package.
//
// Errors are built fluently and carry a component, a category and free-form
// context. When a telemetry reporter is installed, each built error is sent
// to it once:
//
//	return errors.New(err).
//	    Component("export").
//	    Category(errors.CategoryExport).
//	    Context("year", year).
//	    Build()
//
// Is, As, Join and NewStd mirror the standard library so callers need only
// one errors import.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync/atomic"
	"time"
)

// ErrorCategory groups errors for exit handling and telemetry.
type ErrorCategory string

const (
	CategoryConfiguration    ErrorCategory = "configuration"
	CategoryValidation       ErrorCategory = "validation"
	CategoryFileIO           ErrorCategory = "file-io"
	CategoryFileParsing      ErrorCategory = "file-parsing"
	CategoryNotFound         ErrorCategory = "not-found"
	CategoryGeometry         ErrorCategory = "geometry"
	CategoryFetch            ErrorCategory = "raster-fetch"
	CategoryNetwork          ErrorCategory = "network"
	CategoryHTTP             ErrorCategory = "http-request"
	CategoryDatabase         ErrorCategory = "database"
	CategoryRaster           ErrorCategory = "raster"
	CategoryExport           ErrorCategory = "export"
	CategoryAnimation        ErrorCategory = "animation"
	CategoryPublish          ErrorCategory = "publish"
	CategoryState            ErrorCategory = "state"
	CategoryResource         ErrorCategory = "resource"
	CategorySystem           ErrorCategory = "system-resource"
	CategoryCommandExecution ErrorCategory = "command-execution"
	CategoryTimeout          ErrorCategory = "timeout"
	CategoryCancellation     ErrorCategory = "cancellation"
	CategoryIntegration      ErrorCategory = "integration"
	CategoryGeneric          ErrorCategory = "generic"
)

// Priorities override the severity a reporter would otherwise derive.
const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// ComponentUnknown is used when the component cannot be determined.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with its origin and context.
type EnhancedError struct {
	Err       error
	Category  ErrorCategory
	Priority  string
	Context   map[string]any
	Timestamp time.Time

	component string
	reported  atomic.Bool
}

func (ee *EnhancedError) Error() string { return ee.Err.Error() }

func (ee *EnhancedError) Unwrap() error { return ee.Err }

// Is matches another EnhancedError by category, otherwise defers to the
// wrapped error.
func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category
	}
	return stderrors.Is(ee.Err, target)
}

// GetComponent returns the component that built the error.
func (ee *EnhancedError) GetComponent() string { return ee.component }

// GetPriority returns the explicit priority, or "".
func (ee *EnhancedError) GetPriority() string { return ee.Priority }

// GetContext returns a copy of the context map.
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	return maps.Clone(ee.Context)
}

// ErrorBuilder assembles an EnhancedError.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	priority  string
	context   map[string]any
}

// New starts an error from err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf starts an error from a format string.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

// Component names the package or subsystem. When unset it is taken from
// the calling package.
func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

// Category sets the category. When unset it is inferred.
func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

// Priority sets an explicit priority. Unknown values become medium.
func (eb *ErrorBuilder) Priority(priority string) *ErrorBuilder {
	switch priority {
	case "":
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		eb.priority = priority
	default:
		eb.priority = PriorityMedium
	}
	return eb
}

// Context attaches a key/value pair.
func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build returns the error and hands it to the telemetry reporter, if any.
func (eb *ErrorBuilder) Build() *EnhancedError {
	if eb.err == nil {
		eb.err = stderrors.New("unknown error")
	}
	component := eb.component
	if component == "" {
		component = callerComponent(1)
	}
	category := eb.category
	if category == "" {
		category = detectCategory(eb.err, component)
	}

	ee := &EnhancedError{
		Err:       eb.err,
		Category:  category,
		Priority:  eb.priority,
		Context:   eb.context,
		Timestamp: time.Now(),
		component: component,
	}
	report(ee)
	return ee
}

// NewStd creates a plain error.
func NewStd(text string) error { return stderrors.New(text) }

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return stderrors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool { return stderrors.As(err, target) }

// Unwrap returns the error wrapped by err, if any.
func Unwrap(err error) error { return stderrors.Unwrap(err) }

// Join wraps errs; nil entries are dropped.
func Join(errs ...error) error { return stderrors.Join(errs...) }

// CategoryOf returns the category of the first EnhancedError in err's tree,
// or "" when there is none.
func CategoryOf(err error) ErrorCategory {
	var ee *EnhancedError
	if As(err, &ee) {
		return ee.Category
	}
	return ""
}

// IsCategory reports whether err carries category.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	return As(err, &ee) && ee.Category == category
}

// IsNotFound reports whether err carries CategoryNotFound.
func IsNotFound(err error) bool {
	return IsCategory(err, CategoryNotFound)
}
