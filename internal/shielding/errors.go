package shielding

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks panel parameters that cannot produce a finite sweep.
	ErrConfiguration = errors.New("invalid panel configuration")
	// ErrDomain marks a candidate whose evaluation would need an undefined
	// arithmetic operation (log of a non-positive value, division by zero).
	ErrDomain = errors.New("candidate outside arithmetic domain")
)

// Error represents a shielding computation error with context
// that can be wrapped with additional information.
type Error struct {
	// Message describes the error that occurred.
	Message string
	// Op is the operation that caused the error.
	Op string
	// Component is the component where the error occurred.
	Component string
	// Err is the underlying error, normally ErrConfiguration or ErrDomain.
	Err error
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var prefix string
	if e.Component != "" && e.Op != "" {
		prefix = fmt.Sprintf("%s: %s", e.Component, e.Op)
	} else if e.Component != "" {
		prefix = e.Component
	} else if e.Op != "" {
		prefix = e.Op
	}

	if e.Err != nil {
		if prefix != "" {
			return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	if prefix != "" {
		return fmt.Sprintf("%s: %s", prefix, e.Message)
	}
	return e.Message
}

// Unwrap returns the underlying error, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithOperation adds operation context to the error.
func (e *Error) WithOperation(op string) *Error {
	e.Op = op
	return e
}

// WithComponent adds component context to the error.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// ConfigurationErrorf builds an ErrConfiguration error with a formatted message.
func ConfigurationErrorf(format string, args ...interface{}) *Error {
	return &Error{
		Message:   fmt.Sprintf(format, args...),
		Component: "panel",
		Err:       ErrConfiguration,
	}
}

// DomainErrorf builds an ErrDomain error with a formatted message.
func DomainErrorf(format string, args ...interface{}) *Error {
	return &Error{
		Message:   fmt.Sprintf(format, args...),
		Component: "mesh",
		Err:       ErrDomain,
	}
}

// IsConfigurationError reports whether err was caused by invalid panel parameters.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsDomainError reports whether err was caused by an out-of-domain candidate.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrDomain)
}
