package model

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrTransport     = errors.New("transport error")
	ErrBadResponse   = errors.New("bad response")
)

// ConfigurationError means a required setting is missing.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: missing setting %q", e.Field)
}

func (e *ConfigurationError) Is(target error) bool { return target == ErrConfiguration }

// ValidationError means the message fails a precondition and must not be retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation error: " + e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// TransportError covers network failures, timeouts and non-2xx statuses.
type TransportError struct {
	Endpoint   Endpoint
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport error on %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("transport error on %s: status %d", e.Endpoint, e.StatusCode)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// DomainError is a 2xx response whose body fails the success marker check.
type DomainError struct {
	Endpoint Endpoint
	Body     string
}

func (e *DomainError) Error() string { return ErrBadResponse.Error() }

func (e *DomainError) Is(target error) bool { return target == ErrBadResponse }

// IsTerminal reports errors that will fail identically on redelivery.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConfiguration)
}
