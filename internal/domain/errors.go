package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a staged-upload presence rule violation.
	ErrValidation = errors.New("validation failed")
	// ErrTransport signals a failed request to the backend or provider.
	ErrTransport = errors.New("transport failed")
	// ErrProviderShape signals an unexpected similarity provider response shape.
	ErrProviderShape = errors.New("unexpected provider response shape")
	// ErrBadReference signals an empty or sentinel file reference.
	ErrBadReference = errors.New("empty or sentinel file reference")
	// ErrDeleteInFlight signals that an asset delete is already executing.
	ErrDeleteInFlight = errors.New("delete already in flight")
	// ErrUnknownCategory signals an unrecognized asset category name.
	ErrUnknownCategory = errors.New("unknown asset category")
)

// ValidationError wraps ErrValidation with the category that violated
// its presence rule. It never reaches the network.
type ValidationError struct {
	Category Category
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: at least one %s file is required", ErrValidation.Error(), e.Category)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewMissingCategory creates a validation error for an empty mandatory category.
func NewMissingCategory(cat Category) error {
	return &ValidationError{Category: cat}
}

// TransportError wraps ErrTransport with the HTTP status and the
// server-supplied message when one was available.
type TransportError struct {
	Status  int
	Message string
}

func (e *TransportError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", ErrTransport.Error(), e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrTransport.Error(), e.Status, e.Message)
}

func (e *TransportError) Unwrap() error { return ErrTransport }

// NewTransport creates a transport error from a response status and message.
func NewTransport(status int, message string) error {
	return &TransportError{Status: status, Message: message}
}
