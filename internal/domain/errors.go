// Package domain holds the error taxonomy shared by every assistant component.
package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure by how it must be surfaced to the customer.
type ErrorKind string

const (
	// KindInput errors are reported as user-facing text and never escalated.
	KindInput ErrorKind = "input"
	// KindTransport errors come from the embedding service, index or order API.
	KindTransport ErrorKind = "transport"
	// KindData errors come from malformed metadata or unparsable tool output.
	KindData ErrorKind = "data"
	// KindStorage errors come from the cart backing store.
	KindStorage ErrorKind = "storage"
	// KindConfig errors come from missing or invalid configuration.
	KindConfig ErrorKind = "config"
)

// Sentinel input errors.
var (
	ErrEmptyQuery          = errors.New("empty search query")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrInvalidItemIndex    = errors.New("invalid item number")
	ErrEmptyEmbeddingInput = errors.New("empty text for embedding")
)

// Error is a classified error with context.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func InputError(message string, err error) *Error {
	return NewError(KindInput, message, err)
}

func TransportError(message string, err error) *Error {
	return NewError(KindTransport, message, err)
}

func DataError(message string, err error) *Error {
	return NewError(KindData, message, err)
}

func StorageError(message string, err error) *Error {
	return NewError(KindStorage, message, err)
}

func ConfigError(message string, err error) *Error {
	return NewError(KindConfig, message, err)
}

// IsKind reports whether any error in err's chain is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	for err != nil {
		if errors.As(err, &de) {
			if de.Kind == kind {
				return true
			}
			err = de.Err
			continue
		}
		return false
	}
	return false
}
