package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgs signals query arguments that cannot be decoded.
	ErrInvalidArgs = errors.New("invalid query args")
	// ErrUnknownAlgorithm signals a search algorithm name with no registered strategy.
	ErrUnknownAlgorithm = errors.New("unknown search algorithm")
	// ErrUnknownField signals a facet field that is not configured.
	ErrUnknownField = errors.New("unknown facet field")
	// ErrBackendUnavailable signals that the search backend could not answer.
	ErrBackendUnavailable = errors.New("search backend unavailable")
	// ErrNotSupported signals an operation the configured backend cannot perform.
	ErrNotSupported = errors.New("not supported by backend")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
)

// AlgorithmError wraps ErrUnknownAlgorithm with the requested name.
type AlgorithmError struct {
	Name string
}

func (e *AlgorithmError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownAlgorithm.Error(), e.Name)
}

func (e *AlgorithmError) Unwrap() error { return ErrUnknownAlgorithm }

// NewUnknownAlgorithm creates an unknown algorithm error.
func NewUnknownAlgorithm(name string) error {
	return &AlgorithmError{Name: name}
}
