package elasticpress

import "github.com/alaa-alshamy/ElasticPress/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrNotFound               = domain.ErrNotFound
	ErrInvalidArgs            = domain.ErrInvalidArgs
	ErrUnknownAlgorithm       = domain.ErrUnknownAlgorithm
	ErrUnknownField           = domain.ErrUnknownField
	ErrBackendUnavailable     = domain.ErrBackendUnavailable
	ErrNotSupported           = domain.ErrNotSupported
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
)
