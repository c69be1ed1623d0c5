package content

import (
	"context"

	"github.com/alaa-alshamy/ElasticPress/internal/domain"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/event"
)

// Indexer writes documents into the content index.
type Indexer interface {
	IndexDocument(ctx context.Context, index, id string, source map[string]any) error
	DeleteDocument(ctx context.Context, index, id string) error
}

// Publisher announces content changes.
type Publisher interface {
	Publish(ctx context.Context, e event.Event) error
}

// Embedder vectorizes document text for semantic search.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
