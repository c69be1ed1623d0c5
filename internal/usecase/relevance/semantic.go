package relevance

import (
	"context"
	"fmt"

	"github.com/alaa-alshamy/ElasticPress/internal/domain"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/dsl"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/fieldpath"
)

// Semantic rescores the text query by cosine similarity between the search
// text embedding and the indexed post embedding.
type Semantic struct {
	embedder domain.Embedder
	text     Algorithm
	field    fieldpath.Path
}

// NewSemantic creates the strategy. text builds the candidate query; nil means V40.
func NewSemantic(embedder domain.Embedder, text Algorithm) *Semantic {
	if text == nil {
		text = NewV40()
	}
	return &Semantic{embedder: embedder, text: text, field: fieldpath.PostEmbedding}
}

// Name implements Algorithm.
func (s *Semantic) Name() string { return "semantic" }

// Query implements Algorithm.
func (s *Semantic) Query(ctx context.Context, in Input) (dsl.Clause, error) {
	candidates, err := s.text.Query(ctx, in)
	if err != nil {
		return nil, err
	}
	res, err := s.embedder.Embed(ctx, in.Text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
	}
	return dsl.Clause{"script_score": map[string]any{
		"query": candidates,
		"script": map[string]any{
			"source": fmt.Sprintf("cosineSimilarity(params.query_vector, '%s') + 1.0", s.field),
			"params": map[string]any{"query_vector": res.Embedding},
		},
	}}, nil
}
