// Package content writes content into the search index and announces each
// change on the event bus.
package content

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/alaa-alshamy/ElasticPress/internal/domain"
	domcontent "github.com/alaa-alshamy/ElasticPress/internal/domain/content"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/event"
	"github.com/alaa-alshamy/ElasticPress/internal/domain/search/fieldpath"
	"github.com/alaa-alshamy/ElasticPress/internal/logger"
)

// MaxBatchSize is the default bulk limit.
const MaxBatchSize = 100

// Service indexes and removes content.
type Service struct {
	idx          Indexer
	events       Publisher
	embed        Embedder
	index        string
	contentType  string
	maxBatchSize int
}

// New creates a content service for one index and content type.
func New(idx Indexer, events Publisher, index, contentType string) *Service {
	return &Service{
		idx:          idx,
		events:       events,
		index:        index,
		contentType:  contentType,
		maxBatchSize: MaxBatchSize,
	}
}

// WithEmbedder stores a text embedding with every document.
func (s *Service) WithEmbedder(e Embedder) *Service {
	s.embed = e
	return s
}

// WithMaxBatchSize configures the bulk limit.
func (s *Service) WithMaxBatchSize(size int) *Service {
	if size > 0 {
		s.maxBatchSize = size
	}
	return s
}

// Index stores doc and publishes a content.indexed event.
func (s *Service) Index(ctx context.Context, doc domcontent.Document) error {
	if err := s.put(ctx, doc); err != nil {
		return err
	}
	s.publish(ctx, event.New(event.KindIndexed, s.contentType, doc.ID()))
	return nil
}

// Delete removes id and publishes a content.deleted event.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidArgs, domcontent.ErrInvalidID)
	}
	doc, _ := domcontent.New(id, nil)
	if err := s.idx.DeleteDocument(ctx, s.index, doc.Key()); err != nil {
		return fmt.Errorf("delete content %d: %w", id, err)
	}
	s.publish(ctx, event.New(event.KindDeleted, s.contentType, id))
	return nil
}

// Bulk indexes docs one by one and publishes a single content.bulk_indexed
// event listing the ids that succeeded.
func (s *Service) Bulk(ctx context.Context, docs []domcontent.Document) []domcontent.Result {
	results := make([]domcontent.Result, len(docs))
	if len(docs) > s.maxBatchSize {
		for i, d := range docs {
			results[i] = domcontent.NewError(d.ID(),
				fmt.Errorf("batch size exceeds %d: %w", s.maxBatchSize, domain.ErrInvalidArgs))
		}
		return results
	}

	indexed := make([]int64, 0, len(docs))
	for i, d := range docs {
		if err := s.put(ctx, d); err != nil {
			results[i] = domcontent.NewError(d.ID(), err)
			continue
		}
		results[i] = domcontent.NewOK(d.ID())
		indexed = append(indexed, d.ID())
	}
	if len(indexed) > 0 {
		s.publish(ctx, event.New(event.KindBulkIndexed, s.contentType, indexed...))
	}
	return results
}

func (s *Service) put(ctx context.Context, doc domcontent.Document) error {
	if s.embed != nil {
		if text := doc.Text(); text != "" {
			res, err := s.embed.Embed(ctx, text)
			if err != nil {
				return fmt.Errorf("embed content %d: %w", doc.ID(), err)
			}
			doc = doc.WithField(fieldpath.PostEmbedding.String(), res.Embedding)
		}
	}
	if err := s.idx.IndexDocument(ctx, s.index, doc.Key(), doc.Source()); err != nil {
		return fmt.Errorf("index content %d: %w", doc.ID(), err)
	}
	return nil
}

// publish never fails the write that triggered it.
func (s *Service) publish(ctx context.Context, e event.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		logger.FromContext(ctx).Warn("Failed to publish content event",
			zap.String("kind", string(e.Kind)),
			zap.Int("ids", len(e.IDs)),
			zap.Error(err),
		)
	}
}
