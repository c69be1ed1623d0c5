// Package content models indexable content entities and bulk outcomes.
package content

import (
	"errors"
	"strconv"
	"strings"
)

// Indexed fields read when building the embedding text.
const (
	FieldTitle   = "post_title"
	FieldExcerpt = "post_excerpt"
	FieldContent = "post_content"
	FieldID      = "post_id"
)

// ErrInvalidID is returned for non-positive ids.
var ErrInvalidID = errors.New("content id must be positive")

// Document is one content entity as stored in the search index.
type Document struct {
	id     int64
	source map[string]any
}

// New validates id and wraps source. The post_id field is set to id.
func New(id int64, source map[string]any) (Document, error) {
	if id <= 0 {
		return Document{}, ErrInvalidID
	}
	src := make(map[string]any, len(source)+1)
	for k, v := range source {
		src[k] = v
	}
	src[FieldID] = id
	return Document{id: id, source: src}, nil
}

// ID returns the content id.
func (d Document) ID() int64 { return d.id }

// Key returns the id as the index document key.
func (d Document) Key() string { return strconv.FormatInt(d.id, 10) }

// Source returns the indexed fields. Callers must not modify it.
func (d Document) Source() map[string]any { return d.source }

// WithField returns a copy of d with key set to value.
func (d Document) WithField(key string, value any) Document {
	src := make(map[string]any, len(d.source)+1)
	for k, v := range d.source {
		src[k] = v
	}
	src[key] = value
	return Document{id: d.id, source: src}
}

// Text joins title, excerpt and content, skipping empty parts.
func (d Document) Text() string {
	var parts []string
	for _, f := range []string{FieldTitle, FieldExcerpt, FieldContent} {
		if s, ok := d.source[f].(string); ok && strings.TrimSpace(s) != "" {
			parts = append(parts, strings.TrimSpace(s))
		}
	}
	return strings.Join(parts, "\n\n")
}

// ItemStatus is the processing outcome of a single bulk item.
type ItemStatus string

const (
	StatusOK    ItemStatus = "ok"
	StatusError ItemStatus = "error"
)

// Result is the outcome of indexing one item of a bulk run.
type Result struct {
	id     int64
	status ItemStatus
	err    error
}

// NewOK creates a successful result.
func NewOK(id int64) Result { return Result{id: id, status: StatusOK} }

// NewError creates a failed result.
func NewError(id int64, err error) Result { return Result{id: id, status: StatusError, err: err} }

func (r Result) ID() int64          { return r.id }
func (r Result) Status() ItemStatus { return r.status }
func (r Result) Err() error         { return r.err }
