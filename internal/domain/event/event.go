// Package event defines content change notifications.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies what happened to indexed content.
type Kind string

const (
	KindDeleted     Kind = "content.deleted"
	KindIndexed     Kind = "content.indexed"
	KindBulkIndexed Kind = "content.bulk_indexed"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindDeleted, KindIndexed, KindBulkIndexed:
		return true
	}
	return false
}

// Event is a content change notification. ContentType is the slug of the
// indexable that produced the change, e.g. "post".
type Event struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	ContentType string    `json:"content_type"`
	IDs         []int64   `json:"ids,omitempty"`
	At          time.Time `json:"at"`
}

// New creates an event with a fresh id stamped with the current time.
func New(kind Kind, contentType string, ids ...int64) Event {
	return Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		ContentType: contentType,
		IDs:         ids,
		At:          time.Now().UTC(),
	}
}
