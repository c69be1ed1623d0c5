// Package bus delivers content change events to subscribers.
package bus

import (
	"context"
	"errors"

	"github.com/alaa-alshamy/ElasticPress/internal/domain/event"
)

// ErrClosed is returned by operations on a closed bus.
var ErrClosed = errors.New("bus: closed")

// Handler processes one event. Errors are logged by the bus and never
// stop delivery to other handlers.
type Handler func(ctx context.Context, e event.Event) error

// Bus publishes content events and fans them out to subscribers.
type Bus interface {
	Publish(ctx context.Context, e event.Event) error
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}
