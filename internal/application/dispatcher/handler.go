package dispatcher

import (
	"context"

	"github.com/garyjia/flooring-crm/internal/domain/event"
)

// Handler processes business events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo describes a registered handler
type HandlerInfo struct {
	Name      string
	EventType event.Type
	Handler   Handler
}
