package blueprint

import (
	"context"

	"github.com/jkmaina/autogen-blueprint/events"
)

// Hook receives conversation events plus the typed end result, and a final
// OnClose once the run has fully wound down.
type Hook[T any] interface {
	events.Hook[T]
	OnClose(context.Context)
}
