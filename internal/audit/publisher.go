package audit

import (
	"context"
	"log/slog"

	"carledger/pkg/requestcontext"
)

// Publisher hands applied-transition events to the worker inbox. Emission is
// fire-and-forget: the transition already committed, so a full inbox is
// logged and dropped rather than failing the caller.
type Publisher struct {
	inbox  chan<- Event
	logger *slog.Logger
}

func NewPublisher(inbox chan<- Event, logger *slog.Logger) *Publisher {
	return &Publisher{inbox: inbox, logger: logger}
}

func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.Warn("audit inbox full, dropping event",
			"action", event.Action,
			"subject", event.Subject,
		)
	}
}
