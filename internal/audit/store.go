package audit

import "context"

// Store is an append-only sink for transition events. The Kafka producer and
// the in-memory store both satisfy it so tests can swap sinks easily.
type Store interface {
	Append(ctx context.Context, event Event) error
}
