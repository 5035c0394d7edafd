package testutil

import (
	"context"
	"time"

	"carledger/pkg/requestcontext"
)

// FrozenContext returns a context whose request time is pinned, so record
// timestamps produced by services are exactly comparable in assertions.
func FrozenContext(at time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), at)
}

// TracedContext returns a frozen context that also carries a request ID, for
// asserting audit correlation.
func TracedContext(at time.Time, requestID string) context.Context {
	return requestcontext.WithRequestID(FrozenContext(at), requestID)
}
