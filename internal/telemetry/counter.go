// Package telemetry counts analyzer invocations per inbound request so a
// stage can verify the reasoning engine did the required work before its
// result was forwarded. Counts are observability signals, not enforcement
// gates.
package telemetry

import (
	"context"
	"sync/atomic"
)

// Counter tallies tool invocations observed while serving one request. A
// fresh counter is created for every externally-received request so counts
// never leak across requests.
type Counter struct {
	n atomic.Int64
}

// NewCounter returns a counter at zero.
func NewCounter() *Counter {
	return &Counter{}
}

// Inc records one tool invocation.
func (c *Counter) Inc() {
	c.n.Add(1)
}

// Count returns the invocations recorded so far.
func (c *Counter) Count() int {
	return int(c.n.Load())
}

// Reset returns the counter to zero.
func (c *Counter) Reset() {
	c.n.Store(0)
}

// Outcome classifies a request's tool-invocation count against the stage's
// expected minimum.
type Outcome string

const (
	// OutcomeComplete: the expected analyzer set ran.
	OutcomeComplete Outcome = "complete"
	// OutcomePartial: some analyzers ran, fewer than expected.
	OutcomePartial Outcome = "partial"
	// OutcomeMissed: a request that should have triggered analyzers ran none.
	OutcomeMissed Outcome = "missed"
)

// Evaluate compares an observed count against the stage's expected minimum.
func Evaluate(count, expectedMin int) Outcome {
	switch {
	case count >= expectedMin:
		return OutcomeComplete
	case count == 0:
		return OutcomeMissed
	default:
		return OutcomePartial
	}
}

type ctxKey struct{}

// NewContext returns a context carrying the counter.
func NewContext(ctx context.Context, c *Counter) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext retrieves the request's counter, or nil if none is attached.
func FromContext(ctx context.Context) *Counter {
	c, _ := ctx.Value(ctxKey{}).(*Counter)
	return c
}
