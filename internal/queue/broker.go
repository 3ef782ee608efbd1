package queue

import (
	"context"
	"errors"
	"time"
)

// ErrReplyTimeout is returned by AwaitReply when no reply arrives in time.
var ErrReplyTimeout = errors.New("timed out waiting for reply")

// Message is one delivery of a job payload. Attempt starts at zero and
// counts redeliveries.
type Message struct {
	Payload []byte
	Attempt int
}

// Broker is the durable queue substrate: at-least-once job delivery plus a
// per-job reply channel. Retry policy (bounded attempts, backoff) lives in
// the implementation, not in the coordinator or the worker.
type Broker interface {
	// Enqueue pushes a job payload for delivery to some worker.
	Enqueue(ctx context.Context, payload []byte) error

	// Consume delivers job payloads to handle until ctx is done. A handler
	// error schedules a redelivery with backoff, up to the configured
	// attempt bound; a nil return acknowledges the message.
	Consume(ctx context.Context, handle func(ctx context.Context, msg Message) error) error

	// Reply publishes the completion payload for jobID.
	Reply(ctx context.Context, jobID string, payload []byte) error

	// AwaitReply blocks until the reply for jobID arrives, the timeout
	// elapses (ErrReplyTimeout) or ctx is cancelled.
	AwaitReply(ctx context.Context, jobID string, timeout time.Duration) ([]byte, error)
}
