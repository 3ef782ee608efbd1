package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imagevault/imagevault/internal/domain"
	"github.com/imagevault/imagevault/internal/transform"
)

// Handle correlates a submitted job with its eventual completion. Callers
// must use handles, never submission order: resolution order across jobs is
// not guaranteed.
type Handle struct {
	JobID string
}

// Coordinator submits transformation jobs and waits for their completion. It
// never executes transforms itself.
type Coordinator struct {
	broker Broker
	logger *zap.Logger
}

func NewCoordinator(broker Broker, logger *zap.Logger) *Coordinator {
	return &Coordinator{broker: broker, logger: logger}
}

// Submit copies image and spec into an immutable Job and enqueues it. The
// copy matters: the caller's buffer may be reused while the job is in
// flight.
func (c *Coordinator) Submit(ctx context.Context, image []byte, mimeType string, spec transform.Spec) (Handle, error) {
	buf := make([]byte, len(image))
	copy(buf, image)

	job := Job{
		ID:          uuid.NewString(),
		Image:       buf,
		MimeType:    mimeType,
		Spec:        spec,
		SubmittedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return Handle{}, fmt.Errorf("marshalling job: %w", err)
	}

	if err := c.broker.Enqueue(ctx, payload); err != nil {
		return Handle{}, fmt.Errorf("enqueueing job: %w", err)
	}

	c.logger.Debug("job submitted",
		zap.String("job_id", job.ID),
		zap.Int("image_bytes", len(buf)),
	)
	return Handle{JobID: job.ID}, nil
}

// Await blocks the calling goroutine on the job's completion signal. On
// timeout it returns domain.ErrTransformTimeout and abandons the job: the
// worker finishes it anyway and the unread reply expires in the broker.
func (c *Coordinator) Await(ctx context.Context, h Handle, timeout time.Duration) ([]byte, string, error) {
	payload, err := c.broker.AwaitReply(ctx, h.JobID, timeout)
	if err != nil {
		if errors.Is(err, ErrReplyTimeout) {
			c.logger.Warn("job reply timed out", zap.String("job_id", h.JobID), zap.Duration("timeout", timeout))
			return nil, "", domain.ErrTransformTimeout
		}
		return nil, "", fmt.Errorf("awaiting reply: %w", err)
	}

	var res Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, "", fmt.Errorf("unmarshalling reply: %w", err)
	}

	if res.Error != "" {
		if mapped, ok := codeToErr[res.Error]; ok {
			return nil, "", mapped
		}
		return nil, "", fmt.Errorf("%w: %s", domain.ErrWorkerFailure, res.Error)
	}
	return res.Image, res.MimeType, nil
}
