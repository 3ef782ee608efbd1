package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/imagevault/imagevault/internal/engine"
)

// Worker claims jobs, runs the transform engine on them and delivers the
// outcome through the broker's reply channel. Each invocation is stateless:
// everything it needs travels inside the Job payload.
type Worker struct {
	broker      Broker
	maxAttempts int
	logger      *zap.Logger
}

func NewWorker(broker Broker, maxAttempts int, logger *zap.Logger) *Worker {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Worker{broker: broker, maxAttempts: maxAttempts, logger: logger}
}

// Run consumes jobs until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	return w.broker.Consume(ctx, w.handle)
}

func (w *Worker) handle(ctx context.Context, msg Message) (err error) {
	var job Job
	if uerr := json.Unmarshal(msg.Payload, &job); uerr != nil {
		// Malformed payloads have no job id to reply to; redelivery would
		// fail identically, so drop them.
		w.logger.Error("dropping malformed job payload", zap.Error(uerr))
		return nil
	}

	// A panic mid-transform must not take the consumer loop down with it,
	// and the caller must learn about the crash instead of waiting out its
	// timeout.
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker panic",
				zap.String("job_id", job.ID),
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())),
			)
			err = w.replyError(ctx, job.ID, codeWorkerFailure)
		}
	}()

	out, mime, aerr := engine.Apply(job.Image, job.MimeType, job.Spec)
	if aerr != nil {
		// Engine errors are deterministic: retrying the same bytes and spec
		// repeats the failure, so serialize the error back instead.
		code := codeWorkerFailure
		for target, c := range errToCode {
			if errors.Is(aerr, target) {
				code = c
				break
			}
		}
		w.logger.Info("transform failed",
			zap.String("job_id", job.ID),
			zap.String("code", code),
			zap.Error(aerr),
		)
		return w.replyError(ctx, job.ID, code)
	}

	payload, merr := json.Marshal(Result{JobID: job.ID, Image: out, MimeType: mime})
	if merr != nil {
		return fmt.Errorf("marshalling result: %w", merr)
	}
	if rerr := w.broker.Reply(ctx, job.ID, payload); rerr != nil {
		// Redelivery is safe: the transform is idempotent. On the final
		// attempt there is nothing left to do but log.
		if msg.Attempt+1 >= w.maxAttempts {
			w.logger.Error("dropping job after final attempt",
				zap.String("job_id", job.ID),
				zap.Int("attempt", msg.Attempt),
				zap.Error(rerr),
			)
			return nil
		}
		return fmt.Errorf("publishing reply: %w", rerr)
	}

	w.logger.Debug("job completed", zap.String("job_id", job.ID), zap.Int("output_bytes", len(out)))
	return nil
}

func (w *Worker) replyError(ctx context.Context, jobID, code string) error {
	payload, err := json.Marshal(Result{JobID: jobID, Error: code})
	if err != nil {
		return fmt.Errorf("marshalling error result: %w", err)
	}
	if err := w.broker.Reply(ctx, jobID, payload); err != nil {
		return fmt.Errorf("publishing error reply: %w", err)
	}
	return nil
}
