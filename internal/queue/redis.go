package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisOptions configures the Redis Streams broker.
type RedisOptions struct {
	Stream       string
	Group        string
	Consumer     string
	MaxLen       int64
	MaxAttempts  int
	BackoffBase  time.Duration
	BlockTimeout time.Duration
	ReplyTTL     time.Duration
	Workers      int
	// MinIdle is how long a pending delivery must sit unacknowledged before
	// another consumer may claim it. Zero derives it from BlockTimeout.
	MinIdle time.Duration
}

// RedisBroker is the durable queue substrate on Redis Streams. Jobs go
// through one named stream read by a consumer group; replies go through
// per-job list keys so a single caller can block on exactly its own result.
// Unacknowledged deliveries from crashed consumers are reclaimed with
// XAUTOCLAIM, and failed handlings are re-added with exponential backoff up
// to MaxAttempts.
type RedisBroker struct {
	client redis.UniversalClient
	opts   RedisOptions
	logger *zap.Logger
}

func NewRedisBroker(client redis.UniversalClient, opts RedisOptions, logger *zap.Logger) *RedisBroker {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &RedisBroker{client: client, opts: opts, logger: logger}
}

func (b *RedisBroker) Enqueue(ctx context.Context, payload []byte) error {
	return b.add(ctx, payload, 0)
}

func (b *RedisBroker) add(ctx context.Context, payload []byte, attempt int) error {
	err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: b.opts.Stream,
		MaxLen: b.opts.MaxLen,
		Approx: true,
		Values: map[string]any{
			"payload": string(payload),
			"attempt": attempt,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd: %w", err)
	}
	return nil
}

func (b *RedisBroker) Reply(ctx context.Context, jobID string, payload []byte) error {
	key := b.replyKey(jobID)
	pipe := b.client.TxPipeline()
	pipe.LPush(ctx, key, payload)
	pipe.Expire(ctx, key, b.opts.ReplyTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pushing reply: %w", err)
	}
	return nil
}

func (b *RedisBroker) AwaitReply(ctx context.Context, jobID string, timeout time.Duration) ([]byte, error) {
	res, err := b.client.BLPop(ctx, timeout, b.replyKey(jobID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrReplyTimeout
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("blpop: %w", err)
	}
	// BLPOP returns [key, value].
	return []byte(res[1]), nil
}

func (b *RedisBroker) replyKey(jobID string) string {
	return b.opts.Stream + ":reply:" + jobID
}

func (b *RedisBroker) Consume(ctx context.Context, handle func(ctx context.Context, msg Message) error) error {
	if err := b.ensureGroup(ctx); err != nil {
		return fmt.Errorf("ensuring consumer group: %w", err)
	}

	// Adopt deliveries left pending by crashed consumers before reading new
	// ones, then keep sweeping so consumers that die mid-run are also
	// covered.
	b.autoClaim(ctx, handle)
	go b.claimLoop(ctx, handle)

	errCh := make(chan error, b.opts.Workers)
	for i := 0; i < b.opts.Workers; i++ {
		consumer := fmt.Sprintf("%s-%d", b.opts.Consumer, i)
		go func() {
			errCh <- b.loop(ctx, consumer, handle)
		}()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (b *RedisBroker) ensureGroup(ctx context.Context) error {
	err := b.client.XGroupCreateMkStream(ctx, b.opts.Stream, b.opts.Group, "0").Err()
	// BUSYGROUP means the group already exists, which is fine.
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (b *RedisBroker) minIdle() time.Duration {
	if b.opts.MinIdle > 0 {
		return b.opts.MinIdle
	}
	minIdle := 30 * time.Second
	if t := b.opts.BlockTimeout * 6; t > minIdle {
		minIdle = t
	}
	return minIdle
}

func (b *RedisBroker) claimLoop(ctx context.Context, handle func(ctx context.Context, msg Message) error) {
	ticker := time.NewTicker(b.minIdle())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.autoClaim(ctx, handle)
		}
	}
}

// autoClaim takes over pending deliveries whose consumer stopped acking and
// runs them through the normal dispatch path, so a crash between XREADGROUP
// and XACK only delays the job instead of losing it.
func (b *RedisBroker) autoClaim(ctx context.Context, handle func(ctx context.Context, msg Message) error) {
	next := "0-0"
	for {
		msgs, start, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   b.opts.Stream,
			Group:    b.opts.Group,
			Consumer: b.opts.Consumer,
			MinIdle:  b.minIdle(),
			Start:    next,
			Count:    100,
		}).Result()
		if err != nil || len(msgs) == 0 {
			return
		}
		b.logger.Info("reclaimed stalled deliveries", zap.Int("count", len(msgs)))
		for _, m := range msgs {
			b.dispatch(ctx, m, handle)
		}
		next = start
	}
}

func (b *RedisBroker) loop(ctx context.Context, consumer string, handle func(ctx context.Context, msg Message) error) error {
	for {
		streams, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    b.opts.Group,
			Consumer: consumer,
			Streams:  []string{b.opts.Stream, ">"},
			Count:    1,
			Block:    b.opts.BlockTimeout,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Warn("xreadgroup failed", zap.Error(err))
			continue
		}

		for _, s := range streams {
			for _, m := range s.Messages {
				b.dispatch(ctx, m, handle)
			}
		}
	}
}

func (b *RedisBroker) dispatch(ctx context.Context, m redis.XMessage, handle func(ctx context.Context, msg Message) error) {
	// Ack regardless of outcome: retries are re-added as fresh entries with
	// a bumped attempt counter, never redelivered from the pending list.
	defer b.client.XAck(ctx, b.opts.Stream, b.opts.Group, m.ID)

	payload, ok := m.Values["payload"].(string)
	if !ok {
		b.logger.Error("stream entry without payload", zap.String("entry_id", m.ID))
		return
	}
	attempt := parseAttempt(m.Values["attempt"])

	if err := handle(ctx, Message{Payload: []byte(payload), Attempt: attempt}); err != nil {
		if attempt+1 >= b.opts.MaxAttempts {
			b.logger.Error("job exhausted its attempts",
				zap.String("entry_id", m.ID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			b.replyFailure(ctx, []byte(payload))
			return
		}
		backoff := b.opts.BackoffBase << attempt
		b.logger.Warn("rescheduling job",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		time.AfterFunc(backoff, func() {
			if err := b.add(context.Background(), []byte(payload), attempt+1); err != nil {
				b.logger.Error("requeue failed", zap.Error(err))
			}
		})
	}
}

// replyFailure tells the awaiting caller the job is gone for good, instead
// of leaving it to run out its timeout. Best effort: when the handler failed
// because Redis itself is unreachable, this push fails the same way.
func (b *RedisBroker) replyFailure(ctx context.Context, payload []byte) {
	var job struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &job); err != nil || job.ID == "" {
		return
	}
	out, err := json.Marshal(Result{JobID: job.ID, Error: codeWorkerFailure})
	if err != nil {
		return
	}
	if err := b.Reply(ctx, job.ID, out); err != nil {
		b.logger.Warn("failure reply not delivered",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}
}

func parseAttempt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case string:
		n, _ := strconv.Atoi(t)
		return n
	default:
		return 0
	}
}
