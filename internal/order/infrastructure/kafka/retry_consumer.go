package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/galleria/storefront/internal/order/application"
	"github.com/galleria/storefront/internal/order/domain"
	"github.com/galleria/storefront/pkg/idempotency"
	"github.com/galleria/storefront/pkg/outbox"
	"github.com/galleria/storefront/pkg/tracing"
)

type RetryHandler interface {
	Handle(ctx context.Context, req domain.ReconcileRetry) error
}

type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Claim(ctx context.Context, key string) (idempotency.ClaimState, error)
	Complete(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RetryConsumer reads ReconcileRetry events from the outbox topic. Other event
// types on the topic are committed and skipped.
type RetryConsumer struct {
	log     *slog.Logger
	reader  MessageReader
	handler RetryHandler
	idem    Deduper
	tracer  trace.Tracer
	now     func() time.Time
	// claimWait is the pause between claim attempts while another
	// consumer's lease on the same offset is still live.
	claimWait time.Duration
}

func NewRetryConsumer(log *slog.Logger, brokers []string, topic, group string, handler RetryHandler, idem *idempotency.Store) *RetryConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return newRetryConsumer(log, r, handler, idem)
}

func newRetryConsumer(log *slog.Logger, reader MessageReader, handler RetryHandler, idem Deduper) *RetryConsumer {
	return &RetryConsumer{
		log:       log,
		reader:    reader,
		handler:   handler,
		idem:      idem,
		tracer:    otel.Tracer("reconcile-worker"),
		now:       time.Now,
		claimWait: time.Second,
	}
}

func (c *RetryConsumer) Run(ctx context.Context) error {
	defer c.reader.Close()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.process(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "offset", msg.Offset, "err", err)
		}
	}
}

// process returns an error only when ctx is done.
func (c *RetryConsumer) process(ctx context.Context, msg kafka.Message) error {
	if tracing.HeaderValue(msg.Headers, outbox.EventTypeHeader) != domain.EventReconcileRetry {
		return nil
	}

	var req domain.ReconcileRetry
	if err := json.Unmarshal(msg.Value, &req); err != nil || req.SessionID == "" {
		c.log.Error("unmarshal retry failed", "offset", msg.Offset, "err", err)
		return nil
	}

	if wait := msg.Time.Add(application.Backoff(req.Attempt)).Sub(c.now()); wait > 0 && !msg.Time.IsZero() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
	claimed, err := c.claim(ctx, key)
	if err != nil {
		return err
	}
	if !claimed {
		c.log.Info("duplicate message skipped", "key", key)
		return nil
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeReconcileRetry")
	span.SetAttributes(attribute.String("checkout.session_id", req.SessionID), attribute.Int("retry.attempt", req.Attempt))
	defer span.End()

	if err := c.handler.Handle(msgCtx, req); err != nil {
		span.RecordError(err)
		c.log.Error("reconcile retry failed", "session_id", req.SessionID, "attempt", req.Attempt, "err", err)
		if rerr := c.idem.Release(context.WithoutCancel(ctx), key); rerr != nil {
			c.log.Warn("release claim", "key", key, "err", rerr)
		}
		return nil
	}
	if err := c.idem.Complete(context.WithoutCancel(ctx), key); err != nil {
		c.log.Warn("complete claim", "key", key, "err", err)
	}
	c.log.Info("reconcile retry processed", "session_id", req.SessionID, "attempt", req.Attempt)
	return nil
}

// claim reports whether this consumer should handle the message. A live lease
// from an earlier owner of the partition is waited out, not skipped.
func (c *RetryConsumer) claim(ctx context.Context, key string) (bool, error) {
	for {
		state, err := c.idem.Claim(ctx, key)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			c.log.Warn("idempotency check failed, processing anyway", "key", key, "err", err)
			return true, nil
		}
		switch state {
		case idempotency.Claimed:
			return true, nil
		case idempotency.Done:
			return false, nil
		}
		c.log.Info("message claimed elsewhere, waiting for lease", "key", key)
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(c.claimWait):
		}
	}
}
