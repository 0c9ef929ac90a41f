// Package idempotency records which deliveries have already been handled so
// that redelivered webhooks and Kafka messages can short-circuit. It is an
// optimization only: every write behind it is itself idempotent.
//
// A claim starts as a short processing lease. Only Complete turns it into a
// long-lived marker, so a delivery that dies mid-flight is picked up again
// once its lease expires.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	markerProcessing = "processing"
	markerDone       = "done"
)

type ClaimState int

const (
	// Claimed means the caller holds the lease and should do the work.
	Claimed ClaimState = iota
	// InFlight means another delivery holds an unexpired lease.
	InFlight
	// Done means the work already finished.
	Done
)

func (s ClaimState) String() string {
	switch s {
	case Claimed:
		return "claimed"
	case InFlight:
		return "in_flight"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

type Store struct {
	rdb   redis.Cmdable
	lease time.Duration
	ttl   time.Duration
}

// NewStore returns a store whose claims hold for lease while in progress and
// for ttl once completed.
func NewStore(rdb redis.Cmdable, lease, ttl time.Duration) *Store {
	return &Store{rdb: rdb, lease: lease, ttl: ttl}
}

func (s *Store) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%d:%d", topic, partition, offset)
}

func (s *Store) WebhookKey(eventID string) string {
	return "idem:webhook:" + eventID
}

func (s *Store) Claim(ctx context.Context, key string) (ClaimState, error) {
	for range 2 {
		ok, err := s.rdb.SetNX(ctx, key, markerProcessing, s.lease).Result()
		if err != nil {
			return Claimed, err
		}
		if ok {
			return Claimed, nil
		}
		v, err := s.rdb.Get(ctx, key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			// lease expired between SETNX and GET
			continue
		case err != nil:
			return Claimed, err
		case v == markerDone:
			return Done, nil
		default:
			return InFlight, nil
		}
	}
	return InFlight, nil
}

// Complete replaces the processing lease with a marker kept for the full TTL.
func (s *Store) Complete(ctx context.Context, key string) error {
	return s.rdb.Set(ctx, key, markerDone, s.ttl).Err()
}

// Release drops a claim so the next delivery is processed again. Call it when
// handling failed after a successful Claim.
func (s *Store) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
