package activity

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "payflow:activity"

// RedisRecorder writes payment events into per-contact sorted sets scored by
// event time, so feed consumers can range-read chronologically.
type RedisRecorder struct {
	client redis.UniversalClient
}

// NewRedisRecorder creates a recorder on an existing redis client.
func NewRedisRecorder(client redis.UniversalClient) *RedisRecorder {
	return &RedisRecorder{client: client}
}

// RecordPaymentEvent appends the event to the owner+contact feed.
func (r *RedisRecorder) RecordPaymentEvent(ctx context.Context, event PaymentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal payment event: %w", err)
	}

	key := fmt.Sprintf("%s:%s:%s", keyPrefix, event.Owner, event.ContactID)

	err = r.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(event.Time.UnixNano()),
		Member: payload,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to record payment event: %w", err)
	}

	return nil
}
