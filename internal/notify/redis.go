package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// streamMaxLen caps the notification stream; consumers are expected to keep up.
const streamMaxLen = 10000

// RedisDispatcher appends notifications to a Redis stream that the email
// worker consumes.
type RedisDispatcher struct {
	client *redis.Client
	stream string
}

func NewRedisDispatcher(client *redis.Client, stream string) *RedisDispatcher {
	return &RedisDispatcher{client: client, stream: stream}
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return &DispatchError{Backend: "redis", Err: fmt.Errorf("failed to marshal notification: %w", err)}
	}

	err = d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{
			"subject": n.Subject(),
			"payload": data,
		},
	}).Err()
	if err != nil {
		return &DispatchError{Backend: "redis", Err: err}
	}
	return nil
}
