package notifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const cursorKeyPrefix = "registrar:notifier:cursor:"

// RedisCursors persists consumer cursors in Redis. Cursors carry no TTL: a
// stale cursor only causes redelivery, never loss.
type RedisCursors struct {
	client *redis.Client
}

func NewRedisCursors(client *redis.Client) *RedisCursors {
	return &RedisCursors{client: client}
}

func (c *RedisCursors) Load(ctx context.Context, consumer string) (int64, error) {
	val, err := c.client.Get(ctx, cursorKeyPrefix+consumer).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	cursor, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cursor %q: %w", val, err)
	}
	return cursor, nil
}

func (c *RedisCursors) Save(ctx context.Context, consumer string, cursor int64) error {
	if err := c.client.Set(ctx, cursorKeyPrefix+consumer, strconv.FormatInt(cursor, 10), 0).Err(); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}
