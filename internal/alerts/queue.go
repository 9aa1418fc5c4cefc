package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	alertsKey = "alerts"
	queueKey  = "alert_queue"
)

type Queue struct {
	client *redis.Client
}

func NewQueue(redisAddr string) (*Queue, error) {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Queue{client: client}, nil
}

func (q *Queue) Enqueue(ctx context.Context, alert *Alert) error {
	alertJSON, err := alert.ToJSON()
	if err != nil {
		return err
	}

	if err := q.client.HSet(ctx, alertsKey, alert.ID, alertJSON).Err(); err != nil {
		return err
	}

	return q.client.ZAdd(ctx, queueKey, redis.Z{
		Score:  float64(alert.CreatedAt.UnixMilli()),
		Member: alert.ID,
	}).Err()
}

// Dequeue pops the oldest pending alert, or returns nil when the queue is empty.
func (q *Queue) Dequeue(ctx context.Context) (*Alert, error) {
	results, err := q.client.ZRangeByScore(ctx, queueKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   "+inf",
		Count: 1,
	}).Result()
	if err != nil || len(results) == 0 {
		return nil, err
	}

	alertID := results[0]
	q.client.ZRem(ctx, queueKey, alertID)

	alertJSON, err := q.client.HGet(ctx, alertsKey, alertID).Result()
	if err != nil {
		return nil, err
	}
	q.client.HDel(ctx, alertsKey, alertID)

	return AlertFromJSON(alertJSON)
}

// Cooldown reports whether an alert of this kind may fire for the operator,
// and arms the cooldown when it may. One alert per operator and kind per window.
func (q *Queue) Cooldown(ctx context.Context, kind Kind, operatorID int64, window time.Duration) (bool, error) {
	key := fmt.Sprintf("alert_cooldown:%s:%d", kind, operatorID)
	return q.client.SetNX(ctx, key, 1, window).Result()
}

func (q *Queue) Close() error {
	return q.client.Close()
}
