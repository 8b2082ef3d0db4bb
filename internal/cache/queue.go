package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrQueueEmpty is returned by Pop when nothing arrived before the timeout.
var ErrQueueEmpty = errors.New("cache: queue empty")

// StatsJob asks the stats worker to recompute one customer.
type StatsJob struct {
	CustomerID string
	// EnqueuedAt is zero for messages that carried no timestamp.
	EnqueuedAt time.Time
}

// StatsQueue carries customer ids from order writers to the stats worker.
type StatsQueue interface {
	Enqueue(ctx context.Context, customerIDs ...string) error
	// Pop blocks for at most timeout. ErrQueueEmpty when nothing arrived.
	Pop(ctx context.Context, timeout time.Duration) (StatsJob, error)
	Depth(ctx context.Context) (int64, error)
}

// EncodeQueueMessage formats a queue entry as "customerID:enqueuedAtMillis".
func EncodeQueueMessage(customerID string, enqueuedAtMillis int64) string {
	return customerID + ":" + strconv.FormatInt(enqueuedAtMillis, 10)
}

// DecodeQueueMessage splits on the last colon. A message without a parsable
// timestamp is treated as a bare customer id with timestamp 0.
func DecodeQueueMessage(msg string) (customerID string, enqueuedAtMillis int64) {
	i := strings.LastIndexByte(msg, ':')
	if i < 0 {
		return msg, 0
	}
	ts, err := strconv.ParseInt(msg[i+1:], 10, 64)
	if err != nil {
		return msg, 0
	}
	return msg[:i], ts
}

// Compile-time check to verify that RedisQueue implements StatsQueue.
var _ StatsQueue = (*RedisQueue)(nil)

// RedisQueue is a FIFO list: LPUSH to enqueue, BRPOP to consume.
type RedisQueue struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if client == nil {
		panic("cache: redis client cannot be nil")
	}
	return &RedisQueue{client: client, key: key, now: time.Now}
}

// Enqueue pushes every id in one round trip.
func (q *RedisQueue) Enqueue(ctx context.Context, customerIDs ...string) error {
	if len(customerIDs) == 0 {
		return nil
	}

	ts := q.now().UnixMilli()
	values := make([]any, len(customerIDs))
	for i, id := range customerIDs {
		values[i] = EncodeQueueMessage(id, ts)
	}

	if err := q.client.LPush(ctx, q.key, values...).Err(); err != nil {
		return fmt.Errorf("failed to enqueue stats jobs: %w", err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (StatsJob, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return StatsJob{}, ErrQueueEmpty
		}
		return StatsJob{}, fmt.Errorf("failed to pop stats job: %w", err)
	}

	// BRPOP returns [key, value].
	id, ts := DecodeQueueMessage(res[1])
	job := StatsJob{CustomerID: id}
	if ts > 0 {
		job.EnqueuedAt = time.UnixMilli(ts)
	}
	return job, nil
}

func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return n, nil
}
