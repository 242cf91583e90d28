package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/facilitator-activity-tracker/internal/models"
)

const minReserveTimeout = time.Second

// ErrEmpty is returned by Reserve when no job became ready before the timeout.
var ErrEmpty = errors.New("queue: no job ready")

// promoteScript moves due delayed jobs onto the ready list atomically.
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, raw in ipairs(due) do
  redis.call('ZREM', KEYS[1], raw)
  redis.call('LPUSH', KEYS[2], raw)
end
return #due
`)

// Delivery is a reserved job. Raw is the exact stored encoding used to ack it.
type Delivery struct {
	Job models.NotificationJob
	raw string
}

// Stats reports the size of every queue list.
type Stats struct {
	Ready      int64 `json:"ready"`
	Processing int64 `json:"processing"`
	Delayed    int64 `json:"delayed"`
	Dead       int64 `json:"dead"`
}

// RedisQueue is a reliable job queue on Redis lists. Reserved jobs stay in a
// processing list until acknowledged so a crashed consumer loses nothing.
type RedisQueue struct {
	client     redis.UniversalClient
	ready      string
	processing string
	delayed    string
	dead       string
	delivered  string
	now        func() time.Time
}

// NewRedisQueue builds a queue whose keys share prefix.
func NewRedisQueue(client redis.UniversalClient, prefix string) *RedisQueue {
	return &RedisQueue{
		client:     client,
		ready:      prefix + ":ready",
		processing: prefix + ":processing",
		delayed:    prefix + ":delayed",
		dead:       prefix + ":dead",
		delivered:  prefix + ":delivered:",
		now:        time.Now,
	}
}

// Enqueue appends job to the ready list.
func (q *RedisQueue) Enqueue(ctx context.Context, job models.NotificationJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}
	if err := q.client.LPush(ctx, q.ready, raw).Err(); err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// Reserve blocks up to timeout for the next ready job and moves it to the
// processing list.
func (q *RedisQueue) Reserve(ctx context.Context, timeout time.Duration) (Delivery, error) {
	if timeout < minReserveTimeout {
		timeout = minReserveTimeout
	}

	raw, err := q.client.BRPopLPush(ctx, q.ready, q.processing, timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Delivery{}, ErrEmpty
		}
		return Delivery{}, err
	}

	var job models.NotificationJob
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		_ = q.client.LRem(ctx, q.processing, 1, raw).Err()
		encoded, _ := json.Marshal(raw)
		if dlErr := q.pushDead(ctx, models.DeadLetter{
			Job:      models.NotificationJob{Payload: encoded},
			Error:    fmt.Sprintf("decode job: %v", err),
			FailedAt: q.now().UTC(),
		}); dlErr != nil {
			return Delivery{}, dlErr
		}
		return Delivery{}, fmt.Errorf("decode job: %w", err)
	}

	return Delivery{Job: job, raw: raw}, nil
}

// Ack removes a finished delivery from the processing list.
func (q *RedisQueue) Ack(ctx context.Context, d Delivery) error {
	return q.client.LRem(ctx, q.processing, 1, d.raw).Err()
}

// Retry acknowledges d and schedules job to become ready again at readyAt.
func (q *RedisQueue) Retry(ctx context.Context, d Delivery, job models.NotificationJob, readyAt time.Time) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job %s: %w", job.ID, err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, q.delayed, redis.Z{Score: float64(readyAt.UnixMilli()), Member: string(raw)})
		pipe.LRem(ctx, q.processing, 1, d.raw)
		return nil
	})
	return err
}

// DeadLetter acknowledges d and records it in the dead-letter list.
func (q *RedisQueue) DeadLetter(ctx context.Context, d Delivery, job models.NotificationJob, cause error) error {
	letter := models.DeadLetter{Job: job, FailedAt: q.now().UTC()}
	if cause != nil {
		letter.Error = cause.Error()
	}

	raw, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("encode dead letter %s: %w", job.ID, err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, q.dead, raw)
		pipe.LRem(ctx, q.processing, 1, d.raw)
		return nil
	})
	return err
}

// PromoteDue moves up to limit delayed jobs whose retry time has passed.
func (q *RedisQueue) PromoteDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	moved, err := promoteScript.Run(ctx, q.client, []string{q.delayed, q.ready}, q.now().UnixMilli(), limit).Int()
	if err != nil {
		return 0, fmt.Errorf("promote delayed jobs: %w", err)
	}
	return moved, nil
}

// Recover returns every job left in the processing list to the ready list.
func (q *RedisQueue) Recover(ctx context.Context) (int, error) {
	recovered := 0
	for {
		err := q.client.RPopLPush(ctx, q.processing, q.ready).Err()
		if errors.Is(err, redis.Nil) {
			return recovered, nil
		}
		if err != nil {
			return recovered, fmt.Errorf("recover processing jobs: %w", err)
		}
		recovered++
	}
}

// MarkDelivered records that job was delivered. It reports false when the
// marker already existed.
func (q *RedisQueue) MarkDelivered(ctx context.Context, jobID string, ttl time.Duration) (bool, error) {
	return q.client.SetNX(ctx, q.delivered+jobID, q.now().UTC().Format(time.RFC3339), ttl).Result()
}

// Delivered reports whether job was already delivered.
func (q *RedisQueue) Delivered(ctx context.Context, jobID string) (bool, error) {
	n, err := q.client.Exists(ctx, q.delivered+jobID).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Stats returns the current queue depths.
func (q *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.client.Pipeline()
	ready := pipe.LLen(ctx, q.ready)
	processing := pipe.LLen(ctx, q.processing)
	delayed := pipe.ZCard(ctx, q.delayed)
	dead := pipe.LLen(ctx, q.dead)
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, err
	}

	return Stats{
		Ready:      ready.Val(),
		Processing: processing.Val(),
		Delayed:    delayed.Val(),
		Dead:       dead.Val(),
	}, nil
}

// DeadLetters returns up to limit dead-lettered jobs, newest first.
func (q *RedisQueue) DeadLetters(ctx context.Context, limit int64) ([]models.DeadLetter, error) {
	if limit <= 0 {
		limit = 50
	}
	raws, err := q.client.LRange(ctx, q.dead, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}

	letters := make([]models.DeadLetter, 0, len(raws))
	for _, raw := range raws {
		var letter models.DeadLetter
		if err := json.Unmarshal([]byte(raw), &letter); err != nil {
			return nil, fmt.Errorf("decode dead letter: %w", err)
		}
		letters = append(letters, letter)
	}
	return letters, nil
}

func (q *RedisQueue) pushDead(ctx context.Context, letter models.DeadLetter) error {
	raw, err := json.Marshal(letter)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.dead, raw).Err()
}
