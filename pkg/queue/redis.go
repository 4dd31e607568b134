package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"SpinTrack/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// RedisQueue keeps messages in a Redis list, retries in a sorted set scored
// by due time and exhausted messages in a dead letter list.
type RedisQueue struct {
	*registry
	log    *logger.Logger
	cfg    QueueConfig
	client *redis.Client
	prefix string

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets the key prefix, default "spintrack:queue".
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.prefix = prefix
		}
	}
}

// NewRedisQueue creates a queue on client. Nothing runs until Start.
func NewRedisQueue(log *logger.Logger, cfg QueueConfig, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	cfg.normalize()
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.String("component", "redis_queue"))
	q := &RedisQueue{
		registry: newRegistry(log),
		log:      log,
		cfg:      cfg,
		client:   client,
		prefix:   "spintrack:queue",
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// RegisterJob binds job to its message type.
func (q *RedisQueue) RegisterJob(job Job) { q.register(job) }

// Start pings Redis and launches the workers and the retry mover.
func (q *RedisQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return fmt.Errorf("queue already running")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.running = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(i)
	}
	q.wg.Add(1)
	go q.retryMover()
	q.log.Info("redis queue started",
		logger.Int("workers", q.cfg.Workers),
		logger.String("addr", q.client.Options().Addr),
		logger.String("prefix", q.prefix),
	)
	return nil
}

// Stop cancels the workers and waits for them until ctx expires.
func (q *RedisQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for queue workers: %w", ctx.Err())
	case <-done:
		q.log.Info("redis queue stopped")
		return nil
	}
}

// Enqueue pushes a message for msgType.
func (q *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	if _, ok := q.lookup(msgType); !ok {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}
	msg, err := newMessage(msgType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := q.client.LPush(ctx, q.queueKey(), data).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

// DeadLetters returns up to n exhausted messages, newest first.
func (q *RedisQueue) DeadLetters(ctx context.Context, n int64) ([]Message, error) {
	raw, err := q.client.LRange(ctx, q.deadLetterKey(), 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Message, 0, len(raw))
	for _, r := range raw {
		var m Message
		if err := json.Unmarshal([]byte(r), &m); err == nil {
			out = append(out, m)
		}
	}
	return out, nil
}

func (q *RedisQueue) worker(id int) {
	defer q.wg.Done()
	for q.ctx.Err() == nil {
		res, err := q.client.BRPop(q.ctx, time.Second, q.queueKey()).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || q.ctx.Err() != nil {
				continue
			}
			q.log.Error("brpop", logger.Int("worker_id", id), logger.Error(err))
			select {
			case <-time.After(time.Second):
			case <-q.ctx.Done():
			}
			continue
		}
		if len(res) < 2 {
			continue
		}
		var msg Message
		if err := json.Unmarshal([]byte(res[1]), &msg); err != nil {
			q.log.Error("unmarshal message", logger.Error(err))
			continue
		}
		q.process(msg)
	}
}

func (q *RedisQueue) process(msg Message) {
	retry, err := q.run(q.ctx, msg, q.cfg.RetryLimit)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	msg.Attempts++
	data, merr := json.Marshal(msg)
	if merr != nil {
		q.log.Error("marshal message", logger.Error(merr))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if retry {
		due := time.Now().Add(q.cfg.RetryDelay)
		if err := q.client.ZAdd(ctx, q.retryKey(), redis.Z{Score: float64(due.Unix()), Member: data}).Err(); err != nil {
			q.log.Error("zadd retry", logger.Error(err))
		}
		return
	}
	q.log.Error("max retries reached", logger.String("id", msg.ID), logger.String("type", msg.Type))
	if err := q.client.LPush(ctx, q.deadLetterKey(), data).Err(); err != nil {
		q.log.Error("lpush dlq", logger.Error(err))
	}
}

func (q *RedisQueue) retryMover() {
	defer q.wg.Done()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-ticker.C:
			q.moveDueRetries()
		}
	}
}

func (q *RedisQueue) moveDueRetries() {
	due, err := q.client.ZRangeByScore(q.ctx, q.retryKey(), &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		if q.ctx.Err() == nil {
			q.log.Error("fetch retries", logger.Error(err))
		}
		return
	}
	for _, member := range due {
		// ZRem wins only once across instances, so a retry is moved once.
		removed, err := q.client.ZRem(q.ctx, q.retryKey(), member).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := q.client.LPush(q.ctx, q.queueKey(), member).Err(); err != nil {
			q.log.Error("requeue retry", logger.Error(err))
		}
	}
}

func (q *RedisQueue) queueKey() string      { return q.prefix + ":messages" }
func (q *RedisQueue) retryKey() string      { return q.prefix + ":retry" }
func (q *RedisQueue) deadLetterKey() string { return q.prefix + ":dlq" }
