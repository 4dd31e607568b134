package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SpinTrack/pkg/logger"
)

// MemoryQueue runs jobs in process on a buffered channel. Messages are lost
// on restart. Exhausted messages are kept in a bounded dead letter list.
type MemoryQueue struct {
	*registry
	log *logger.Logger
	cfg QueueConfig

	msgs chan Message

	mu      sync.Mutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	dead    []Message
}

const maxMemoryDeadLetters = 100

// NewMemoryQueue creates an in-process queue.
func NewMemoryQueue(log *logger.Logger, cfg QueueConfig) *MemoryQueue {
	cfg.normalize()
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(logger.String("component", "memory_queue"))
	return &MemoryQueue{
		registry: newRegistry(log),
		log:      log,
		cfg:      cfg,
		msgs:     make(chan Message, cfg.QueueSize),
	}
}

// RegisterJob binds job to its message type.
func (q *MemoryQueue) RegisterJob(job Job) { q.register(job) }

// Start launches the workers.
func (q *MemoryQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return fmt.Errorf("queue already running")
	}
	q.ctx, q.cancel = context.WithCancel(context.Background())
	q.running = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	q.log.Info("memory queue started", logger.Int("workers", q.cfg.Workers))
	return nil
}

// Stop cancels the workers. Buffered messages are dropped.
func (q *MemoryQueue) Stop(ctx context.Context) error {
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
		return nil
	}
}

// Enqueue buffers a message. It fails when the buffer is full.
func (q *MemoryQueue) Enqueue(_ context.Context, msgType string, payload interface{}) error {
	if _, ok := q.lookup(msgType); !ok {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}
	msg, err := newMessage(msgType, payload)
	if err != nil {
		return err
	}
	select {
	case q.msgs <- msg:
		return nil
	default:
		return fmt.Errorf("queue full")
	}
}

// DeadLetters returns a copy of the exhausted messages, oldest first.
func (q *MemoryQueue) DeadLetters() []Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Message(nil), q.dead...)
}

func (q *MemoryQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case <-q.ctx.Done():
			return
		case msg := <-q.msgs:
			q.process(msg)
		}
	}
}

func (q *MemoryQueue) process(msg Message) {
	for {
		retry, err := q.run(q.ctx, msg, q.cfg.RetryLimit)
		if err == nil || q.ctx.Err() != nil {
			return
		}
		msg.Attempts++
		if !retry {
			q.mu.Lock()
			q.dead = append(q.dead, msg)
			if len(q.dead) > maxMemoryDeadLetters {
				q.dead = q.dead[len(q.dead)-maxMemoryDeadLetters:]
			}
			q.mu.Unlock()
			q.log.Error("max retries reached", logger.String("id", msg.ID), logger.String("type", msg.Type))
			return
		}
		select {
		case <-time.After(q.cfg.RetryDelay):
		case <-q.ctx.Done():
			return
		}
	}
}
