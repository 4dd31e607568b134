package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"SpinTrack/pkg/logger"

	"github.com/google/uuid"
)

// Queue accepts messages for registered jobs and runs them on workers.
type Queue interface {
	RegisterJob(job Job)
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
	Start() error
	Stop(ctx context.Context) error
}

// QueueConfig contains the configuration for the queue.
type QueueConfig struct {
	Workers    int           // number of workers
	QueueSize  int           // buffered messages, memory queue only
	RetryLimit int           // retries after the first attempt
	RetryDelay time.Duration // delay before a retry
}

func (c *QueueConfig) normalize() {
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 10 * time.Second
	}
}

// Message is the stored envelope.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Timestamp time.Time       `json:"timestamp"`
}

func newMessage(msgType string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("marshal payload: %w", err)
	}
	return Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		Payload:   raw,
		Timestamp: time.Now(),
	}, nil
}

// ParsePayload decodes a job payload into T.
func ParsePayload[T any](payload interface{}) (*T, error) {
	var result T
	var raw []byte
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case json.RawMessage:
		raw = p
	case []byte:
		raw = p
	case map[string]interface{}, []interface{}:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("re-encode payload: %w", err)
		}
		raw = b
	default:
		return nil, fmt.Errorf("invalid payload type: %T", payload)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &result, nil
}

// registry is shared by both queue implementations.
type registry struct {
	mu   sync.RWMutex
	jobs map[string]Job
	log  *logger.Logger
}

func newRegistry(log *logger.Logger) *registry {
	if log == nil {
		log = logger.Nop()
	}
	return &registry{jobs: make(map[string]Job), log: log}
}

func (r *registry) register(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.Type()]; ok {
		r.log.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.log.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

func (r *registry) lookup(msgType string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[msgType]
	return job, ok
}

// run executes the job for msg and reports whether it should be retried.
func (r *registry) run(ctx context.Context, msg Message, retryLimit int) (retry bool, err error) {
	job, ok := r.lookup(msg.Type)
	if !ok {
		return false, fmt.Errorf("no job registered for type: %s", msg.Type)
	}
	start := time.Now()
	err = safeHandle(ctx, job, msg.Payload)
	if err == nil {
		return false, nil
	}
	r.log.Warn("job failed",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts+1),
		logger.Duration("elapsed_ms", time.Since(start)),
		logger.Error(err),
	)
	return msg.Attempts < retryLimit && ctx.Err() == nil, err
}

func safeHandle(ctx context.Context, job Job, payload json.RawMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job %s panic: %v", job.Name(), rec)
		}
	}()
	return job.Handle(ctx, payload)
}
