package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testPayload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type funcJob struct {
	typ string
	fn  func(ctx context.Context, payload interface{}) error
}

func (j funcJob) Name() string { return j.typ + "_job" }
func (j funcJob) Type() string { return j.typ }
func (j funcJob) Handle(ctx context.Context, payload interface{}) error {
	return j.fn(ctx, payload)
}

func TestParsePayload(t *testing.T) {
	raw := json.RawMessage(`{"name":"a","count":2}`)
	p, err := ParsePayload[testPayload](raw)
	if err != nil || p.Name != "a" || p.Count != 2 {
		t.Fatalf("raw: %+v %v", p, err)
	}
	p, err = ParsePayload[testPayload](map[string]interface{}{"name": "b", "count": 3})
	if err != nil || p.Name != "b" || p.Count != 3 {
		t.Fatalf("map: %+v %v", p, err)
	}
	p, err = ParsePayload[testPayload](testPayload{Name: "c"})
	if err != nil || p.Name != "c" {
		t.Fatalf("value: %+v %v", p, err)
	}
	if _, err := ParsePayload[testPayload](42); err == nil {
		t.Fatal("expected error for unsupported payload")
	}
	if _, err := ParsePayload[testPayload]([]byte("{")); err == nil {
		t.Fatal("expected error for malformed json")
	}
}

func TestRegistryRun(t *testing.T) {
	r := newRegistry(nil)
	r.register(funcJob{typ: "ok", fn: func(context.Context, interface{}) error { return nil }})
	r.register(funcJob{typ: "boom", fn: func(context.Context, interface{}) error { panic("boom") }})

	if retry, err := r.run(context.Background(), Message{Type: "ok"}, 3); retry || err != nil {
		t.Fatalf("ok job: retry=%v err=%v", retry, err)
	}
	retry, err := r.run(context.Background(), Message{Type: "boom"}, 1)
	if err == nil || !retry {
		t.Fatalf("panic should be an error and retryable: retry=%v err=%v", retry, err)
	}
	if retry, _ := r.run(context.Background(), Message{Type: "boom", Attempts: 1}, 1); retry {
		t.Fatal("retry limit ignored")
	}
	if _, err := r.run(context.Background(), Message{Type: "missing"}, 1); err == nil {
		t.Fatal("expected error for unregistered type")
	}
}

func TestMemoryQueueDelivers(t *testing.T) {
	q := NewMemoryQueue(nil, QueueConfig{Workers: 2})
	got := make(chan testPayload, 1)
	q.RegisterJob(funcJob{typ: "echo", fn: func(_ context.Context, payload interface{}) error {
		p, err := ParsePayload[testPayload](payload)
		if err != nil {
			return err
		}
		got <- *p
		return nil
	}})
	if err := q.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer q.Stop(context.Background())

	if err := q.Enqueue(context.Background(), "echo", testPayload{Name: "x", Count: 1}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	select {
	case p := <-got:
		if p.Name != "x" || p.Count != 1 {
			t.Fatalf("unexpected payload %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}
}

func TestMemoryQueueRetriesThenDeadLetters(t *testing.T) {
	q := NewMemoryQueue(nil, QueueConfig{Workers: 1, RetryLimit: 2, RetryDelay: time.Millisecond})
	var calls int32
	var wg sync.WaitGroup
	wg.Add(3)
	q.RegisterJob(funcJob{typ: "fail", fn: func(context.Context, interface{}) error {
		atomic.AddInt32(&calls, 1)
		wg.Done()
		return errors.New("nope")
	}})
	if err := q.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer q.Stop(context.Background())

	if err := q.Enqueue(context.Background(), "fail", map[string]string{"a": "b"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for len(q.DeadLetters()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	dead := q.DeadLetters()
	if len(dead) != 1 || dead[0].Attempts != 3 {
		t.Fatalf("unexpected dead letters %+v", dead)
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}
}

func TestMemoryQueueRejectsUnknownType(t *testing.T) {
	q := NewMemoryQueue(nil, QueueConfig{})
	if err := q.Enqueue(context.Background(), "missing", nil); err == nil {
		t.Fatal("expected error")
	}
}

func TestMemoryQueueFull(t *testing.T) {
	q := NewMemoryQueue(nil, QueueConfig{QueueSize: 1})
	q.RegisterJob(funcJob{typ: "noop", fn: func(context.Context, interface{}) error { return nil }})
	if err := q.Enqueue(context.Background(), "noop", 1); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.Enqueue(context.Background(), "noop", 2); err == nil {
		t.Fatal("expected full queue error")
	}
}
