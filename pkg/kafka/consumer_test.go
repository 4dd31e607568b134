package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"SpinTrack/pkg/logger"

	"github.com/segmentio/kafka-go"
)

type flakyHandler struct {
	failures int
	calls    int
	panics   bool
}

func (h *flakyHandler) Topic() string { return "spins.ingest" }

func (h *flakyHandler) Handle(_ context.Context, _ []byte) error {
	h.calls++
	if h.panics {
		panic("boom")
	}
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

func newTestConsumer(t *testing.T, opts ...ConsumerOption) *Consumer {
	t.Helper()
	opts = append([]ConsumerOption{
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(2, time.Millisecond, 2*time.Millisecond),
	}, opts...)
	c, err := NewConsumer(logger.Nop(), opts...)
	if err != nil {
		t.Fatalf("new consumer: %v", err)
	}
	return c
}

func TestProcessRetriesUntilSuccess(t *testing.T) {
	c := newTestConsumer(t)
	h := &flakyHandler{failures: 2}
	if err := c.process(h, &message{topic: h.Topic(), km: kafka.Message{Value: []byte("{}")}}); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if h.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", h.calls)
	}
}

func TestProcessGivesUp(t *testing.T) {
	c := newTestConsumer(t)
	h := &flakyHandler{failures: 10}
	errs := 0
	c.SetHook(HookFuncs{Err: func(context.Context, string, kafka.Message, []byte, error) { errs++ }})
	if err := c.process(h, &message{topic: h.Topic()}); err == nil {
		t.Fatalf("expected error")
	}
	if h.calls != 3 || errs != 3 {
		t.Fatalf("expected 3 attempts and 3 error hooks, got %d/%d", h.calls, errs)
	}
}

func TestProcessRecoversPanics(t *testing.T) {
	c := newTestConsumer(t, WithConsumerRetry(0, time.Millisecond, time.Millisecond))
	if err := c.process(&flakyHandler{panics: true}, &message{topic: "spins.ingest"}); err == nil {
		t.Fatalf("expected panic to surface as error")
	}
}

func TestBeforeHookErrorSkipsHandler(t *testing.T) {
	c := newTestConsumer(t)
	h := &flakyHandler{}
	c.SetHook(NewHookChain(
		HookFuncs{Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			return ctx, km, data, &HookError{Code: "ERR_VALIDATION"}
		}},
		nil,
	))
	err := c.process(h, &message{topic: h.Topic()})
	var he *HookError
	if !errors.As(err, &he) || he.Code != "ERR_VALIDATION" || h.calls != 0 {
		t.Fatalf("expected hook error and no calls, got %v calls=%d", err, h.calls)
	}
}

func TestHookChainSurvivesPanics(t *testing.T) {
	chain := NewHookChain(HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("bad hook")
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { panic("bad hook") },
	})
	_, _, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	if !errors.As(err, &he) || he.Code != "ERR_PANIC" {
		t.Fatalf("expected ERR_PANIC, got %v", err)
	}
	chain.AfterHandle(context.Background(), "t", kafka.Message{}, nil, nil)
}

func TestRegisterHandlerKeepsFirst(t *testing.T) {
	c := newTestConsumer(t)
	first := &flakyHandler{}
	c.RegisterHandler(first)
	c.RegisterHandler(&flakyHandler{})
	if c.handlers["spins.ingest"] != first || len(c.Topics()) != 1 {
		t.Fatalf("first registration must win")
	}
}

func TestBackoffBounds(t *testing.T) {
	min, max := 10*time.Millisecond, 80*time.Millisecond
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		if d <= 0 || d > max {
			t.Fatalf("attempt %d: backoff %s out of bounds", attempt, d)
		}
	}
}

func TestNewConsumerRequiresBrokers(t *testing.T) {
	if _, err := NewConsumer(logger.Nop()); err == nil {
		t.Fatalf("expected error without brokers")
	}
}
