package kafka

import (
	"context"
	"fmt"

	"SpinTrack/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// ConsumerHook runs around every handler attempt. BeforeHandle may replace
// the context, message or payload; an error from it skips the handler.
type ConsumerHook interface {
	BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error)
	AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
	OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error)
}

// NoopHook does nothing.
type NoopHook struct{}

func (NoopHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	return ctx, km, data, nil
}

func (NoopHook) AfterHandle(context.Context, string, kafka.Message, []byte, error) {}

func (NoopHook) OnError(context.Context, string, kafka.Message, []byte, error) {}

// HookError classifies a failure raised by a hook, e.g. ERR_VALIDATION.
type HookError struct {
	Code string
	Err  error
}

func (e *HookError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *HookError) Unwrap() error { return e.Err }

// HookFuncs adapts plain functions. Nil functions are no-ops.
type HookFuncs struct {
	Before func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error)
	After  func(context.Context, string, kafka.Message, []byte, error)
	Err    func(context.Context, string, kafka.Message, []byte, error)
}

func (h HookFuncs) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	if h.Before == nil {
		return ctx, km, data, nil
	}
	return h.Before(ctx, topic, km, data)
}

func (h HookFuncs) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	if h.After != nil {
		h.After(ctx, topic, km, data, err)
	}
}

func (h HookFuncs) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	if h.Err != nil {
		h.Err(ctx, topic, km, data, err)
	}
}

// HookChain applies BeforeHandle in order and AfterHandle in reverse. A
// panicking hook is turned into an ERR_PANIC error or swallowed.
type HookChain struct {
	hooks []ConsumerHook
}

// NewHookChain composes hooks. Nil hooks are skipped.
func NewHookChain(hooks ...ConsumerHook) *HookChain {
	out := make([]ConsumerHook, 0, len(hooks))
	for _, h := range hooks {
		if h != nil {
			out = append(out, h)
		}
	}
	return &HookChain{hooks: out}
}

func (c *HookChain) BeforeHandle(ctx context.Context, topic string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	for _, h := range c.hooks {
		nctx, nkm, ndata, err := safeBefore(h, ctx, topic, km, data)
		if err != nil {
			return ctx, km, data, err
		}
		ctx, km, data = nctx, nkm, ndata
	}
	return ctx, km, data, nil
}

func (c *HookChain) AfterHandle(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	for i := len(c.hooks) - 1; i >= 0; i-- {
		h := c.hooks[i]
		recoverHook(func() { h.AfterHandle(ctx, topic, km, data, err) })
	}
}

func (c *HookChain) OnError(ctx context.Context, topic string, km kafka.Message, data []byte, err error) {
	for _, h := range c.hooks {
		recoverHook(func() { h.OnError(ctx, topic, km, data, err) })
	}
}

// LoggingHook logs failed attempts at warn level.
type LoggingHook struct {
	NoopHook
	log *logger.Logger
}

// NewLoggingHook returns a hook writing to log.
func NewLoggingHook(log *logger.Logger) *LoggingHook {
	if log == nil {
		log = logger.Nop()
	}
	return &LoggingHook{log: log}
}

func (h *LoggingHook) OnError(_ context.Context, topic string, km kafka.Message, _ []byte, err error) {
	fields := []logger.Field{
		logger.String("topic", topic),
		logger.Int("partition", km.Partition),
		logger.Int64("offset", km.Offset),
		logger.Error(err),
	}
	if id := ExtractTraceID(km); id != "" {
		fields = append(fields, logger.String("trace_id", id))
	}
	h.log.Warn("kafka handler attempt failed", fields...)
}

// ExtractTraceID returns the trace_id header, if any.
func ExtractTraceID(km kafka.Message) string {
	for _, h := range km.Headers {
		if h.Key == "trace_id" && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return ""
}

func safeBefore(h ConsumerHook, ctx context.Context, topic string, km kafka.Message, data []byte) (nctx context.Context, nkm kafka.Message, ndata []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			nctx, nkm, ndata = ctx, km, data
			err = &HookError{Code: "ERR_PANIC", Err: fmt.Errorf("hook panic: %v", r)}
		}
	}()
	return h.BeforeHandle(ctx, topic, km, data)
}

func recoverHook(fn func()) {
	defer func() { _ = recover() }()
	fn()
}
