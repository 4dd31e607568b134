package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SpinTrack/internal/handler/ws"
	mid "SpinTrack/internal/middleware"
	"SpinTrack/internal/usecase"
	"SpinTrack/pkg/config"
	xhttp "SpinTrack/pkg/http"
	pkgkafka "SpinTrack/pkg/kafka"
	applogger "SpinTrack/pkg/logger"
	"SpinTrack/pkg/queue"
)

type namedCloser struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle. Optional components
// are nil when their feature is disabled.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	tracker    *usecase.Tracker
	httpServer *xhttp.Server

	collector *usecase.SpinCollector
	consumer  *pkgkafka.Consumer
	queue     queue.Queue
	pipeline  *mid.ArchivePipeline
	hub       *ws.Hub
	closers   []namedCloser
}

// Option attaches an optional component to App.
type Option func(*App)

func WithCollector(c *usecase.SpinCollector) Option {
	return func(a *App) { a.collector = c }
}

func WithConsumer(c *pkgkafka.Consumer) Option {
	return func(a *App) { a.consumer = c }
}

func WithQueue(q queue.Queue) Option {
	return func(a *App) { a.queue = q }
}

func WithPipeline(p *mid.ArchivePipeline) Option {
	return func(a *App) { a.pipeline = p }
}

func WithHub(h *ws.Hub) Option {
	return func(a *App) { a.hub = h }
}

// WithCloser closes c after every component has stopped. Closers run in
// reverse registration order.
func WithCloser(name string, c io.Closer) Option {
	return func(a *App) {
		if c != nil {
			a.closers = append(a.closers, namedCloser{name: name, c: c})
		}
	}
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, tracker *usecase.Tracker, httpServer *xhttp.Server, opts ...Option) *App {
	if log == nil {
		log = applogger.Nop()
	}
	a := &App{cfg: cfg, log: log, tracker: tracker, httpServer: httpServer}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until interrupted or the HTTP
// server fails.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext is Run with an explicit lifetime.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.tracker.Restore(ctx); err != nil {
		a.log.Error("snapshot restore failed", applogger.Error(err))
		return err
	}
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return fmt.Errorf("start queue: %w", err)
		}
	}
	if a.pipeline != nil {
		a.pipeline.Start(runCtx)
	}
	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
		}
	}
	if a.collector != nil {
		if err := a.collector.Start(runCtx); err != nil {
			// The API keeps serving without the live feed.
			a.log.Error("feed unavailable", applogger.Error(err))
			a.collector = nil
		} else {
			a.log.Info("feed collector started", applogger.String("url", a.cfg.Feed.URL))
		}
	}
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("spintrack started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("snapshot", a.cfg.Snapshot.Backend),
		applogger.String("archive", a.cfg.Archive.Backend),
	)

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case runErr = <-a.httpServer.Errors():
		a.log.Error("http server failed", applogger.Error(runErr))
	}
	cancel()
	if err := a.shutdown(); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// shutdown stops the inputs first, then drains the outputs, then closes
// the infrastructure clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	start := time.Now()
	a.log.Info("shutting down...")

	var firstErr error
	keep := func(name string, err error) {
		if err == nil {
			return
		}
		a.log.Warn(name+" stop error", applogger.Error(err))
		if firstErr == nil {
			firstErr = err
		}
	}

	keep("http", a.httpServer.Stop(ctx))
	if a.collector != nil {
		keep("collector", a.collector.Shutdown(ctx))
	}
	if a.consumer != nil {
		keep("kafka consumer", a.consumer.Stop(ctx))
	}
	if a.pipeline != nil {
		a.pipeline.Stop()
	}
	if a.queue != nil {
		keep("queue", a.queue.Stop(ctx))
	}
	if a.hub != nil {
		keep("websocket hub", a.hub.Close())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		keep(a.closers[i].name, a.closers[i].c.Close())
	}

	a.log.Info("shutdown complete", applogger.Duration("took", time.Since(start)))
	return firstErr
}
