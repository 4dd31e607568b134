// Package notify delivers alert events to an HTTP webhook through a job
// queue.
package notify

import (
	"context"
	"errors"
	"fmt"

	"SpinTrack/internal/domain/models"
	drepo "SpinTrack/internal/domain/repository"
	xhttp "SpinTrack/pkg/http"
	"SpinTrack/pkg/logger"
	"SpinTrack/pkg/queue"
)

// JobType is the queue message type of webhook deliveries.
const JobType = "alert.webhook"

// Poster sends one JSON body.
type Poster interface {
	PostJSON(ctx context.Context, url string, body interface{}, headers map[string]string) error
}

// Webhook posts alert events to a fixed url.
type Webhook struct {
	poster Poster
	url    string
}

func NewWebhook(poster Poster, url string) *Webhook {
	return &Webhook{poster: poster, url: url}
}

type webhookBody struct {
	Event string            `json:"event"`
	Alert models.AlertEvent `json:"alert"`
}

// Deliver makes one delivery attempt.
func (w *Webhook) Deliver(ctx context.Context, ev models.AlertEvent) error {
	err := w.poster.PostJSON(ctx, w.url, webhookBody{Event: "strategy.alert", Alert: ev}, map[string]string{
		"X-SpinTrack-Event": string(ev.Kind),
	})
	if err != nil {
		return fmt.Errorf("webhook %s: %w", ev.ID, err)
	}
	return nil
}

// AlertJob runs webhook deliveries from the queue.
type AlertJob struct {
	hook *Webhook
	log  *logger.Logger
}

func NewAlertJob(hook *Webhook, log *logger.Logger) *AlertJob {
	if log == nil {
		log = logger.Nop()
	}
	return &AlertJob{hook: hook, log: log}
}

var _ queue.Job = (*AlertJob)(nil)

func (j *AlertJob) Name() string { return "webhook_alert" }

func (j *AlertJob) Type() string { return JobType }

// Handle delivers the event. Client errors other than 429 are not retried.
func (j *AlertJob) Handle(ctx context.Context, payload interface{}) error {
	ev, err := queue.ParsePayload[models.AlertEvent](payload)
	if err != nil {
		return err
	}
	err = j.hook.Deliver(ctx, *ev)
	var se *xhttp.StatusError
	if errors.As(err, &se) && !se.Temporary() {
		j.log.Warn("webhook rejected alert",
			logger.String("alert_id", ev.ID),
			logger.Int("status", se.Code),
		)
		return nil
	}
	return err
}

// QueuedPublisher hands alerts to the queue instead of posting inline.
type QueuedPublisher struct {
	q queue.Queue
}

func NewQueuedPublisher(q queue.Queue) *QueuedPublisher {
	return &QueuedPublisher{q: q}
}

var _ drepo.AlertPublisher = (*QueuedPublisher)(nil)

func (p *QueuedPublisher) PublishAlert(ctx context.Context, ev models.AlertEvent) error {
	return p.q.Enqueue(ctx, JobType, ev)
}
