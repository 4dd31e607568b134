package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"SpinTrack/internal/domain/models"
	domrepo "SpinTrack/internal/domain/repository"
	"SpinTrack/internal/services/strategy"
	pkgkafka "SpinTrack/pkg/kafka"
	"SpinTrack/pkg/logger"
	"SpinTrack/pkg/util"
)

// ingestMessage is {number, source, ts}. ts may be RFC3339, unix seconds or
// unix milliseconds, as a string or a number.
type ingestMessage struct {
	Number *int            `json:"number"`
	Source string          `json:"source"`
	TS     json.RawMessage `json:"ts"`
}

func (m ingestMessage) timestamp() (time.Time, bool) {
	if len(m.TS) == 0 {
		return time.Time{}, false
	}
	var s string
	if err := json.Unmarshal(m.TS, &s); err != nil {
		var n int64
		if err := json.Unmarshal(m.TS, &n); err != nil {
			return time.Time{}, false
		}
		s = strconv.FormatInt(n, 10)
	}
	return util.ParseTime(s)
}

// KafkaIngestHandler feeds spins from the ingest topic into the tracker.
type KafkaIngestHandler struct {
	topic   string
	tracker *Tracker
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewKafkaIngestHandler(topic string, tracker *Tracker, metrics domrepo.Metrics, log *logger.Logger) *KafkaIngestHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &KafkaIngestHandler{topic: topic, tracker: tracker, metrics: metrics, log: log}
}

func (h *KafkaIngestHandler) Topic() string { return h.topic }

// Handle observes one spin. Malformed JSON is returned as an error so the
// consumer dead-letters it; an out of range number is dropped.
func (h *KafkaIngestHandler) Handle(ctx context.Context, b []byte) error {
	var m ingestMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("ingest_unmarshal")
		return fmt.Errorf("decode ingest message: %w", err)
	}
	if m.Number == nil {
		h.metrics.RecordError("ingest_invalid")
		return fmt.Errorf("ingest message without number")
	}
	if ts, ok := m.timestamp(); ok {
		h.metrics.RecordLatency("ingest_e2e", time.Since(ts).Seconds())
	}
	source := m.Source
	if source == "" {
		source = models.SourceKafka
	}
	if _, err := h.tracker.Observe(ctx, *m.Number, source); err != nil {
		if errors.Is(err, strategy.ErrInvalidNumber) {
			h.log.Warn("dropping ingest spin", logger.Int("number", *m.Number), logger.String("source", source))
			return nil
		}
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaIngestHandler)(nil)

// KafkaArchiveHandler writes recorded spins from the spins topic to storage.
type KafkaArchiveHandler struct {
	topic   string
	storage domrepo.SpinStorage
	metrics domrepo.Metrics
}

func NewKafkaArchiveHandler(topic string, storage domrepo.SpinStorage, metrics domrepo.Metrics) *KafkaArchiveHandler {
	return &KafkaArchiveHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaArchiveHandler) Topic() string { return h.topic }

func (h *KafkaArchiveHandler) Handle(ctx context.Context, b []byte) error {
	var s models.Spin
	if err := json.Unmarshal(b, &s); err != nil {
		h.metrics.RecordError("archive_unmarshal")
		return fmt.Errorf("decode spin: %w", err)
	}
	if !models.ValidNumber(s.Number) {
		h.metrics.RecordError("archive_invalid")
		return fmt.Errorf("spin number %d out of range", s.Number)
	}
	if !s.ObservedAt.IsZero() {
		h.metrics.RecordLatency("archive_e2e", time.Since(s.ObservedAt).Seconds())
	}
	start := time.Now()
	err := h.storage.Store(ctx, &s)
	h.metrics.RecordLatency("ch_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("archive_store")
		return err
	}
	h.metrics.RecordArchived("clickhouse", 1)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaArchiveHandler)(nil)
