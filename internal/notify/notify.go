// Package notify publishes run-completed events.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	json "github.com/goccy/go-json"
	kafkago "github.com/segmentio/kafka-go"

	"pvinsight/internal/config"
	"pvinsight/internal/infrastructure"
)

// SourceFile identifies one input of a run.
type SourceFile struct {
	Name     string `json:"name"`
	Checksum string `json:"checksum,omitempty"`
}

// RunEvent is emitted once per finished run.
type RunEvent struct {
	RunID       string       `json:"run_id"`
	Tool        string       `json:"tool"`
	Status      string       `json:"status"`
	SourceFiles []SourceFile `json:"source_files"`
	Outputs     []string     `json:"outputs"`
	Alert       bool         `json:"alert"`
	Error       string       `json:"error,omitempty"`
	FinishedAt  time.Time    `json:"finished_at"`
}

// messageWriter is the part of kafka-go's Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher produces run events to a Kafka topic.
type KafkaPublisher struct {
	writer  messageWriter
	topic   string
	logger  *slog.Logger
	metrics *infrastructure.BusinessMetrics
}

// NewKafkaPublisher creates a producer for the configured topic.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return newKafkaPublisher(w, cfg.Topic, logger, metrics)
}

func newKafkaPublisher(w messageWriter, topic string, logger *slog.Logger, metrics *infrastructure.BusinessMetrics) *KafkaPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		writer:  w,
		topic:   topic,
		logger:  infrastructure.WithComponent(logger, "notify"),
		metrics: metrics,
	}
}

// PublishRun writes one event keyed by run id.
func (p *KafkaPublisher) PublishRun(ctx context.Context, event RunEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, msg)
	p.metrics.RecordEvent(ctx, p.topic, err == nil)
	if err != nil {
		p.logger.WarnContext(ctx, "run event not published",
			slog.String("run_id", event.RunID),
			slog.String("topic", p.topic),
			slog.String("error", err.Error()))
		return fmt.Errorf("publish run event %s: %w", event.RunID, err)
	}
	p.logger.DebugContext(ctx, "run event published",
		slog.String("run_id", event.RunID),
		slog.String("topic", p.topic))
	return nil
}

// Close flushes and closes the producer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func serializeToMessage(event RunEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize run event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.RunID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "tool", Value: []byte(event.Tool)},
			{Key: "status", Value: []byte(event.Status)},
			{Key: "finished_at", Value: []byte(event.FinishedAt.Format(time.RFC3339))},
		},
	}, nil
}

// NopPublisher drops every event.
type NopPublisher struct{}

// PublishRun implements the publisher interface.
func (NopPublisher) PublishRun(context.Context, RunEvent) error { return nil }

// Close implements io.Closer.
func (NopPublisher) Close() error { return nil }
