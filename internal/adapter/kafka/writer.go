// Package kafka publishes regional time-series points to a Kafka topic so
// downstream dashboards can consume calibrated temperatures without reading
// the run's output files.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/airtemp-calibration/internal/domain"
)

// Publisher produces time-series messages to a Kafka topic.
// It implements pipeline.SeriesPublisher.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka producer for the series topic.
func NewPublisher(brokers []string, topic string, logger *slog.Logger) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger}
}

// PublishSeries serializes and publishes all points in a single
// WriteMessages call.
func (p *Publisher) PublishSeries(ctx context.Context, points []domain.TimeSeriesPoint) error {
	if len(points) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(points))
	for i := range points {
		msg, err := serializeToMessage(points[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish series: %w", err)
	}
	p.logger.Info("series published", "points", len(points), "topic", p.writer.Topic)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// serializeToMessage marshals a time-series point into a Kafka message
// keyed by region so per-region ordering is preserved.
func serializeToMessage(point domain.TimeSeriesPoint) (kafkago.Message, error) {
	data, err := json.Marshal(point)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize series point: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(point.Region),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "variable", Value: []byte(point.Variable)},
			{Key: "generated_at", Value: []byte(domain.Now().Format(time.RFC3339))},
		},
	}, nil
}
