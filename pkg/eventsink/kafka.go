package eventsink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// DefaultTopic receives every record unless KafkaConfig names another.
const DefaultTopic = "greenmesh.events"

// KafkaConfig configures the Kafka sink.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	BatchTimeout time.Duration
}

// messageWriter is the part of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes each record as one JSON message keyed by the job id, or by
// the node address for node events, so a consumer sees one entity's events
// in order.
type Kafka struct {
	writer messageWriter
}

// NewKafka returns a sink writing to cfg.Brokers.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka sink: no brokers configured")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}
	return &Kafka{writer: &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchSize:    100,
		BatchTimeout: batchTimeout,
		Compression:  kafka.Snappy,
	}}, nil
}

func (k *Kafka) Publish(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		msg, err := messageFor(r)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka sink: write %d records: %w", len(msgs), err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}

func messageFor(r Record) (kafka.Message, error) {
	value, err := json.Marshal(r)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka sink: marshal record: %w", err)
	}
	return kafka.Message{
		Key:   []byte(partitionKey(r)),
		Value: value,
		Time:  r.Time,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(r.Type)},
			{Key: "op", Value: []byte(r.Op)},
		},
	}, nil
}

func partitionKey(r Record) string {
	if id := r.Attr("job_id"); id != "" {
		return "job/" + id
	}
	if node := r.Attr("node"); node != "" {
		return "node/" + node
	}
	return r.Type
}
