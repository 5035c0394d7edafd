package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RecordProducer is the slice of the Kafka producer the sink needs.
type RecordProducer interface {
	Produce(ctx context.Context, key, value []byte) error
}

// KafkaStore publishes events to the audit topic, keyed by subject address so
// the history of one record stays ordered within a partition.
type KafkaStore struct {
	producer RecordProducer
}

func NewKafkaStore(producer RecordProducer) *KafkaStore {
	return &KafkaStore{producer: producer}
}

type kafkaPayload struct {
	Timestamp string `json:"timestamp"`
	Actor     string `json:"actor"`
	Action    string `json:"action"`
	Subject   string `json:"subject"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *KafkaStore) Append(ctx context.Context, event Event) error {
	payload, err := json.Marshal(kafkaPayload{
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Actor:     event.Actor.String(),
		Action:    string(event.Action),
		Subject:   event.Subject,
		Detail:    event.Detail,
		RequestID: event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	return s.producer.Produce(ctx, []byte(event.Subject), payload)
}
