// Package kafka publishes resolved notifications to a Kafka topic. Records
// are keyed by identity context so all notifications for one identity land
// on the same partition, preserving per-context order downstream.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"registrar/internal/judgement/models"
)

// Sink produces one record per notification batch.
type Sink struct {
	client *kgo.Client
	topic  string
}

// envelope is the wire payload: the events plus the judgement state they
// were resolved against, so consumers need no follow-up query.
type envelope struct {
	State  models.JudgementState        `json:"state"`
	Events []models.NotificationMessage `json:"events"`
}

// New connects to the given brokers. The caller owns the Close.
func New(brokers []string, topic string) (*Sink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

func (s *Sink) Notify(ctx context.Context, state models.JudgementState, events []models.NotificationMessage) error {
	payload, err := json.Marshal(envelope{State: state, Events: events})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(state.Context.Key()),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce notification: %w", err)
	}
	return nil
}

func (s *Sink) Close() {
	s.client.Close()
}
