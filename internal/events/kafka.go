package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Shopify/sarama"
)

type KafkaPublisher struct {
	topic    string
	producer sarama.SyncProducer
}

func NewKafkaPublisher(clientID string, brokers []string, topic string) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = clientID
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, topic), nil
}

func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{topic: topic, producer: producer}
}

// Publish keys messages by recipient so one user's notifications stay ordered
// within a partition.
func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	b, err := e.Encode()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(e.RecipientID.String()),
		Value: sarama.ByteEncoder(b),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to send event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// Consumer reads activity events from a consumer group and feeds them to a
// Handler.
type Consumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler Handler
}

func NewConsumer(brokers []string, groupID, topic string, handler Handler) (*Consumer, error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}
	return &Consumer{group: group, topics: []string{topic}, handler: handler}, nil
}

// Run blocks until ctx is cancelled, rejoining the group after rebalances.
func (c *Consumer) Run(ctx context.Context) error {
	h := &groupHandler{handler: c.handler}
	for {
		if err := c.group.Consume(ctx, c.topics, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			slog.Error("kafka consume failed", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	handler Handler
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.process(session.Context(), msg)
		session.MarkMessage(msg, "")
	}
	return nil
}

// process never fails the claim: a bad or unhandled event is logged and
// skipped, since notifications are best-effort.
func (h *groupHandler) process(ctx context.Context, msg *sarama.ConsumerMessage) {
	e, err := Decode(msg.Value)
	if err != nil {
		slog.Error("dropping undecodable event", "error", err, "offset", msg.Offset, "partition", msg.Partition)
		return
	}
	if err := h.handler(ctx, e); err != nil {
		slog.Error("event handler failed", "error", err, "type", string(e.Type))
	}
}
