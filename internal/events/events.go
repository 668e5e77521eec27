// Package events publishes order submission outcomes for operators.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// SubmissionEvent describes the terminal state of one back-office submission.
type SubmissionEvent struct {
	CheckoutID          string    `json:"checkout_id"`
	UserID              int       `json:"user_id"`
	ExternalOrderNumber string    `json:"external_order_number"`
	CustomerUID         string    `json:"customer_uid,omitempty"`
	OrderUID            string    `json:"order_uid,omitempty"`
	State               string    `json:"state"`
	Reason              string    `json:"reason,omitempty"`
	FailedItems         int       `json:"failed_items,omitempty"`
	Total               int64     `json:"total"`
	Currency            string    `json:"currency"`
	OccurredAt          time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, key string, payload any) error
	Close() error
}

type Client struct {
	Brokers []string
}

func NewClient(brokersCSV string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers}
}

func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c *Client) NewWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

// NewPublisher returns a Kafka-backed publisher, or a no-op one when no
// brokers are configured.
func NewPublisher(brokersCSV, topic string) Publisher {
	c := NewClient(brokersCSV)
	if !c.Enabled() {
		return NopPublisher{}
	}
	return &KafkaPublisher{writer: c.NewWriter(topic)}
}

func (p *KafkaPublisher) Publish(ctx context.Context, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: data, Time: time.Now().UTC()})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                               { return nil }
