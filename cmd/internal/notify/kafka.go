package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// KafkaConfig configures the Kafka gateway.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	Username     string
	Password     string
	TLS          bool
	WriteTimeout time.Duration
	Links        Links
}

// Event is the JSON payload published for each message.
type Event struct {
	Kind      Kind   `json:"kind"`
	Email     string `json:"email"`
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
	Link      string `json:"link,omitempty"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaGateway publishes one event per message and waits for all in-sync replicas.
type KafkaGateway struct {
	w       messageWriter
	links   Links
	timeout time.Duration
	now     func() time.Time
}

// NewKafkaGateway builds a synchronous kafka-go writer.
// SASL/PLAIN is enabled when a username is configured.
func NewKafkaGateway(cfg KafkaConfig) (*KafkaGateway, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	if len(brokers) == 0 {
		return nil, errors.New("notify: kafka brokers required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("notify: kafka topic required")
	}

	transport := &kafka.Transport{}
	if cfg.Username != "" {
		transport.SASL = plain.Mechanism{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	if cfg.TLS {
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		Transport:    transport,
		WriteTimeout: timeout,
	}
	return newKafkaGateway(w, cfg.Links, timeout), nil
}

func newKafkaGateway(w messageWriter, links Links, timeout time.Duration) *KafkaGateway {
	return &KafkaGateway{w: w, links: links, timeout: timeout, now: time.Now}
}

// Send publishes msg keyed by the lower-cased address, so all messages for one
// address land on the same partition in order.
func (g *KafkaGateway) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	ev := Event{
		Kind:  msg.Kind,
		Email: msg.Address,
		Token: msg.Token,
		Link:  g.links.For(msg),
	}
	if !msg.ExpiresAt.IsZero() {
		ev.ExpiresAt = msg.ExpiresAt.UTC().Format(time.RFC3339)
	}
	value, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	return g.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strings.ToLower(strings.TrimSpace(msg.Address))),
		Value: value,
		Time:  g.now(),
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(msg.Kind)},
		},
	})
}

// Close flushes and closes the writer.
func (g *KafkaGateway) Close() error {
	if g == nil || g.w == nil {
		return nil
	}
	return g.w.Close()
}
