package kafka

import (
	"context"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"strconv"
	"sync"
	"time"
)

// Producer buffers messages for every topic in one inbox and writes them from a
// single goroutine, so publishing never blocks a checkout on the broker.
type Producer struct {
	w       *kafka.Writer
	service string
	inbox   chan kafka.Message
	closeCh chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewProducer(brokers []string, service string, buf int) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
		service: service,
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
	}
}

func (p *Producer) Start() {
	go func() {
		defer close(p.closeCh)
		for m := range p.inbox {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := p.w.WriteMessages(ctx, m); err != nil {
				zap.L().Error("kafka publish failed",
					zap.String("topic", m.Topic), zap.ByteString("key", m.Key), zap.Error(err))
			}
			cancel()
		}
		if err := p.w.Close(); err != nil {
			zap.L().Warn("kafka writer close", zap.Error(err))
		}
	}()
}

// Publish queues one message. Messages published after Close are dropped.
func (p *Producer) Publish(topic string, key, value []byte, headers ...kafka.Header) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		zap.L().Warn("kafka producer closed, dropping message", zap.String("topic", topic), zap.ByteString("key", key))
		return
	}
	p.inbox <- kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
}

// PublishEvent wraps payload in an envelope and queues it under key.
func (p *Producer) PublishEvent(topic, key, eventType string, payload any) error {
	env, err := NewEnvelope(eventType, p.service, key, payload)
	if err != nil {
		return err
	}
	p.Publish(topic, []byte(key), MustMarshal(env),
		kafka.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafka.Header{Key: "x-event-version", Value: []byte(strconv.Itoa(EnvelopeVersion))},
	)
	return nil
}

// Close stops accepting messages; the writer goroutine flushes what is queued and exits.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

func (p *Producer) WaitClosed() { <-p.closeCh }
