package kafka

import (
	"context"
	"errors"
	"fmt"
	"github.com/panjf2000/ants/v2"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"sync"
)

// Handler must return nil only when the message was processed and its offset may
// be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
}

func NewConsumer(brokers []string, group string, topics []string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		GroupTopics:    topics,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers}
}

// Start fetches messages until ctx is cancelled and hands each one to h on an
// ants pool. Workers finish out of order, so commits go through an offsetTracker:
// a partition's offset only moves past messages that h accepted. After a failure
// the partition stops committing, and the failed message and everything after it
// is delivered again once the group rebalances or the worker restarts. In-flight
// work finishes before Start returns.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	pool, err := ants.NewPool(c.workers, ants.WithPanicHandler(func(p any) {
		zap.L().Error("consumer worker panic", zap.Any("panic", p))
	}))
	if err != nil {
		return fmt.Errorf("consumer pool: %w", err)
	}
	tracker := newOffsetTracker()
	var inflight sync.WaitGroup
	defer func() {
		inflight.Wait()
		pool.Release()
	}()

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		inflight.Add(1)
		tr := tracker.begin(m)
		task := func() {
			defer inflight.Done()
			log := zap.L().With(zap.String("topic", m.Topic), zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset))
			err := h(ctx, m)
			if err != nil {
				log.Warn("message handling failed, partition offset held", zap.Error(err))
			}
			upTo, ok := tracker.finish(tr, err == nil)
			if !ok {
				return
			}
			if err := c.r.CommitMessages(context.WithoutCancel(ctx), upTo); err != nil {
				log.Warn("commit offset", zap.Int64("up_to", upTo.Offset), zap.Error(err))
			}
		}
		if err := pool.Submit(task); err != nil {
			tracker.finish(tr, false)
			inflight.Done()
			return fmt.Errorf("submit message: %w", err)
		}
	}
}

type partitionKey struct {
	topic     string
	partition int
}

type pending struct {
	m    kafka.Message
	done bool
}

// offsetTracker keeps fetched messages per partition in fetch order and reports
// the last message of the leading run that has been handled successfully.
type offsetTracker struct {
	mu    sync.Mutex
	queue map[partitionKey][]*pending
}

func newOffsetTracker() *offsetTracker {
	return &offsetTracker{queue: make(map[partitionKey][]*pending)}
}

func (t *offsetTracker) begin(m kafka.Message) *pending {
	p := &pending{m: m}
	k := partitionKey{m.Topic, m.Partition}
	t.mu.Lock()
	t.queue[k] = append(t.queue[k], p)
	t.mu.Unlock()
	return p
}

// finish marks p handled. It returns the message whose offset may now be
// committed, or false when the partition cannot move. A failed message stays at
// the head of its queue and blocks every later commit for that partition.
func (t *offsetTracker) finish(p *pending, ok bool) (kafka.Message, bool) {
	k := partitionKey{p.m.Topic, p.m.Partition}
	t.mu.Lock()
	defer t.mu.Unlock()
	if !ok {
		return kafka.Message{}, false
	}
	p.done = true

	q := t.queue[k]
	n := 0
	for n < len(q) && q[n].done {
		n++
	}
	if n == 0 {
		return kafka.Message{}, false
	}
	last := q[n-1].m
	t.queue[k] = q[n:]
	return last, true
}
