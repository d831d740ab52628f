// Package events publishes ledger and transaction notifications. Publishing
// is best effort: callers never see delivery errors and a committed balance
// change is never undone because an event was lost.
package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"minibank-core/internal/config"
	"minibank-core/internal/logger"
)

// Sink is what services publish to.
type Sink interface {
	Publish(ctx context.Context, topic, key string, payload any)
}

// Publisher delivers one encoded message and reports the outcome.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, body []byte) error
	Close() error
}

type message struct {
	ctx   context.Context
	topic string
	key   string
	body  []byte
}

// AsyncSink queues messages in a bounded buffer drained by worker
// goroutines. A full queue drops the message with a warning.
type AsyncSink struct {
	publisher      Publisher
	jobs           chan message
	workers        int
	publishTimeout time.Duration

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	started sync.Once
}

func NewAsyncSink(publisher Publisher, workers, queueSize int) *AsyncSink {
	if workers <= 0 {
		workers = 1
	}
	return &AsyncSink{
		publisher:      publisher,
		jobs:           make(chan message, queueSize),
		workers:        workers,
		publishTimeout: 5 * time.Second,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (s *AsyncSink) Start() {
	s.started.Do(func() {
		for i := 0; i < s.workers; i++ {
			s.wg.Add(1)
			go s.worker(i)
		}
	})
}

func (s *AsyncSink) worker(id int) {
	defer s.wg.Done()
	logger.Debug("Event worker started", "worker", id)
	for msg := range s.jobs {
		s.deliver(msg)
	}
	logger.Debug("Event worker stopped", "worker", id)
}

func (s *AsyncSink) deliver(msg message) {
	ctx, cancel := context.WithTimeout(msg.ctx, s.publishTimeout)
	defer cancel()

	logger.ExternalServiceCall("events", "publish", "topic", msg.topic, "key", msg.key)
	err := s.publisher.Publish(ctx, msg.topic, msg.key, msg.body)
	logger.ExternalServiceResult("events", "publish", err, "topic", msg.topic, "key", msg.key)
}

// Publish encodes payload as JSON and enqueues it without blocking.
func (s *AsyncSink) Publish(ctx context.Context, topic, key string, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to encode event", "topic", topic, "key", key, "error", err)
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		logger.WarnContext(ctx, "Event sink closed, dropping event", "topic", topic, "key", key)
		return
	}

	// The request context ends when the handler returns; delivery must not.
	msg := message{ctx: context.WithoutCancel(ctx), topic: topic, key: key, body: body}
	select {
	case s.jobs <- msg:
	default:
		logger.WarnContext(ctx, "Event queue is full, dropping event", "topic", topic, "key", key)
	}
}

// Close stops accepting events, drains the queue and closes the publisher.
func (s *AsyncSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.jobs)
	s.mu.Unlock()

	s.Start() // drain even if never started
	s.wg.Wait()
	return s.publisher.Close()
}

// NewFromConfig builds and starts the sink selected by cfg.Driver.
func NewFromConfig(cfg config.EventsConfig) (*AsyncSink, error) {
	var publisher Publisher
	switch cfg.Driver {
	case "rabbitmq":
		rabbit, err := DialRabbitPublisher(cfg.AMQPURL, cfg.Exchange)
		if err != nil {
			return nil, err
		}
		publisher = rabbit
	default:
		publisher = NewLogPublisher()
	}

	sink := NewAsyncSink(publisher, cfg.Workers, cfg.QueueSize)
	sink.Start()
	logger.Info("Event sink started", "driver", cfg.Driver, "workers", cfg.Workers, "queue_size", cfg.QueueSize)
	return sink, nil
}
