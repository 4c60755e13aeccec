// Package kafkasink publishes export job envelopes to a Kafka topic, keyed
// by export id so all jobs of one export land on the same partition.
package kafkasink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/model"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/logger"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/sink"
)

const Name = "kafka"

var ErrClosed = errors.New("kafkasink: publisher closed")

// NewConfig is the producer config the sink expects: acks from all in-sync
// replicas with successes and errors returned.
func NewConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = true
	cfg.Producer.Retry.Max = 5
	return cfg
}

type Publisher struct {
	topic string
	prod  sarama.AsyncProducer
	log   *slog.Logger

	mu      sync.RWMutex
	closed  bool
	stopped chan struct{}
}

func New(brokers []string, topic string, log *slog.Logger) (*Publisher, error) {
	prod, err := sarama.NewAsyncProducer(brokers, NewConfig())
	if err != nil {
		return nil, fmt.Errorf("kafkasink: create async producer: %w", err)
	}
	return NewWithProducer(prod, topic, log), nil
}

// NewWithProducer wraps an existing producer. Its config must return
// successes and errors.
func NewWithProducer(prod sarama.AsyncProducer, topic string, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	p := &Publisher{topic: topic, prod: prod, log: log, stopped: make(chan struct{})}
	go p.drain()
	return p
}

// drain routes every delivery report back to the waiting publish call.
func (p *Publisher) drain() {
	defer close(p.stopped)
	succ, errs := p.prod.Successes(), p.prod.Errors()
	for succ != nil || errs != nil {
		select {
		case m, ok := <-succ:
			if !ok {
				succ = nil
				continue
			}
			report(m, nil)
		case pe, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if pe == nil {
				continue
			}
			report(pe.Msg, pe.Err)
		}
	}
}

func report(m *sarama.ProducerMessage, err error) {
	if m == nil {
		return
	}
	if done, ok := m.Metadata.(chan error); ok {
		done <- err
	}
}

func (p *Publisher) Name() string { return Name }

func (p *Publisher) ExportRaster(ctx context.Context, job model.RasterJob) (model.Ticket, error) {
	return p.publish(ctx, sink.NewRasterEnvelope(logger.ExportID(ctx), job))
}

func (p *Publisher) ExportTable(ctx context.Context, job model.TableJob) (model.Ticket, error) {
	return p.publish(ctx, sink.NewTableEnvelope(logger.ExportID(ctx), job))
}

// publish blocks until the broker acknowledged env or ctx ends.
func (p *Publisher) publish(ctx context.Context, env sink.Envelope) (model.Ticket, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("kafkasink: marshal envelope: %w", err)
	}
	key := env.ExportID
	if key == "" {
		key = env.ID
	}
	done := make(chan error, 1)
	msg := &sarama.ProducerMessage{
		Topic:    p.topic,
		Key:      sarama.StringEncoder(key),
		Value:    sarama.ByteEncoder(b),
		Metadata: done,
	}

	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return model.Ticket{}, ErrClosed
	}
	select {
	case p.prod.Input() <- msg:
		p.mu.RUnlock()
	case <-ctx.Done():
		p.mu.RUnlock()
		return model.Ticket{}, fmt.Errorf("kafkasink: enqueue: %w", ctx.Err())
	}

	select {
	case err := <-done:
		if err != nil {
			p.log.ErrorContext(ctx, "export envelope not delivered",
				"id", env.ID, "kind", env.Kind, "file", env.FileName(), "err", err)
			return model.Ticket{}, fmt.Errorf("kafkasink: deliver %s: %w", env.ID, err)
		}
	case <-ctx.Done():
		return model.Ticket{}, fmt.Errorf("kafkasink: await ack: %w", ctx.Err())
	}

	p.log.DebugContext(ctx, "export envelope published",
		"id", env.ID, "kind", env.Kind, "file", env.FileName(), "topic", p.topic)
	return model.Ticket{ID: env.ID, Kind: env.Kind, FileName: env.FileName(), Sink: Name}, nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	// AsyncClose flushes buffered messages; drain keeps delivering their
	// reports until both channels close.
	p.prod.AsyncClose()
	<-p.stopped
	return nil
}
