// Package jobqueue drains export envelopes from Kafka and forwards each job to
// a sink, usually the engine's export API.
package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	obs "github.com/mohammed-shakir/irrigation-export-toolkit/internal/core/observability"
	mylog "github.com/mohammed-shakir/irrigation-export-toolkit/internal/logger"
	"github.com/mohammed-shakir/irrigation-export-toolkit/internal/sink"
)

type Consumer struct {
	cfg      Config
	log      *slog.Logger
	sink     sink.Sink
	seen     *seenSet
	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   []int32
}

func New(cfg Config, s sink.Sink, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{cfg: cfg, log: log, sink: s, seen: newSeenSet(cfg.DedupeSize)}
}

func (c *Consumer) saramaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true
	return cfg
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if c.sink == nil {
		return errors.New("jobqueue: missing sink")
	}
	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, c.saramaConfig())
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() {
		if err := group.Close(); err != nil {
			c.log.Error("kafka consumer group close", "err", err)
		}
	}()

	h := c.handler()
	c.log.Info("export worker consuming",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID, "sink", c.sink.Name())

	for {
		if err := group.Consume(ctx, []string{c.cfg.Topic}, h); err != nil && ctx.Err() == nil {
			c.log.Error("kafka consume error", "err", err)
			select {
			case <-time.After(2 * time.Second):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			c.log.Info("export worker shutting down")
			return nil
		}
	}
}

func (c *Consumer) handler() *groupHandler {
	return &groupHandler{
		setup: func(sess sarama.ConsumerGroupSession) {
			var parts []int32
			for _, ps := range sess.Claims() {
				parts = append(parts, ps...)
			}
			slices.Sort(parts)
			c.assignMu.Lock()
			c.assign = parts
			c.assignMu.Unlock()
			c.assigned.Store(true)
		},
		cleanup: func(sarama.ConsumerGroupSession) {
			c.assigned.Store(false)
			c.assignMu.Lock()
			c.assign = nil
			c.assignMu.Unlock()
		},
		process: c.ProcessOne,
	}
}

// Readiness reports whether the group session is active and which partitions
// it holds.
func (c *Consumer) Readiness() (bool, []int32) {
	if !c.assigned.Load() {
		return false, nil
	}
	c.assignMu.RLock()
	defer c.assignMu.RUnlock()
	return true, slices.Clone(c.assign)
}

// ProcessOne forwards one envelope. Malformed envelopes are logged and
// skipped since redelivery cannot fix them; sink failures are returned so the
// message stays unmarked.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	env, err := decode(msg.Value)
	if err != nil {
		obs.IncJobqueue("decode_error")
		c.log.Error("bad export envelope",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}

	if c.seen.seen(env.ID) {
		obs.IncJobqueue("duplicate")
		c.log.Debug("duplicate envelope skipped", "id", env.ID, "offset", msg.Offset)
		return nil
	}

	ctx = mylog.WithExportID(ctx, env.ExportID)
	ticket, err := sink.Forward(ctx, c.sink, env)
	if err != nil {
		obs.IncJobqueue("sink_error")
		c.log.Error("forward export job",
			"id", env.ID, "export_id", env.ExportID, "file", env.FileName(), "err", err)
		return fmt.Errorf("forward %s: %w", env.ID, err)
	}
	c.seen.remember(env.ID)
	obs.IncJobqueue("forwarded")
	c.log.Info("export job forwarded",
		"id", env.ID, "export_id", env.ExportID, "kind", env.Kind, "file", env.FileName(), "ticket", ticket.ID)
	return nil
}

func decode(b []byte) (sink.Envelope, error) {
	var env sink.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return sink.Envelope{}, fmt.Errorf("json decode: %w", err)
	}
	if err := env.Validate(); err != nil {
		return sink.Envelope{}, err
	}
	return env, nil
}
