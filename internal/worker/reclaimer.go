package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"agora.app/verdict/common/logger"
	"agora.app/verdict/internal/queue"
	"github.com/redis/go-redis/v9"
)

type ReclaimerConfig struct {
	Stream    string
	Group     string
	Consumer  string
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
}

// Reclaimer periodically claims stale pending messages. This handles the
// crash recovery scenario where a worker dies after XREADGROUP but before
// XACK.
type Reclaimer struct {
	client    *redis.Client
	cfg       ReclaimerConfig
	consumer  Consumer
	processor queue.MessageProcessor

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// NewReclaimer creates a new Reclaimer. The processor normally is the
// worker's HandleMessage so reclaimed tasks share its retry accounting.
func NewReclaimer(client *redis.Client, cfg ReclaimerConfig, consumer Consumer, processor queue.MessageProcessor) *Reclaimer {
	return &Reclaimer{
		client:    client,
		cfg:       cfg,
		consumer:  consumer,
		processor: processor,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run starts the reclaimer loop. Blocks until Stop() is called.
func (r *Reclaimer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "verdict.worker.reclaimer",
	})

	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "reclaimer started",
		"interval", r.cfg.Interval,
		"min_idle", r.cfg.MinIdle,
		"stream", r.cfg.Stream,
		"group", r.cfg.Group)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "reclaimer stopping")
			return
		case <-ticker.C:
			if err := r.reclaimOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "reclaim cycle error", "error", err)
			}
		}
	}
}

// Stop signals the reclaimer to stop gracefully.
func (r *Reclaimer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

// reclaimOnce claims one batch of messages idle past MinIdle and runs them.
func (r *Reclaimer) reclaimOnce(ctx context.Context) error {
	claimed, _, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   r.cfg.Stream,
		Group:    r.cfg.Group,
		Consumer: r.cfg.Consumer,
		MinIdle:  r.cfg.MinIdle,
		Start:    "0-0",
		Count:    r.cfg.BatchSize,
	}).Result()
	if err != nil {
		return fmt.Errorf("xautoclaim: %w", err)
	}

	if len(claimed) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "claimed stale pending messages", "count", len(claimed))

	for _, raw := range claimed {
		if err := r.processClaimed(ctx, raw); err != nil {
			slog.ErrorContext(ctx, "failed to process reclaimed message",
				"error", err,
				"message_id", raw.ID)
			// Continue with other messages
		}
	}

	return nil
}

func (r *Reclaimer) processClaimed(ctx context.Context, raw redis.XMessage) error {
	msgID := raw.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: &msgID,
	})

	parsed, err := queue.ParseMessage(raw)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse reclaimed message, acknowledging to prevent loop",
			"error", err)
		_ = r.consumer.Ack(ctx, queue.Message{ID: raw.ID, Raw: raw})
		return nil
	}

	slog.InfoContext(ctx, "reclaimed stale message",
		"task_type", parsed.TaskType,
		"attempt", parsed.Attempt)

	start := time.Now()
	if err := r.processor(ctx, parsed); err != nil {
		return fmt.Errorf("processing reclaimed message: %w", err)
	}

	slog.InfoContext(ctx, "reclaimed message processed",
		"duration_ms", time.Since(start).Milliseconds())

	return nil
}
