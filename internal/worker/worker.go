package worker

import (
	"context"
	"log"
	"time"

	"pass-service/internal/broker"
	"pass-service/internal/models"
	"pass-service/internal/redisclient"
	"pass-service/internal/service"
	"pass-service/internal/store"
	"pass-service/internal/util"

	"go.uber.org/zap"
)

// SweepWorker runs the fallback sweep on a fixed interval. It compensates
// for dispatch-service outages, lost push triggers, and orders whose
// scheduled time had already passed at creation.
type SweepWorker struct {
	processor *service.Processor
	redis     *redisclient.Client
	interval  time.Duration
	logger    *zap.Logger
	stop      chan struct{}
}

// NewSweepWorker creates a new sweep worker
func NewSweepWorker(processor *service.Processor, redis *redisclient.Client, interval time.Duration) *SweepWorker {
	return &SweepWorker{
		processor: processor,
		redis:     redis,
		interval:  interval,
		logger:    util.GetLogger(),
		stop:      make(chan struct{}),
	}
}

// Start runs the sweep loop until the context is cancelled or Stop is called
func (w *SweepWorker) Start(ctx context.Context) error {
	log.Printf("Starting sweep worker, interval=%s", w.interval)

	// One sweep right away so a restart doesn't wait a full interval.
	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

// Stop stops the worker
func (w *SweepWorker) Stop() error {
	log.Println("Stopping sweep worker...")
	close(w.stop)
	return nil
}

// runOnce executes a single sweep pass behind the advisory lock. The lock
// only avoids duplicate scanning across instances; processing safety comes
// from the conditional claim.
func (w *SweepWorker) runOnce(ctx context.Context) {
	if w.redis != nil {
		token, acquired, err := w.redis.AcquireSweepLock(ctx, w.interval)
		if err != nil {
			w.logger.Warn("Sweep lock unavailable, sweeping anyway", zap.Error(err))
		} else if !acquired {
			w.logger.Debug("Sweep lock held elsewhere, skipping this round")
			return
		} else {
			defer func() {
				if err := w.redis.ReleaseSweepLock(ctx, token); err != nil {
					w.logger.Warn("Failed to release sweep lock", zap.Error(err))
				}
			}()
		}
	}

	if _, err := w.processor.SweepOverdue(ctx, time.Now().UTC()); err != nil {
		w.logger.Error("Sweep run failed", zap.Error(err))
	}
}

// RebuyWorker consumes PassIssued events and schedules the delayed rebuy
// reminder for each new pass
type RebuyWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewRebuyWorker creates a new rebuy scheduling worker
func NewRebuyWorker(
	consumer *broker.Consumer,
	st *store.Store,
	dispatch service.DispatchClient,
	rebuyDelay time.Duration,
) *RebuyWorker {
	logger := util.GetLogger()

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPassIssued(func(ctx context.Context, event *models.PassIssuedEvent) error {
		processed, err := st.IsEventProcessed(ctx, event.EventID)
		if err != nil {
			return err
		}
		if processed {
			logger.Info("Event already processed", zap.String("event_id", event.EventID))
			return nil
		}

		if err := dispatch.EnqueueRebuyReminder(ctx, rebuyDelay, event.PassID); err != nil {
			// Leave the event uncommitted semantics to the consumer retry;
			// the flag stays false until the enqueue actually lands.
			util.DispatchEnqueueFailedTotal.Inc()
			logger.Warn("Failed to enqueue rebuy reminder",
				zap.Int64("pass_id", event.PassID),
				zap.Error(err))
			return err
		}

		if err := st.MarkRebuyScheduled(ctx, event.PassID); err != nil {
			logger.Error("Failed to record rebuy scheduling",
				zap.Int64("pass_id", event.PassID),
				zap.Error(err))
		}

		if err := st.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
			logger.Error("Failed to mark event processed", zap.Error(err))
		}

		return nil
	})

	return &RebuyWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *RebuyWorker) Start(ctx context.Context) error {
	log.Println("Starting rebuy worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *RebuyWorker) Stop() error {
	log.Println("Stopping rebuy worker...")
	return w.consumer.Close()
}
