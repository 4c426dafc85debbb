package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"captor/internal/analytics"
	"captor/internal/classify"
	"captor/internal/config"
	"captor/internal/logging"
	"captor/internal/pipeline"
	"captor/internal/queue"
	"captor/internal/store"
)

// ErrDrainInProgress is returned when a drain is requested while another is
// already running.
var ErrDrainInProgress = errors.New("drain already in progress")

// staleHeartbeatAge is how long a processing item may go without a heartbeat
// before it is reclaimed.
const staleHeartbeatAge = 5 * time.Minute

// completedRetention is how long completed queue items are kept for
// inspection before purging.
const completedRetention = 24 * time.Hour

// DrainResult summarizes one pass over the queue.
type DrainResult struct {
	Processed int
	Retried   int
	Failed    int
}

// Processor pulls due queue items, classifies their captures, and applies
// the results. Only one drain runs at a time.
type Processor struct {
	store   *store.Store
	queue   *queue.Store
	client  classify.Client
	applier *pipeline.Applier
	cfg     config.Config
	tracker analytics.Tracker
	logger  *slog.Logger
	now     func() time.Time

	drainMu sync.Mutex
}

// Option customizes the processor.
type Option func(*Processor)

// WithTracker records an analytics event per non-empty drain pass.
func WithTracker(tracker analytics.Tracker) Option {
	return func(p *Processor) {
		p.tracker = tracker
	}
}

// NewProcessor builds a queue processor.
func NewProcessor(st *store.Store, q *queue.Store, client classify.Client, applier *pipeline.Applier, cfg *config.Config, logger *slog.Logger, opts ...Option) *Processor {
	p := &Processor{
		store:   st,
		queue:   q,
		client:  client,
		applier: applier,
		cfg:     *cfg,
		logger:  logging.NewComponentLogger(logger, "worker"),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// backoffDelay computes the wait before the next attempt for an item that
// has already been retried retryCount times.
func (p *Processor) backoffDelay(retryCount int) time.Duration {
	delay := time.Duration(p.cfg.Queue.InitialBackoffMS) * time.Millisecond
	for i := 0; i < retryCount; i++ {
		delay *= time.Duration(p.cfg.Queue.BackoffMultiplier)
	}
	return delay
}

// DrainQueue processes every due pending item once. A second concurrent call
// returns ErrDrainInProgress instead of doubling up on the same items.
func (p *Processor) DrainQueue(ctx context.Context) (DrainResult, error) {
	if !p.drainMu.TryLock() {
		return DrainResult{}, ErrDrainInProgress
	}
	defer p.drainMu.Unlock()

	started := time.Now()
	var result DrainResult
	items, err := p.queue.DuePending(ctx, p.now())
	if err != nil {
		return result, err
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		outcome, err := p.processItem(ctx, item)
		if err != nil {
			return result, err
		}
		switch outcome {
		case outcomeCompleted:
			result.Processed++
		case outcomeRetried:
			result.Retried++
		case outcomeFailed:
			result.Failed++
		}
	}

	p.logger.Info("queue drained",
		logging.Int("processed", result.Processed),
		logging.Int("retried", result.Retried),
		logging.Int("failed", result.Failed))
	if p.tracker != nil && result.Processed+result.Retried+result.Failed > 0 {
		if err := p.tracker.TrackQueueDrained(ctx, result.Processed, result.Failed, time.Since(started)); err != nil {
			p.logger.Debug("analytics event dropped", logging.Error(err))
		}
	}
	return result, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeCompleted
	outcomeRetried
	outcomeFailed
)

func (p *Processor) processItem(ctx context.Context, item *queue.Item) (outcome, error) {
	claimed, err := p.queue.MarkProcessing(ctx, item.ID)
	if err != nil {
		return outcomeSkipped, err
	}
	if !claimed {
		return outcomeSkipped, nil
	}

	capture, err := p.store.GetCapture(ctx, item.CaptureID)
	if err != nil {
		return p.retryOrFail(ctx, item, err)
	}
	if capture == nil || capture.IsDeleted {
		// The capture is gone; there is nothing left to classify.
		p.logger.Info("capture missing, completing item",
			logging.Int64(logging.FieldQueueItem, item.ID),
			logging.String(logging.FieldCaptureID, item.CaptureID))
		if err := p.queue.MarkCompleted(ctx, item.ID); err != nil {
			return outcomeSkipped, err
		}
		return outcomeCompleted, nil
	}

	result, err := p.client.Classify(ctx, classify.Request{
		Text:     capture.OriginalText,
		Source:   string(capture.Source),
		DeviceID: p.cfg.Classifier.DeviceID,
	})
	if err != nil {
		return p.retryOrFail(ctx, item, err)
	}

	// The classify call is the slow step; refresh liveness before applying
	// so the stale reclaim doesn't steal an item that is still moving.
	if err := p.queue.UpdateHeartbeat(ctx, item.ID); err != nil {
		p.logger.Warn("heartbeat update failed",
			logging.Int64(logging.FieldQueueItem, item.ID),
			logging.Error(err))
	}

	if err := p.applier.Apply(ctx, item.CaptureID, result); err != nil {
		if errors.Is(err, pipeline.ErrCaptureNotFound) {
			if err := p.queue.MarkCompleted(ctx, item.ID); err != nil {
				return outcomeSkipped, err
			}
			return outcomeCompleted, nil
		}
		// A materialization failure rolls back cleanly, so it retries the
		// same as a network failure.
		return p.retryOrFail(ctx, item, err)
	}

	if err := p.queue.MarkCompleted(ctx, item.ID); err != nil {
		return outcomeSkipped, err
	}
	return outcomeCompleted, nil
}

func (p *Processor) retryOrFail(ctx context.Context, item *queue.Item, cause error) (outcome, error) {
	if item.RetryCount >= item.MaxRetries {
		p.logger.Error("item failed permanently",
			logging.Int64(logging.FieldQueueItem, item.ID),
			logging.String(logging.FieldCaptureID, item.CaptureID),
			logging.Int("retries", item.RetryCount),
			logging.Error(cause))
		if err := p.queue.MarkFailed(ctx, item.ID, cause.Error()); err != nil {
			return outcomeSkipped, err
		}
		return outcomeFailed, nil
	}

	delay := p.backoffDelay(item.RetryCount)
	nextRetry := p.now().Add(delay)
	p.logger.Warn("item scheduled for retry",
		logging.Int64(logging.FieldQueueItem, item.ID),
		logging.String(logging.FieldCaptureID, item.CaptureID),
		logging.Duration("backoff", delay),
		logging.Error(cause))
	if err := p.queue.ScheduleRetry(ctx, item.ID, cause.Error(), nextRetry); err != nil {
		return outcomeSkipped, err
	}
	return outcomeRetried, nil
}

// RecoverStartup returns any processing items to pending. Run once before
// the first drain so items orphaned by a crash are picked up again.
func (p *Processor) RecoverStartup(ctx context.Context) (int64, error) {
	reset, err := p.queue.ResetStaleProcessing(ctx, nil)
	if err != nil {
		return 0, err
	}
	if reset > 0 {
		p.logger.Info("recovered orphaned items", logging.Int64("count", reset))
	}
	return reset, nil
}

// ReclaimStale returns processing items with expired heartbeats to pending.
func (p *Processor) ReclaimStale(ctx context.Context) (int64, error) {
	cutoff := p.now().Add(-staleHeartbeatAge)
	return p.queue.ResetStaleProcessing(ctx, &cutoff)
}

// SweepStaleTemp re-enqueues captures stuck in the temp classification with
// no live queue item, which happens when a result was lost or the queue
// database was cleared.
func (p *Processor) SweepStaleTemp(ctx context.Context) (int, error) {
	cutoff := p.now().Add(-time.Duration(p.cfg.Queue.TempSweepAge) * time.Second)
	captures, err := p.store.TempCapturesOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, capture := range captures {
		live, err := p.queue.HasLiveItemForCapture(ctx, capture.ID)
		if err != nil {
			return enqueued, err
		}
		if live {
			continue
		}
		if _, err := p.queue.Enqueue(ctx, capture.ID, p.cfg.Queue.MaxRetries); err != nil {
			return enqueued, err
		}
		enqueued++
	}
	if enqueued > 0 {
		p.logger.Info("re-enqueued stale temp captures", logging.Int("count", enqueued))
	}
	return enqueued, nil
}

// Housekeep purges old completed queue items.
func (p *Processor) Housekeep(ctx context.Context) error {
	cutoff := p.now().Add(-completedRetention)
	purged, err := p.queue.PurgeCompleted(ctx, cutoff)
	if err != nil {
		return err
	}
	if purged > 0 {
		p.logger.Debug("purged completed items", logging.Int64("count", purged))
	}
	return nil
}

// SetClock overrides the processor's time source. Tests only.
func (p *Processor) SetClock(now func() time.Time) {
	p.now = now
}
