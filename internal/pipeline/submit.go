package pipeline

import (
	"context"
	"log/slog"

	"captor/internal/config"
	"captor/internal/logging"
	"captor/internal/queue"
	"captor/internal/store"
)

// Submitter takes raw capture text and makes it durable: one capture row and
// one pending queue item, written before any network work happens.
type Submitter struct {
	store  *store.Store
	queue  *queue.Store
	cfg    config.Queue
	logger *slog.Logger
}

// NewSubmitter builds a submitter.
func NewSubmitter(st *store.Store, q *queue.Store, cfg config.Queue, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Submitter{store: st, queue: q, cfg: cfg, logger: logger}
}

// Submit records the capture and enqueues it for classification.
func (s *Submitter) Submit(ctx context.Context, text string, source store.CaptureSource) (*store.Capture, *queue.Item, error) {
	capture := &store.Capture{OriginalText: text, Source: source}
	if err := s.store.SaveCapture(ctx, capture); err != nil {
		return nil, nil, err
	}

	item, err := s.queue.Enqueue(ctx, capture.ID, s.cfg.MaxRetries)
	if err != nil {
		return capture, nil, err
	}

	s.logger.Info("capture submitted",
		logging.String(logging.FieldCaptureID, capture.ID),
		logging.Int64(logging.FieldQueueItem, item.ID),
		logging.String("source", string(source)))
	return capture, item, nil
}
