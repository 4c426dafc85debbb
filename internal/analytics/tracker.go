package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"captor/internal/classify"
	"captor/internal/config"
	"captor/internal/logging"
)

const userAgent = "Captor-Go/0.1.0"

// Tracker records pipeline events for later analysis. Implementations must
// never block the pipeline on delivery problems.
type Tracker interface {
	TrackCaptureClassified(ctx context.Context, captureID string, classifiedType classify.ClassifiedType, confidence classify.Confidence) error
	TrackReclassification(ctx context.Context, captureID string, from, to classify.ClassifiedType, elapsedMS int64) error
	TrackCaptureConfirmed(ctx context.Context, captureID string) error
	TrackSplitCapture(ctx context.Context, captureID string, childCount int) error
	TrackQueueDrained(ctx context.Context, processed, failed int, duration time.Duration) error
	TrackCalendarSynced(ctx context.Context, captureID string) error
}

// NewTracker builds a tracker backed by the configured collector endpoint.
// When no endpoint is configured a noop implementation is returned.
func NewTracker(cfg config.Analytics, logger *slog.Logger) Tracker {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return noopTracker{}
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &httpTracker{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type event struct {
	Name       string         `json:"name"`
	OccurredAt string         `json:"occurred_at"`
	Properties map[string]any `json:"properties,omitempty"`
}

type httpTracker struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

func (t *httpTracker) TrackCaptureClassified(ctx context.Context, captureID string, classifiedType classify.ClassifiedType, confidence classify.Confidence) error {
	return t.send(ctx, event{
		Name: "capture_classified",
		Properties: map[string]any{
			"capture_id": captureID,
			"type":       string(classifiedType),
			"confidence": string(confidence),
		},
	})
}

func (t *httpTracker) TrackReclassification(ctx context.Context, captureID string, from, to classify.ClassifiedType, elapsedMS int64) error {
	return t.send(ctx, event{
		Name: "capture_reclassified",
		Properties: map[string]any{
			"capture_id": captureID,
			"from":       string(from),
			"to":         string(to),
			"elapsed_ms": elapsedMS,
		},
	})
}

func (t *httpTracker) TrackCaptureConfirmed(ctx context.Context, captureID string) error {
	return t.send(ctx, event{
		Name:       "capture_confirmed",
		Properties: map[string]any{"capture_id": captureID},
	})
}

func (t *httpTracker) TrackSplitCapture(ctx context.Context, captureID string, childCount int) error {
	return t.send(ctx, event{
		Name: "split_capture_created",
		Properties: map[string]any{
			"capture_id":  captureID,
			"split_count": childCount,
		},
	})
}

func (t *httpTracker) TrackQueueDrained(ctx context.Context, processed, failed int, duration time.Duration) error {
	return t.send(ctx, event{
		Name: "queue_drained",
		Properties: map[string]any{
			"processed":   processed,
			"failed":      failed,
			"duration_ms": duration.Milliseconds(),
		},
	})
}

func (t *httpTracker) TrackCalendarSynced(ctx context.Context, captureID string) error {
	return t.send(ctx, event{
		Name:       "calendar_synced",
		Properties: map[string]any{"capture_id": captureID},
	})
}

func (t *httpTracker) send(ctx context.Context, ev event) error {
	ev.OccurredAt = time.Now().UTC().Format(time.RFC3339Nano)

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Debug("analytics delivery failed", logging.Error(err))
		return fmt.Errorf("send event: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("collector returned %d", resp.StatusCode)
	}
	return nil
}

type noopTracker struct{}

func (noopTracker) TrackCaptureClassified(context.Context, string, classify.ClassifiedType, classify.Confidence) error {
	return nil
}

func (noopTracker) TrackReclassification(context.Context, string, classify.ClassifiedType, classify.ClassifiedType, int64) error {
	return nil
}

func (noopTracker) TrackCaptureConfirmed(context.Context, string) error { return nil }

func (noopTracker) TrackSplitCapture(context.Context, string, int) error { return nil }

func (noopTracker) TrackQueueDrained(context.Context, int, int, time.Duration) error { return nil }

func (noopTracker) TrackCalendarSynced(context.Context, string) error { return nil }
