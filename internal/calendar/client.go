package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"captor/internal/config"
)

// Event is one calendar entry derived from a schedule capture.
type Event struct {
	Title     string
	StartTime *time.Time
	EndTime   *time.Time
	Location  string
	IsAllDay  bool
}

// Client creates events in an external calendar.
type Client interface {
	CreateEvent(ctx context.Context, event Event) (string, error)
}

// HTTPClient talks to a calendar bridge over HTTP.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPClient builds a calendar client from configuration.
func NewHTTPClient(cfg config.Calendar) *HTTPClient {
	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type eventPayload struct {
	Title     string `json:"title"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Location  string `json:"location,omitempty"`
	IsAllDay  bool   `json:"is_all_day"`
}

type eventResponse struct {
	EventID string `json:"event_id"`
}

// CreateEvent posts the event and returns the external event identifier.
func (c *HTTPClient) CreateEvent(ctx context.Context, event Event) (string, error) {
	payload := eventPayload{
		Title:    event.Title,
		Location: event.Location,
		IsAllDay: event.IsAllDay,
	}
	if event.StartTime != nil {
		payload.StartTime = event.StartTime.UTC().Format(time.RFC3339)
	}
	if event.EndTime != nil {
		payload.EndTime = event.EndTime.UTC().Format(time.RFC3339)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/events", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("calendar bridge returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var decoded eventResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.EventID == "" {
		return "", fmt.Errorf("calendar bridge returned no event id")
	}
	return decoded.EventID, nil
}

// NopClient is used when calendar sync is disabled or under test.
type NopClient struct {
	// CreateFunc, when set, overrides the default success behavior.
	CreateFunc func(ctx context.Context, event Event) (string, error)
}

// CreateEvent returns a fixed identifier, or delegates to CreateFunc.
func (c *NopClient) CreateEvent(ctx context.Context, event Event) (string, error) {
	if c.CreateFunc != nil {
		return c.CreateFunc(ctx, event)
	}
	return "nop-event", nil
}
