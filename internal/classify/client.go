package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 15 * time.Second

// Client is the classification collaborator boundary. Implementations make
// exactly one attempt per call; retry policy belongs to the sync queue.
type Client interface {
	Classify(ctx context.Context, req Request) (Classification, error)
}

// Config captures the runtime settings required to talk to the classifier.
type Config struct {
	BaseURL        string
	APIKey         string
	TimeoutSeconds int
}

// HTTPClient talks to the remote classification API.
type HTTPClient struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewHTTPClient constructs a classifier client using the supplied configuration.
func NewHTTPClient(cfg Config, opts ...Option) *HTTPClient {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &HTTPClient{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// StatusError reports a non-2xx response from the classification API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("classify request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type classifyRequest struct {
	Text     string `json:"text"`
	Source   string `json:"source,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
}

type entityPayload struct {
	Type            string `json:"type"`
	Value           string `json:"value"`
	NormalizedValue string `json:"normalized_value"`
}

type scheduleInfoPayload struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Location  string `json:"location"`
	IsAllDay  bool   `json:"is_all_day"`
}

type todoInfoPayload struct {
	Deadline       string `json:"deadline"`
	DeadlineSource string `json:"deadline_source"`
}

type splitItemPayload struct {
	SplitText      string               `json:"split_text"`
	ClassifiedType string               `json:"classified_type"`
	NoteSubType    string               `json:"note_sub_type"`
	Confidence     string               `json:"confidence"`
	AITitle        string               `json:"ai_title"`
	Tags           []string             `json:"tags"`
	ScheduleInfo   *scheduleInfoPayload `json:"schedule_info"`
	TodoInfo       *todoInfoPayload     `json:"todo_info"`
}

type classifyPayload struct {
	ClassifiedType string               `json:"classified_type"`
	NoteSubType    string               `json:"note_sub_type"`
	Confidence     string               `json:"confidence"`
	AITitle        string               `json:"ai_title"`
	Tags           []string             `json:"tags"`
	Entities       []entityPayload      `json:"entities"`
	ScheduleInfo   *scheduleInfoPayload `json:"schedule_info"`
	TodoInfo       *todoInfoPayload     `json:"todo_info"`
	SplitItems     []splitItemPayload   `json:"split_items"`
}

type classifyEnvelope struct {
	Status string           `json:"status"`
	Data   *classifyPayload `json:"data"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Classify sends capture text to the classification API and decodes the result.
func (c *HTTPClient) Classify(ctx context.Context, req Request) (Classification, error) {
	var empty Classification
	if strings.TrimSpace(req.Text) == "" {
		return empty, errors.New("classify: text required")
	}
	if c.cfg.BaseURL == "" {
		return empty, errors.New("classify: base url required")
	}

	encoded, err := json.Marshal(classifyRequest{
		Text:     req.Text,
		Source:   req.Source,
		DeviceID: req.DeviceID,
	})
	if err != nil {
		return empty, fmt.Errorf("classify request: encode body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/classify", bytes.NewReader(encoded))
	if err != nil {
		return empty, fmt.Errorf("classify request: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return empty, fmt.Errorf("classify request: http error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, fmt.Errorf("classify request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var envelope classifyEnvelope
	if err := DecodeResultJSON(string(body), &envelope); err != nil {
		return empty, fmt.Errorf("classify request: decode response: %w", err)
	}
	if envelope.Error != nil {
		return empty, fmt.Errorf("classify request: api error %s: %s", envelope.Error.Code, envelope.Error.Message)
	}
	if envelope.Data == nil {
		return empty, errors.New("classify request: empty payload")
	}
	return toDomain(*envelope.Data), nil
}

func toDomain(payload classifyPayload) Classification {
	result := Classification{
		Type:         parseTypeOrTemp(payload.ClassifiedType),
		Confidence:   parseConfidenceOrLow(payload.Confidence),
		Title:        strings.TrimSpace(payload.AITitle),
		Tags:         cleanTags(payload.Tags),
		ScheduleInfo: toScheduleInfo(payload.ScheduleInfo),
		TodoInfo:     toTodoInfo(payload.TodoInfo),
	}
	if payload.NoteSubType != "" {
		result.SubType = parseSubTypeOrInbox(payload.NoteSubType)
	}
	for _, entity := range payload.Entities {
		value := strings.TrimSpace(entity.Value)
		if value == "" {
			continue
		}
		result.Entities = append(result.Entities, Entity{
			Type:            strings.ToLower(strings.TrimSpace(entity.Type)),
			Value:           value,
			NormalizedValue: strings.TrimSpace(entity.NormalizedValue),
		})
	}
	for _, item := range payload.SplitItems {
		text := strings.TrimSpace(item.SplitText)
		if text == "" {
			continue
		}
		split := SplitItem{
			Text:         text,
			Type:         parseTypeOrTemp(item.ClassifiedType),
			Confidence:   parseConfidenceOrLow(item.Confidence),
			Title:        strings.TrimSpace(item.AITitle),
			Tags:         cleanTags(item.Tags),
			ScheduleInfo: toScheduleInfo(item.ScheduleInfo),
			TodoInfo:     toTodoInfo(item.TodoInfo),
		}
		if item.NoteSubType != "" {
			split.SubType = parseSubTypeOrInbox(item.NoteSubType)
		}
		result.SplitItems = append(result.SplitItems, split)
	}
	return result
}

// Unknown enum values degrade rather than fail: the queue would otherwise
// retry a response that will never parse differently.
func parseTypeOrTemp(value string) ClassifiedType {
	if parsed, ok := ParseClassifiedType(value); ok {
		return parsed
	}
	return TypeTemp
}

func parseSubTypeOrInbox(value string) NoteSubType {
	if parsed, ok := ParseNoteSubType(value); ok {
		return parsed
	}
	return SubTypeInbox
}

func parseConfidenceOrLow(value string) Confidence {
	if parsed, ok := ParseConfidence(value); ok {
		return parsed
	}
	return ConfidenceLow
}

func cleanTags(tags []string) []string {
	var cleaned []string
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

func toScheduleInfo(payload *scheduleInfoPayload) *ScheduleInfo {
	if payload == nil {
		return nil
	}
	return &ScheduleInfo{
		StartTime: parseWireTime(payload.StartTime),
		EndTime:   parseWireTime(payload.EndTime),
		Location:  strings.TrimSpace(payload.Location),
		IsAllDay:  payload.IsAllDay,
	}
}

func toTodoInfo(payload *todoInfoPayload) *TodoInfo {
	if payload == nil {
		return nil
	}
	return &TodoInfo{
		Deadline:       parseWireTime(payload.Deadline),
		DeadlineSource: ParseDeadlineSource(payload.DeadlineSource),
	}
}

// parseWireTime accepts the ISO-8601 timestamps the classification API
// produces. Unparseable values are dropped rather than failing the whole
// classification.
func parseWireTime(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			parsed = parsed.UTC()
			return &parsed
		}
	}
	return nil
}
