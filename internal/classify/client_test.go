package classify_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"captor/internal/classify"
)

func TestClassifyDecodesFullPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/classify" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("unexpected auth header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "ok",
			"data": {
				"classified_type": "SCHEDULE",
				"confidence": "HIGH",
				"ai_title": "Dentist appointment",
				"tags": ["health", " dentist "],
				"entities": [
					{"type": "DATE", "value": "tomorrow 3pm", "normalized_value": "2026-09-02T15:00:00Z"}
				],
				"schedule_info": {
					"start_time": "2026-09-02T15:00:00Z",
					"end_time": "2026-09-02T16:00:00Z",
					"location": "Main St clinic",
					"is_all_day": false
				}
			}
		}`))
	}))
	defer server.Close()

	client := classify.NewHTTPClient(classify.Config{BaseURL: server.URL, APIKey: "secret"})
	result, err := client.Classify(context.Background(), classify.Request{Text: "dentist tomorrow 3pm"})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Type != classify.TypeSchedule {
		t.Fatalf("expected schedule type, got %q", result.Type)
	}
	if result.Confidence != classify.ConfidenceHigh {
		t.Fatalf("expected high confidence, got %q", result.Confidence)
	}
	if result.Title != "Dentist appointment" {
		t.Fatalf("unexpected title: %q", result.Title)
	}
	if len(result.Tags) != 2 || result.Tags[1] != "dentist" {
		t.Fatalf("expected trimmed tags, got %#v", result.Tags)
	}
	if len(result.Entities) != 1 || result.Entities[0].Type != "date" {
		t.Fatalf("unexpected entities: %#v", result.Entities)
	}
	if result.ScheduleInfo == nil || result.ScheduleInfo.StartTime == nil {
		t.Fatal("expected schedule info with start time")
	}
	want := time.Date(2026, 9, 2, 15, 0, 0, 0, time.UTC)
	if !result.ScheduleInfo.StartTime.Equal(want) {
		t.Fatalf("unexpected start time: %v", result.ScheduleInfo.StartTime)
	}
	if result.ScheduleInfo.Location != "Main St clinic" {
		t.Fatalf("unexpected location: %q", result.ScheduleInfo.Location)
	}
}

func TestClassifyDecodesSplitItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"status": "ok",
			"data": {
				"classified_type": "NOTES",
				"note_sub_type": "INBOX",
				"confidence": "MEDIUM",
				"ai_title": "Mixed capture",
				"split_items": [
					{
						"split_text": "buy milk",
						"classified_type": "TODO",
						"confidence": "HIGH",
						"ai_title": "Buy milk",
						"todo_info": {"deadline": "2026-09-03T09:00:00Z", "deadline_source": "AI_EXTRACTED"}
					},
					{
						"split_text": "team standup at 10",
						"classified_type": "SCHEDULE",
						"confidence": "HIGH",
						"ai_title": "Team standup",
						"schedule_info": {"start_time": "2026-09-02T10:00:00Z", "is_all_day": false}
					}
				]
			}
		}`))
	}))
	defer server.Close()

	client := classify.NewHTTPClient(classify.Config{BaseURL: server.URL})
	result, err := client.Classify(context.Background(), classify.Request{Text: "buy milk / standup at 10"})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.SubType != classify.SubTypeInbox {
		t.Fatalf("expected inbox subtype, got %q", result.SubType)
	}
	if len(result.SplitItems) != 2 {
		t.Fatalf("expected 2 split items, got %d", len(result.SplitItems))
	}
	if result.SplitItems[0].Type != classify.TypeTodo || result.SplitItems[0].TodoInfo == nil {
		t.Fatalf("unexpected first split item: %#v", result.SplitItems[0])
	}
	if result.SplitItems[0].TodoInfo.DeadlineSource != classify.DeadlineSourceAI {
		t.Fatalf("unexpected deadline source: %q", result.SplitItems[0].TodoInfo.DeadlineSource)
	}
	if result.SplitItems[1].Type != classify.TypeSchedule || result.SplitItems[1].ScheduleInfo == nil {
		t.Fatalf("unexpected second split item: %#v", result.SplitItems[1])
	}
}

func TestClassifyUnknownEnumsDegrade(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"status": "ok",
			"data": {
				"classified_type": "MYSTERY",
				"note_sub_type": "WAT",
				"confidence": "EXTREME",
				"ai_title": "x"
			}
		}`))
	}))
	defer server.Close()

	client := classify.NewHTTPClient(classify.Config{BaseURL: server.URL})
	result, err := client.Classify(context.Background(), classify.Request{Text: "???"})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Type != classify.TypeTemp {
		t.Fatalf("expected temp fallback, got %q", result.Type)
	}
	if result.SubType != classify.SubTypeInbox {
		t.Fatalf("expected inbox fallback, got %q", result.SubType)
	}
	if result.Confidence != classify.ConfidenceLow {
		t.Fatalf("expected low fallback, got %q", result.Confidence)
	}
}

func TestClassifyServerErrorReturnsStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer server.Close()

	client := classify.NewHTTPClient(classify.Config{BaseURL: server.URL})
	_, err := client.Classify(context.Background(), classify.Request{Text: "hello"})
	if err == nil {
		t.Fatal("expected error")
	}
	var statusErr *classify.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %T: %v", err, err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("unexpected status code: %d", statusErr.StatusCode)
	}
}

func TestClassifyRequiresText(t *testing.T) {
	client := classify.NewHTTPClient(classify.Config{BaseURL: "http://localhost:1"})
	if _, err := client.Classify(context.Background(), classify.Request{Text: "  "}); err == nil {
		t.Fatal("expected error for blank text")
	}
}

func TestDecodeResultJSONStripsCodeFences(t *testing.T) {
	var target struct {
		OK bool `json:"ok"`
	}
	content := "```json\n{\"ok\": true}\n```"
	if err := classify.DecodeResultJSON(content, &target); err != nil {
		t.Fatalf("DecodeResultJSON failed: %v", err)
	}
	if !target.OK {
		t.Fatal("expected decoded payload")
	}
}
