package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"captor/internal/classify"
	"captor/internal/pipeline"
	"captor/internal/queue"
	"captor/internal/store"
	"captor/internal/testsupport"
	"captor/internal/worker"
)

type fakeClassifier struct {
	classifyFunc func(ctx context.Context, req classify.Request) (classify.Classification, error)
	calls        int
}

func (f *fakeClassifier) Classify(ctx context.Context, req classify.Request) (classify.Classification, error) {
	f.calls++
	if f.classifyFunc != nil {
		return f.classifyFunc(ctx, req)
	}
	return classify.Classification{Type: classify.TypeNotes, SubType: classify.SubTypeInbox, Confidence: classify.ConfidenceMedium}, nil
}

type fixture struct {
	store     *store.Store
	queue     *queue.Store
	client    *fakeClassifier
	processor *worker.Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	q := testsupport.MustOpenQueue(t, cfg)
	client := &fakeClassifier{}
	applier := pipeline.NewApplier(st, nil, nil, nil)
	return &fixture{
		store:     st,
		queue:     q,
		client:    client,
		processor: worker.NewProcessor(st, q, client, applier, cfg, nil),
	}
}

func (f *fixture) submit(t *testing.T, text string) (*store.Capture, *queue.Item) {
	t.Helper()
	capture := &store.Capture{OriginalText: text}
	if err := f.store.SaveCapture(context.Background(), capture); err != nil {
		t.Fatalf("save capture: %v", err)
	}
	item, err := f.queue.Enqueue(context.Background(), capture.ID, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return capture, item
}

func TestDrainProcessesDueItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	capture, item := f.submit(t, "remember the milk")

	result, err := f.processor.DrainQueue(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("expected 1 processed, got %+v", result)
	}

	got, err := f.queue.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}

	updated, err := f.store.GetCapture(ctx, capture.ID)
	if err != nil {
		t.Fatalf("get capture: %v", err)
	}
	if updated.ClassifiedType != classify.TypeNotes {
		t.Fatalf("expected notes classification, got %s", updated.ClassifiedType)
	}
}

func TestBackoffProgression(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, item := f.submit(t, "flaky capture")

	f.client.classifyFunc = func(ctx context.Context, req classify.Request) (classify.Classification, error) {
		return classify.Classification{}, errors.New("network down")
	}

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	f.processor.SetClock(func() time.Time { return now })

	wantDelays := []time.Duration{5 * time.Second, 15 * time.Second, 45 * time.Second}
	for attempt, want := range wantDelays {
		result, err := f.processor.DrainQueue(ctx)
		if err != nil {
			t.Fatalf("drain %d: %v", attempt, err)
		}
		if result.Retried != 1 {
			t.Fatalf("attempt %d: expected retry, got %+v", attempt, result)
		}

		got, err := f.queue.GetByID(ctx, item.ID)
		if err != nil {
			t.Fatalf("get item: %v", err)
		}
		if got.NextRetryAt == nil {
			t.Fatalf("attempt %d: expected next retry time", attempt)
		}
		delta := got.NextRetryAt.Sub(now)
		if delta != want {
			t.Fatalf("attempt %d: expected backoff %v, got %v", attempt, want, delta)
		}
		if got.RetryCount != attempt+1 {
			t.Fatalf("attempt %d: expected retry count %d, got %d", attempt, attempt+1, got.RetryCount)
		}

		// Jump past the retry time so the next drain picks the item up.
		now = got.NextRetryAt.Add(time.Second)
	}

	// Fourth failure exhausts the budget.
	result, err := f.processor.DrainQueue(ctx)
	if err != nil {
		t.Fatalf("final drain: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected permanent failure, got %+v", result)
	}
	got, err := f.queue.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.ErrorMessage == "" {
		t.Fatal("expected final error recorded")
	}
}

func TestMissingCaptureCompletesItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	item, err := f.queue.Enqueue(ctx, "no-such-capture", 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	result, err := f.processor.DrainQueue(ctx)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("expected completion, got %+v", result)
	}
	if f.client.calls != 0 {
		t.Fatalf("classifier must not run for missing captures, got %d calls", f.client.calls)
	}

	got, err := f.queue.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}

func TestDeletedCaptureCompletesItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	capture, item := f.submit(t, "doomed capture")
	if err := f.store.SoftDeleteCapture(ctx, capture.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	if _, err := f.processor.DrainQueue(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	got, err := f.queue.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Status != queue.StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}

func TestClassifierErrorDoesNotTouchCapture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	capture, _ := f.submit(t, "still temp")

	f.client.classifyFunc = func(ctx context.Context, req classify.Request) (classify.Classification, error) {
		return classify.Classification{}, errors.New("boom")
	}
	if _, err := f.processor.DrainQueue(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}

	got, err := f.store.GetCapture(ctx, capture.ID)
	if err != nil {
		t.Fatalf("get capture: %v", err)
	}
	if got.ClassifiedType != classify.TypeTemp {
		t.Fatalf("failed classification must leave capture temp, got %s", got.ClassifiedType)
	}
	if got.ClassifiedAt != nil {
		t.Fatal("failed classification must not stamp classified_at")
	}
}

func TestRecoverStartupResetsProcessing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, item := f.submit(t, "orphaned by crash")

	if _, err := f.queue.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	reset, err := f.processor.RecoverStartup(ctx)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 reset, got %d", reset)
	}

	got, err := f.queue.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.Status != queue.StatusPending {
		t.Fatalf("expected pending, got %s", got.Status)
	}
}

func TestSweepStaleTemp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stuck := &store.Capture{
		OriginalText: "lost in the void",
		CreatedAt:    time.Now().UTC().Add(-time.Hour),
	}
	if err := f.store.SaveCapture(ctx, stuck); err != nil {
		t.Fatalf("save capture: %v", err)
	}

	// An equally old capture with a live item must not be re-enqueued.
	queued := &store.Capture{
		OriginalText: "already queued",
		CreatedAt:    time.Now().UTC().Add(-time.Hour),
	}
	if err := f.store.SaveCapture(ctx, queued); err != nil {
		t.Fatalf("save queued capture: %v", err)
	}
	if _, err := f.queue.Enqueue(ctx, queued.ID, 3); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	enqueued, err := f.processor.SweepStaleTemp(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if enqueued != 1 {
		t.Fatalf("expected 1 re-enqueued, got %d", enqueued)
	}

	live, err := f.queue.HasLiveItemForCapture(ctx, stuck.ID)
	if err != nil {
		t.Fatalf("check live item: %v", err)
	}
	if !live {
		t.Fatal("expected stuck capture back in the queue")
	}

	// A second sweep finds nothing new.
	enqueued, err = f.processor.SweepStaleTemp(ctx)
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if enqueued != 0 {
		t.Fatalf("expected no re-enqueues, got %d", enqueued)
	}
}
