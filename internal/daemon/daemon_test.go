package daemon_test

import (
	"context"
	"os"
	"testing"
	"time"

	"captor/internal/classify"
	"captor/internal/daemon"
	"captor/internal/pipeline"
	"captor/internal/queue"
	"captor/internal/store"
	"captor/internal/testsupport"
	"captor/internal/worker"
)

type stubClassifier struct{}

func (stubClassifier) Classify(ctx context.Context, req classify.Request) (classify.Classification, error) {
	return classify.Classification{Type: classify.TypeNotes, SubType: classify.SubTypeInbox, Confidence: classify.ConfidenceLow}, nil
}

func newDaemon(t *testing.T) (*daemon.Daemon, *store.Store, *queue.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	q := testsupport.MustOpenQueue(t, cfg)
	applier := pipeline.NewApplier(st, nil, nil, nil)
	processor := worker.NewProcessor(st, q, stubClassifier{}, applier, cfg, nil)

	d, err := daemon.New(cfg, st, q, processor, nil, nil)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	return d, st, q
}

func TestDaemonStartStop(t *testing.T) {
	d, _, _ := newDaemon(t)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if !d.Running() {
		t.Fatal("expected running daemon")
	}

	d.Stop()
	if d.Running() {
		t.Fatal("expected stopped daemon")
	}
}

func TestDaemonRecoversOrphanedItemsOnStart(t *testing.T) {
	d, st, q := newDaemon(t)
	ctx := context.Background()

	capture := &store.Capture{OriginalText: "orphaned"}
	if err := st.SaveCapture(ctx, capture); err != nil {
		t.Fatalf("save capture: %v", err)
	}
	item, err := q.Enqueue(ctx, capture.ID, 3)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.MarkProcessing(ctx, item.ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	// The startup recovery plus the immediate drain should complete the item.
	deadline := time.After(5 * time.Second)
	for {
		got, err := q.GetByID(ctx, item.ID)
		if err != nil {
			t.Fatalf("get item: %v", err)
		}
		if got.Status == queue.StatusCompleted {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("item never completed, status %s", got.Status)
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestDaemonStartFailsWithoutQueueDatabase(t *testing.T) {
	d, _, q := newDaemon(t)

	if err := os.Remove(q.Path()); err != nil {
		t.Fatalf("remove queue db: %v", err)
	}
	if err := d.Start(context.Background()); err == nil {
		d.Stop()
		t.Fatal("expected start to fail when the queue database is gone")
	}
}

func TestDaemonSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	q := testsupport.MustOpenQueue(t, cfg)
	applier := pipeline.NewApplier(st, nil, nil, nil)

	build := func() *daemon.Daemon {
		processor := worker.NewProcessor(st, q, stubClassifier{}, applier, cfg, nil)
		d, err := daemon.New(cfg, st, q, processor, nil, nil)
		if err != nil {
			t.Fatalf("new daemon: %v", err)
		}
		return d
	}

	first := build()
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("start first: %v", err)
	}
	defer first.Stop()

	second := build()
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be rejected")
	}
}

func TestDaemonStatus(t *testing.T) {
	d, _, q := newDaemon(t)

	status := d.Status()
	if status.Running {
		t.Fatal("expected not running before start")
	}
	if status.QueueDBPath != q.Path() {
		t.Fatalf("unexpected queue path %q", status.QueueDBPath)
	}
	if status.LockFilePath == "" {
		t.Fatal("expected lock file path")
	}
}
