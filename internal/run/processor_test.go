package run

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	xerrors "github.com/Streamweaver/CodebaseDocumentationCrew/internal/errors"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/observability/alerting"
)

type fakeExecutor struct {
	processed atomic.Int32
	latency   time.Duration
	err       error
}

func (f *fakeExecutor) Execute(ctx context.Context, r *Run) (*DocumentResult, error) {
	if f.latency > 0 {
		select {
		case <-time.After(f.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.processed.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &DocumentResult{DocumentPath: "/out/" + r.ID + ".md", TaskCount: 3, TokensUsed: 42}, nil
}

func TestProcessorHandlesConcurrentRuns(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(1024)
	executor := &fakeExecutor{latency: 10 * time.Millisecond}

	service := NewService(store, queue, 3)
	processor := NewProcessor(executor, store, queue, queue, WithWorkerCount(8))

	go func() {
		if err := processor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("processor exited: %v", err)
		}
	}()

	total := 200
	for i := 0; i < total; i++ {
		repo := fmt.Sprintf("/repos/project-%d", i)
		if _, err := service.Submit(ctx, SubmitRequest{RepoPath: repo}); err != nil {
			t.Fatalf("提交运行失败: %v", err)
		}
	}

	deadline := time.After(5 * time.Second)
	for {
		if int(executor.processed.Load()) >= total {
			cancel()
			break
		}
		select {
		case <-deadline:
			t.Fatalf("运行未能及时处理，已完成 %d", executor.processed.Load())
		case <-time.After(50 * time.Millisecond):
		}
	}
}

func TestProcessorMarksRunSucceeded(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(16)
	executor := &fakeExecutor{}

	service := NewService(store, queue, 3)
	processor := NewProcessor(executor, store, queue, queue)

	go func() { _ = processor.Start(ctx) }()

	submitted, err := service.Submit(ctx, SubmitRequest{RepoPath: "/repos/demo"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	done, err := service.WaitUntilCompleted(ctx, submitted.ID, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if done.Status != StatusSucceeded {
		t.Fatalf("status = %s, want succeeded", done.Status)
	}
	if done.Result == nil || done.Result.DocumentPath == "" {
		t.Fatalf("missing document result: %+v", done.Result)
	}
}

func TestProcessorRetriesRetryableFailures(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(16)
	executor := &fakeExecutor{err: xerrors.New(CodeRunProcessing, "模型暂时不可用", xerrors.WithRetryable(true))}

	service := NewService(store, queue, 2)
	processor := NewProcessor(executor, store, queue, queue)

	go func() { _ = processor.Start(ctx) }()

	submitted, err := service.Submit(ctx, SubmitRequest{RepoPath: "/repos/demo"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	done, err := service.WaitUntilCompleted(ctx, submitted.ID, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if done.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", done.Status)
	}
	if got := int(executor.processed.Load()); got != 2 {
		t.Fatalf("expected 2 attempts, got %d", got)
	}
	if done.ErrorCode != string(CodeRunProcessing) {
		t.Fatalf("error code = %s", done.ErrorCode)
	}
}

func TestProcessorDoesNotRetryNonRetryableFailures(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(16)
	executor := &fakeExecutor{err: xerrors.New(xerrors.CodeInvalidArgument, "仓库路径无效")}

	service := NewService(store, queue, 3)
	processor := NewProcessor(executor, store, queue, queue)

	go func() { _ = processor.Start(ctx) }()

	submitted, err := service.Submit(ctx, SubmitRequest{RepoPath: "/repos/demo"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	done, err := service.WaitUntilCompleted(ctx, submitted.ID, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if done.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", done.Status)
	}
	if got := int(executor.processed.Load()); got != 1 {
		t.Fatalf("non-retryable failure should run once, got %d attempts", got)
	}
}

type recordingDispatcher struct {
	events atomic.Int32
}

func (d *recordingDispatcher) Notify(context.Context, alerting.Event) error {
	d.events.Add(1)
	return nil
}

func TestProcessorEmitsAlertOnTerminalFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewMemoryStore()
	queue := NewMemoryQueue(16)
	executor := &fakeExecutor{err: xerrors.New(xerrors.CodeInvalidArgument, "仓库路径无效")}
	dispatcher := &recordingDispatcher{}

	service := NewService(store, queue, 3)
	processor := NewProcessor(executor, store, queue, queue, WithAlertDispatcher(dispatcher))

	go func() { _ = processor.Start(ctx) }()

	submitted, err := service.Submit(ctx, SubmitRequest{RepoPath: "/repos/demo"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := service.WaitUntilCompleted(ctx, submitted.ID, 20*time.Millisecond); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if dispatcher.events.Load() == 0 {
		t.Fatal("expected an alert for a terminal failure")
	}
}
