package run

import (
	"context"
	stdErrors "errors"
	"testing"
	"time"
)

func TestMemoryStoreListWithFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().Add(-2 * time.Minute)

	runs := []*Run{
		{ID: "r1", RepoPath: "/repos/a", Status: StatusPending, MaxRetries: 3},
		{ID: "r2", RepoPath: "/repos/b", Status: StatusFailed, MaxRetries: 3},
		{ID: "r3", RepoPath: "/repos/c", Status: StatusSucceeded, MaxRetries: 3},
	}

	for _, r := range runs {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("create run %s: %v", r.ID, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := store.MarkFailed(ctx, "r2", CodeRunProcessing, "boom", true); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "r3", DocumentResult{DocumentPath: "/out/doc.md"}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	store.mu.Lock()
	store.runs["r1"].UpdatedAt = base.Unix()
	store.runs["r2"].UpdatedAt = base.Add(30 * time.Second).Unix()
	store.runs["r3"].UpdatedAt = base.Add(60 * time.Second).Unix()
	store.mu.Unlock()

	all, err := store.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
	if all[0].ID != "r3" {
		t.Fatalf("expected newest run first, got %s", all[0].ID)
	}

	failed, err := store.List(ctx, buildListOptions([]ListOption{WithStatuses(StatusFailed)}))
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "r2" {
		t.Fatalf("unexpected failed list: %+v", failed)
	}

	withDoc, err := store.List(ctx, buildListOptions([]ListOption{WithResultPresence(true)}))
	if err != nil {
		t.Fatalf("list with result: %v", err)
	}
	if len(withDoc) != 1 || withDoc[0].ID != "r3" {
		t.Fatalf("unexpected result list: %+v", withDoc)
	}

	since := base.Add(15 * time.Second)
	recent, err := store.List(ctx, buildListOptions([]ListOption{WithUpdatedSince(since)}))
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 runs to match since filter, got %d", len(recent))
	}

	byPath, err := store.List(ctx, buildListOptions([]ListOption{WithQuery("repos/b")}))
	if err != nil {
		t.Fatalf("list by query: %v", err)
	}
	if len(byPath) != 1 || byPath[0].ID != "r2" {
		t.Fatalf("unexpected query list: %+v", byPath)
	}
}

func TestMemoryStoreClaimLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, &Run{ID: "r1", RepoPath: "/repos/a", Status: StatusPending, MaxRetries: 2}); err != nil {
		t.Fatalf("create: %v", err)
	}

	claimed, err := store.Claim(ctx, "r1")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != StatusRunning || claimed.Attempts != 1 {
		t.Fatalf("unexpected claim state: %+v", claimed)
	}

	if _, err := store.Claim(ctx, "r1"); !stdErrors.Is(err, ErrRunConflict) {
		t.Fatalf("second claim should conflict, got %v", err)
	}

	if err := store.MarkFailed(ctx, "r1", CodeRunProcessing, "boom", false); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	got, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusPending {
		t.Fatalf("non-terminal failure should return run to pending, got %s", got.Status)
	}

	if _, err := store.Claim(ctx, "r1"); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if err := store.MarkFailed(ctx, "r1", CodeRunProcessing, "boom", false); err != nil {
		t.Fatalf("mark failed again: %v", err)
	}
	if _, err := store.Claim(ctx, "r1"); !stdErrors.Is(err, ErrRunExhausted) {
		t.Fatalf("claim past max retries should exhaust, got %v", err)
	}

	if err := store.MarkSucceeded(ctx, "r1", DocumentResult{DocumentPath: "/out/doc.md"}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}
	if _, err := store.Claim(ctx, "r1"); !stdErrors.Is(err, ErrRunCompleted) {
		t.Fatalf("claim of completed run should fail, got %v", err)
	}
}

func TestMemoryStoreStats(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().Add(-3 * time.Minute)
	runs := []*Run{
		{ID: "a", RepoPath: "/repos/a", Status: StatusPending, MaxRetries: 3},
		{ID: "b", RepoPath: "/repos/b", Status: StatusPending, MaxRetries: 3},
		{ID: "c", RepoPath: "/repos/c", Status: StatusPending, MaxRetries: 3},
	}

	for _, r := range runs {
		if err := store.Create(ctx, r); err != nil {
			t.Fatalf("create run %s: %v", r.ID, err)
		}
		time.Sleep(2 * time.Millisecond)
	}

	if err := store.MarkFailed(ctx, "b", CodeRunProcessing, "boom", true); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := store.MarkSucceeded(ctx, "c", DocumentResult{DocumentPath: "/out/c.md"}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	store.mu.Lock()
	store.runs["a"].UpdatedAt = base.Unix()
	store.runs["b"].UpdatedAt = base.Add(30 * time.Second).Unix()
	store.runs["c"].UpdatedAt = base.Add(2 * time.Minute).Unix()
	store.mu.Unlock()

	stats, err := store.Stats(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 3 || stats.Pending != 1 || stats.Failed != 1 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.NewestUpdatedAt != base.Add(2*time.Minute).Unix() {
		t.Fatalf("unexpected newest timestamp: %d", stats.NewestUpdatedAt)
	}
	if stats.OldestUpdatedAt != base.Unix() {
		t.Fatalf("unexpected oldest timestamp: %d", stats.OldestUpdatedAt)
	}

	withResults, err := store.Stats(ctx, buildListOptions([]ListOption{WithResultPresence(true)}))
	if err != nil {
		t.Fatalf("stats with result: %v", err)
	}
	if withResults.Total != 1 || withResults.Succeeded != 1 {
		t.Fatalf("unexpected stats with result: %+v", withResults)
	}

	withoutResults, err := store.Stats(ctx, buildListOptions([]ListOption{WithResultPresence(false)}))
	if err != nil {
		t.Fatalf("stats without result: %v", err)
	}
	if withoutResults.Total != 2 || withoutResults.Pending != 1 || withoutResults.Failed != 1 {
		t.Fatalf("unexpected stats without result: %+v", withoutResults)
	}
}
