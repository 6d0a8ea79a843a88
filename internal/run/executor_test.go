package run

import (
	"context"
	stdErrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/config"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/llm"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/output"
)

type stubLLM struct {
	calls int
	text  string
	err   error
}

func (s *stubLLM) Generate(context.Context, llm.Request) (*llm.Response, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &llm.Response{Text: s.text, TokensUsed: 5}, nil
}

func (s *stubLLM) ModelName() string { return "stub" }

func seedRepo(t *testing.T) string {
	t.Helper()
	repo := t.TempDir()
	if err := os.WriteFile(filepath.Join(repo, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("seed repo: %v", err)
	}
	if err := os.WriteFile(filepath.Join(repo, "README.md"), []byte("# demo\n"), 0o644); err != nil {
		t.Fatalf("seed readme: %v", err)
	}
	return repo
}

func TestCrewExecutorProducesDocument(t *testing.T) {
	repo := seedRepo(t)
	outDir := t.TempDir()

	writer, err := output.NewWriter(outDir)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	client := &stubLLM{text: "# Generated documentation\n"}

	executor, err := NewCrewExecutor(config.CrewConfig{
		MaxFileBytes: 1 << 20,
		MaxListFiles: 100,
	}, client, writer)
	if err != nil {
		t.Fatalf("NewCrewExecutor: %v", err)
	}

	result, err := executor.Execute(context.Background(), &Run{
		ID:        "r1",
		RepoPath:  repo,
		FileLabel: "demo_docs",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if result.TaskCount != 3 {
		t.Fatalf("TaskCount = %d, want 3 pipeline tasks", result.TaskCount)
	}
	if client.calls != 3 {
		t.Fatalf("LLM calls = %d, want 3", client.calls)
	}
	data, err := os.ReadFile(result.DocumentPath)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if string(data) != "# Generated documentation" {
		t.Fatalf("document content = %q", data)
	}
	if !strings.Contains(filepath.Base(result.DocumentPath), "demo_docs") {
		t.Fatalf("label missing from file name: %s", result.DocumentPath)
	}
}

func TestCrewExecutorWritesNothingOnFailure(t *testing.T) {
	repo := seedRepo(t)
	outDir := t.TempDir()

	writer, err := output.NewWriter(outDir)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	client := &stubLLM{err: stdErrors.New("model unavailable")}

	executor, err := NewCrewExecutor(config.CrewConfig{
		MaxFileBytes: 1 << 20,
		MaxListFiles: 100,
	}, client, writer)
	if err != nil {
		t.Fatalf("NewCrewExecutor: %v", err)
	}

	if _, err := executor.Execute(context.Background(), &Run{ID: "r1", RepoPath: repo, FileLabel: "demo"}); err == nil {
		t.Fatal("expected error")
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("no output file should exist after a failed run, found %d", len(entries))
	}
}

func TestServiceSubmitValidation(t *testing.T) {
	store := NewMemoryStore()
	queue := NewMemoryQueue(4)
	service := NewService(store, queue, 3)

	if _, err := service.Submit(context.Background(), SubmitRequest{}); err == nil {
		t.Fatal("expected validation error for empty repo path")
	}
}

func TestServiceSubmitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	queue := NewMemoryQueue(8)
	service := NewService(store, queue, 3)

	first, err := service.Submit(ctx, SubmitRequest{ID: "fixed", RepoPath: "/repos/demo"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	second, err := service.Submit(ctx, SubmitRequest{ID: "fixed", RepoPath: "/repos/demo"})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same run, got %s and %s", first.ID, second.ID)
	}

	runs, err := service.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
}
