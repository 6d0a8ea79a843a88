package doccrew

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSubmitRunSendsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/runs" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Fatalf("unexpected authorization header: %q", got)
		}
		var submission RunSubmission
		if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
			t.Fatalf("decode submission: %v", err)
		}
		if submission.RepoPath != "/repos/demo" {
			t.Fatalf("unexpected repo path: %q", submission.RepoPath)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(Run{ID: "run-1", RepoPath: submission.RepoPath, Status: "pending"})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.SetToken("secret")

	submitted, err := client.SubmitRun(context.Background(), RunSubmission{RepoPath: "/repos/demo"})
	if err != nil {
		t.Fatalf("submit run: %v", err)
	}
	if submitted.ID != "run-1" || submitted.Status != "pending" {
		t.Fatalf("unexpected run: %+v", submitted)
	}
}

func TestGetRunDecodesResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/runs/run-9" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(Run{
			ID:     "run-9",
			Status: "succeeded",
			Result: &DocumentResult{DocumentPath: "output/doc.md", TokensUsed: 42, TaskCount: 3},
		})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	detail, err := client.GetRun(context.Background(), "run-9")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if detail.Result == nil || detail.Result.DocumentPath != "output/doc.md" {
		t.Fatalf("unexpected result: %+v", detail.Result)
	}
}

func TestGetRunAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "run not found", "code": "RUN_NOT_FOUND"})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.GetRun(context.Background(), "missing")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "RUN_NOT_FOUND" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestListRunsFiltersByStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("status"); got != "failed" {
			t.Fatalf("unexpected status filter: %q", got)
		}
		_ = json.NewEncoder(w).Encode([]Run{{ID: "run-1", Status: "failed"}})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	runs, err := client.ListRuns(context.Background(), "failed")
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != "failed" {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestWaitForRunPollsUntilTerminal(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		status := "running"
		if calls >= 3 {
			status = "succeeded"
		}
		_ = json.NewEncoder(w).Encode(Run{ID: "run-2", Status: status})
	}))
	defer server.Close()

	client, err := NewClient(server.URL, server.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	final, err := client.WaitForRun(ctx, "run-2", 5*time.Millisecond)
	if err != nil {
		t.Fatalf("wait for run: %v", err)
	}
	if final.Status != "succeeded" {
		t.Fatalf("unexpected final status: %q", final.Status)
	}
	if calls < 3 {
		t.Fatalf("expected at least 3 polls, got %d", calls)
	}
}
