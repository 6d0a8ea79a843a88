package crew

import (
	"context"
	stdErrors "errors"
	"fmt"
	"strings"
	"testing"

	xerrors "github.com/Streamweaver/CodebaseDocumentationCrew/internal/errors"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/knowledge"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/llm"
)

// scriptedLLM 按调用顺序记录收到的请求并返回预置输出。
type scriptedLLM struct {
	requests []llm.Request
	outputs  []string
	failAt   int
	err      error
}

func (s *scriptedLLM) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	call := len(s.requests)
	s.requests = append(s.requests, req)
	if s.err != nil && call == s.failAt {
		return nil, s.err
	}
	text := fmt.Sprintf("output-%d", call)
	if call < len(s.outputs) {
		text = s.outputs[call]
	}
	return &llm.Response{Text: text, TokensUsed: 10}, nil
}

func (s *scriptedLLM) ModelName() string { return "scripted" }

// stubTool 返回固定观察文本。
type stubTool struct {
	name string
	text string
	err  error
}

func (t *stubTool) Name() string { return t.name }

func (t *stubTool) Observe(context.Context) (string, error) { return t.text, t.err }

func buildPipeline(t *testing.T, client llm.Client, opts ...Option) (*Crew, []*Task) {
	t.Helper()
	analyzer := &Agent{Role: "Analyzer", Goal: "analyze"}
	reviewer := &Agent{Role: "Reviewer", Goal: "review"}
	writer := &Agent{Role: "Writer", Goal: "write"}

	first := &Task{Name: "analyze", Description: "analyze the repository", Agent: analyzer}
	second := &Task{Name: "review", Description: "review the code", Agent: reviewer, Context: []*Task{first}}
	third := &Task{Name: "write", Description: "write the docs", Agent: writer, Context: []*Task{first, second}}

	c, err := New("test", []*Task{first, second, third}, client, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, []*Task{first, second, third}
}

func TestKickoffRunsTasksInOrder(t *testing.T) {
	client := &scriptedLLM{outputs: []string{"analysis", "review", "final docs"}}
	c, _ := buildPipeline(t, client)

	result, err := c.Kickoff(context.Background())
	if err != nil {
		t.Fatalf("Kickoff: %v", err)
	}
	if len(client.requests) != 3 {
		t.Fatalf("expected 3 LLM calls, got %d", len(client.requests))
	}
	if result.Raw != "final docs" {
		t.Fatalf("Raw = %q, want final task output", result.Raw)
	}
	if result.TokensUsed != 30 {
		t.Fatalf("TokensUsed = %d, want 30", result.TokensUsed)
	}

	wantOrder := []string{"analyze", "review", "write"}
	for i, output := range result.TaskOutputs {
		if output.Name != wantOrder[i] {
			t.Fatalf("task %d = %s, want %s", i, output.Name, wantOrder[i])
		}
	}
}

func TestKickoffInjectsUpstreamOutputs(t *testing.T) {
	client := &scriptedLLM{outputs: []string{"ANALYSIS-TEXT", "REVIEW-TEXT", "docs"}}
	c, _ := buildPipeline(t, client)

	if _, err := c.Kickoff(context.Background()); err != nil {
		t.Fatalf("Kickoff: %v", err)
	}

	reviewPrompt := client.requests[1].Prompt
	if !strings.Contains(reviewPrompt, "ANALYSIS-TEXT") {
		t.Fatalf("review prompt missing upstream output:\n%s", reviewPrompt)
	}
	writePrompt := client.requests[2].Prompt
	if !strings.Contains(writePrompt, "ANALYSIS-TEXT") || !strings.Contains(writePrompt, "REVIEW-TEXT") {
		t.Fatalf("write prompt missing upstream outputs:\n%s", writePrompt)
	}
}

func TestKickoffStopsOnTaskFailure(t *testing.T) {
	client := &scriptedLLM{failAt: 1, err: stdErrors.New("model unavailable")}
	c, _ := buildPipeline(t, client)

	_, err := c.Kickoff(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if xerrors.CodeOf(err) != xerrors.CodeExecutorFailure {
		t.Fatalf("code = %s, want %s", xerrors.CodeOf(err), xerrors.CodeExecutorFailure)
	}
	if len(client.requests) != 2 {
		t.Fatalf("pipeline should stop after failing task, got %d calls", len(client.requests))
	}
}

func TestKickoffMapsDeadlineToTimeout(t *testing.T) {
	client := &scriptedLLM{failAt: 0, err: context.DeadlineExceeded}
	c, _ := buildPipeline(t, client)

	_, err := c.Kickoff(context.Background())
	if xerrors.CodeOf(err) != xerrors.CodeTimeout {
		t.Fatalf("code = %s, want %s", xerrors.CodeOf(err), xerrors.CodeTimeout)
	}
}

func TestKickoffRejectsEmptyOutput(t *testing.T) {
	client := &scriptedLLM{outputs: []string{"   "}}
	c, _ := buildPipeline(t, client)

	_, err := c.Kickoff(context.Background())
	if xerrors.CodeOf(err) != xerrors.CodeExecutorFailure {
		t.Fatalf("code = %s, want %s", xerrors.CodeOf(err), xerrors.CodeExecutorFailure)
	}
}

func TestToolObservationsInjected(t *testing.T) {
	client := &scriptedLLM{}
	agent := &Agent{
		Role:  "Analyzer",
		Tools: []Tool{&stubTool{name: "List files in directory", text: "File paths:\n- main.go"}},
	}
	task := &Task{Name: "analyze", Description: "analyze", Agent: agent}
	c, err := New("test", []*Task{task}, client)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.Kickoff(context.Background()); err != nil {
		t.Fatalf("Kickoff: %v", err)
	}
	prompt := client.requests[0].Prompt
	if !strings.Contains(prompt, "[List files in directory]") || !strings.Contains(prompt, "main.go") {
		t.Fatalf("prompt missing tool observation:\n%s", prompt)
	}
}

func TestToolFailureAbortsTask(t *testing.T) {
	client := &scriptedLLM{}
	agent := &Agent{
		Role:  "Analyzer",
		Tools: []Tool{&stubTool{name: "broken", err: stdErrors.New("boom")}},
	}
	task := &Task{Name: "analyze", Description: "analyze", Agent: agent}
	c, err := New("test", []*Task{task}, client)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = c.Kickoff(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if len(client.requests) != 0 {
		t.Fatal("LLM should not be called when a tool fails")
	}
}

func TestStepCallbackInvokedPerTask(t *testing.T) {
	client := &scriptedLLM{}
	var steps []string
	c, _ := buildPipeline(t, client, WithStepCallback(func(output TaskOutput) {
		steps = append(steps, output.Name)
	}))

	if _, err := c.Kickoff(context.Background()); err != nil {
		t.Fatalf("Kickoff: %v", err)
	}
	if len(steps) != 3 || steps[0] != "analyze" || steps[2] != "write" {
		t.Fatalf("unexpected callback sequence: %v", steps)
	}
}

func TestKnowledgeSnippetsInjected(t *testing.T) {
	client := &scriptedLLM{}
	provider := knowledge.NewStaticProvider([]knowledge.Snippet{
		{Title: "Heading style", Content: "Use sentence case for headings", Keywords: []string{"write"}},
	}, 3)
	agent := &Agent{Role: "Writer"}
	task := &Task{Name: "write_documentation", Description: "write docs", Agent: agent}
	c, err := New("test", []*Task{task}, client, WithKnowledgeProvider(provider))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.Kickoff(context.Background()); err != nil {
		t.Fatalf("Kickoff: %v", err)
	}
	if !strings.Contains(client.requests[0].Prompt, "sentence case") {
		t.Fatalf("prompt missing style guide snippet:\n%s", client.requests[0].Prompt)
	}
}

func TestNewRejectsForwardContextReference(t *testing.T) {
	agent := &Agent{Role: "A"}
	later := &Task{Name: "later", Description: "later", Agent: agent}
	early := &Task{Name: "early", Description: "early", Agent: agent, Context: []*Task{later}}

	_, err := New("test", []*Task{early, later}, &scriptedLLM{})
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("code = %s, want %s", xerrors.CodeOf(err), xerrors.CodeInvalidArgument)
	}
}

func TestNewRequiresLLMClient(t *testing.T) {
	agent := &Agent{Role: "A"}
	task := &Task{Name: "t", Description: "d", Agent: agent}
	_, err := New("test", []*Task{task}, nil)
	if xerrors.CodeOf(err) != xerrors.CodeInitializationFailure {
		t.Fatalf("code = %s, want %s", xerrors.CodeOf(err), xerrors.CodeInitializationFailure)
	}
}
