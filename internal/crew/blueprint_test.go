package crew

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/config"
	xerrors "github.com/Streamweaver/CodebaseDocumentationCrew/internal/errors"
)

const sampleBlueprint = `
name: quick_review
agents:
  - name: analyzer
    role: Repository Analyzer
    goal: map the repository
    tools: [directory_list, file_probe]
  - name: writer
    role: Documentation Writer
    goal: summarize findings
tasks:
  - name: analyze
    description: analyze the repository layout
    agent: analyzer
  - name: summarize
    description: write a short summary
    agent: writer
    context: [analyze]
`

func writeBlueprintFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crew.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write blueprint: %v", err)
	}
	return path
}

func TestLoadBlueprint(t *testing.T) {
	blueprint, err := LoadBlueprint(writeBlueprintFile(t, sampleBlueprint))
	if err != nil {
		t.Fatalf("LoadBlueprint: %v", err)
	}
	if blueprint.Name != "quick_review" {
		t.Fatalf("Name = %q", blueprint.Name)
	}
	if len(blueprint.Agents) != 2 || len(blueprint.Tasks) != 2 {
		t.Fatalf("unexpected shape: %d agents, %d tasks", len(blueprint.Agents), len(blueprint.Tasks))
	}
}

func TestLoadBlueprintRejectsUnknownTool(t *testing.T) {
	content := `
name: broken
agents:
  - name: analyzer
    role: Analyzer
    tools: [web_search]
tasks:
  - name: analyze
    description: analyze
    agent: analyzer
`
	_, err := LoadBlueprint(writeBlueprintFile(t, content))
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("code = %s, want %s", xerrors.CodeOf(err), xerrors.CodeInvalidArgument)
	}
}

func TestLoadBlueprintRejectsForwardContext(t *testing.T) {
	content := `
name: broken
agents:
  - name: analyzer
    role: Analyzer
tasks:
  - name: first
    description: first
    agent: analyzer
    context: [second]
  - name: second
    description: second
    agent: analyzer
`
	_, err := LoadBlueprint(writeBlueprintFile(t, content))
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("code = %s, want %s", xerrors.CodeOf(err), xerrors.CodeInvalidArgument)
	}
}

func TestLoadBlueprintRejectsUndefinedAgent(t *testing.T) {
	content := `
name: broken
agents:
  - name: analyzer
    role: Analyzer
tasks:
  - name: analyze
    description: analyze
    agent: ghost
`
	_, err := LoadBlueprint(writeBlueprintFile(t, content))
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("code = %s, want %s", xerrors.CodeOf(err), xerrors.CodeInvalidArgument)
	}
}

func TestBlueprintBuildAndKickoff(t *testing.T) {
	repo := t.TempDir()
	if err := os.WriteFile(filepath.Join(repo, "main.go"), []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("seed repo: %v", err)
	}

	blueprint, err := LoadBlueprint(writeBlueprintFile(t, sampleBlueprint))
	if err != nil {
		t.Fatalf("LoadBlueprint: %v", err)
	}

	cfg := config.CrewConfig{
		RepoPath:     repo,
		MaxFileBytes: 1 << 20,
		MaxListFiles: 100,
	}
	client := &scriptedLLM{outputs: []string{"analysis", "summary"}}
	c, err := blueprint.Build(cfg, client)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	result, err := c.Kickoff(context.Background())
	if err != nil {
		t.Fatalf("Kickoff: %v", err)
	}
	if result.Raw != "summary" {
		t.Fatalf("Raw = %q", result.Raw)
	}
	if len(client.requests) != 2 {
		t.Fatalf("expected 2 LLM calls, got %d", len(client.requests))
	}
}
