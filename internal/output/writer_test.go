package output

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var namePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}-\d{3}_code_documentation\.md$`)

func TestWriteCreatesTimestampedFile(t *testing.T) {
	writer, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	path, err := writer.Write("code_documentation", "# Docs\n")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !namePattern.MatchString(filepath.Base(path)) {
		t.Fatalf("unexpected file name: %s", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "# Docs\n" {
		t.Fatalf("content = %q, want verbatim input", data)
	}
}

func TestWriteNeverOverwrites(t *testing.T) {
	writer, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	paths := make(map[string]bool)
	for i := 0; i < 5; i++ {
		path, err := writer.Write("label", "content")
		if err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
		if paths[path] {
			t.Fatalf("path reused: %s", path)
		}
		paths[path] = true
	}

	entries, err := os.ReadDir(writer.Dir())
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 files, got %d", len(entries))
	}
}

func TestWriteSanitizesLabel(t *testing.T) {
	writer, err := NewWriter(t.TempDir())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	path, err := writer.Write("my repo/docs", "x")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	base := filepath.Base(path)
	if strings.ContainsAny(base, " /") {
		t.Fatalf("label not sanitized: %s", base)
	}
	if !strings.HasSuffix(base, "_my_repo_docs.md") {
		t.Fatalf("unexpected label segment: %s", base)
	}
}

func TestWriteCreatesDirectoryOnDemand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "output")
	writer, err := NewWriter(dir)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("directory should not exist before first write")
	}
	if _, err := writer.Write("label", "x"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("directory missing after write: %v", err)
	}
}

func TestNewWriterRejectsEmptyDir(t *testing.T) {
	if _, err := NewWriter("  "); err == nil {
		t.Fatal("expected error for empty dir")
	}
}
