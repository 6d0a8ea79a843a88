package tools

import (
	"context"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"
)

// DirectoryListTool 将 DirectoryReader 包装成可注入提示词的观察工具。
type DirectoryListTool struct {
	reader *DirectoryReader
}

// NewDirectoryListTool 创建目录列举工具。
func NewDirectoryListTool(reader *DirectoryReader) *DirectoryListTool {
	return &DirectoryListTool{reader: reader}
}

// Name 返回工具名。
func (t *DirectoryListTool) Name() string {
	return "List files in directory"
}

// Observe 返回仓库文件列表的文本观察。
func (t *DirectoryListTool) Observe(_ context.Context) (string, error) {
	return t.reader.Describe()
}

// wellKnownFiles 是优先注入的清单与入口文件名。
var wellKnownFiles = []string{
	"README.md", "README.rst", "README.txt",
	"go.mod", "package.json", "pyproject.toml", "setup.py", "requirements.txt",
	"Cargo.toml", "pom.xml", "build.gradle",
	"Makefile", "Dockerfile", "docker-compose.yml",
	"main.go", "main.py", "index.js", "app.py",
}

// FileProbeTool 读取仓库中的关键文件并注入内容片段，供智能体在
// 不具备交互式工具调用的情况下了解仓库内容。
type FileProbeTool struct {
	lister       *DirectoryReader
	reader       *FileReader
	maxFiles     int
	excerptBytes int
}

// NewFileProbeTool 创建关键文件采样工具。
func NewFileProbeTool(lister *DirectoryReader, reader *FileReader, maxFiles, excerptBytes int) *FileProbeTool {
	if maxFiles <= 0 {
		maxFiles = 12
	}
	if excerptBytes <= 0 {
		excerptBytes = 8 * 1024
	}
	return &FileProbeTool{
		lister:       lister,
		reader:       reader,
		maxFiles:     maxFiles,
		excerptBytes: excerptBytes,
	}
}

// Name 返回工具名。
func (t *FileProbeTool) Name() string {
	return "Read File"
}

// Observe 采样关键文件并渲染为带围栏的片段。
func (t *FileProbeTool) Observe(_ context.Context) (string, error) {
	files, err := t.lister.List()
	if err != nil {
		return "", err
	}
	selected := t.selectFiles(files)
	if len(selected) == 0 {
		return "No readable key files found in the repository.", nil
	}

	var builder strings.Builder
	for _, file := range selected {
		content, err := t.reader.Read(file)
		if err != nil {
			// 读取失败的文件以错误说明代替内容，不中断整体观察。
			builder.WriteString(fmt.Sprintf("### %s\nError: could not read file (%v)\n\n", file, err))
			continue
		}
		if len(content) > t.excerptBytes {
			// 回退到完整字符边界，避免截断多字节字符。
			cut := t.excerptBytes
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut] + "\n... (truncated)"
		}
		builder.WriteString(fmt.Sprintf("### %s\n```\n%s\n```\n\n", file, content))
	}
	return builder.String(), nil
}

// selectFiles 优先选取清单与入口文件，再按列表顺序补足源码文件。
func (t *FileProbeTool) selectFiles(files []string) []string {
	known := make(map[string]bool, len(wellKnownFiles))
	for _, name := range wellKnownFiles {
		known[name] = true
	}

	selected := make([]string, 0, t.maxFiles)
	seen := make(map[string]bool, t.maxFiles)
	for _, file := range files {
		if known[path.Base(file)] {
			selected = append(selected, file)
			seen[file] = true
			if len(selected) >= t.maxFiles {
				return selected
			}
		}
	}
	for _, file := range files {
		if seen[file] {
			continue
		}
		if !isSourceFile(file) {
			continue
		}
		selected = append(selected, file)
		if len(selected) >= t.maxFiles {
			break
		}
	}
	return selected
}

var sourceExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".rs": true,
	".java": true, ".rb": true, ".c": true, ".h": true, ".cpp": true,
	".sh": true, ".sql": true, ".yaml": true, ".yml": true, ".toml": true,
}

func isSourceFile(file string) bool {
	return sourceExtensions[strings.ToLower(path.Ext(file))]
}
