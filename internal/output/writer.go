package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	xerrors "github.com/Streamweaver/CodebaseDocumentationCrew/internal/errors"
)

// Writer 把文档内容落盘为按时间戳命名的 markdown 文件。
// 文件名形如 2006-01-02_15-04-05-000_label.md，毫秒段保证
// 同一秒内的多次写入互不覆盖。
type Writer struct {
	dir string

	mu sync.Mutex
}

// NewWriter 创建输出目录写入器。目录在首次写入时创建。
func NewWriter(dir string) (*Writer, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "输出目录不能为空")
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "解析输出目录失败")
	}
	return &Writer{dir: absDir}, nil
}

// Dir 返回输出目录的绝对路径。
func (w *Writer) Dir() string {
	return w.dir
}

// Write 把 content 原样写入一个新文件并返回其绝对路径。
// 文件只新建不覆盖：命名冲突时等待下一毫秒重试。
func (w *Writer) Write(label, content string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", xerrors.Wrap(xerrors.CodeOutputFailure, err, "创建输出目录失败")
	}

	label = sanitizeLabel(label)
	for {
		path := filepath.Join(w.dir, fileName(time.Now(), label))
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if os.IsExist(err) {
			time.Sleep(time.Millisecond)
			continue
		}
		if err != nil {
			return "", xerrors.Wrap(xerrors.CodeOutputFailure, err, "创建输出文件失败")
		}

		if _, err := file.WriteString(content); err != nil {
			file.Close()
			os.Remove(path)
			return "", xerrors.Wrap(xerrors.CodeOutputFailure, err, "写入输出文件失败")
		}
		if err := file.Close(); err != nil {
			return "", xerrors.Wrap(xerrors.CodeOutputFailure, err, "关闭输出文件失败")
		}
		return path, nil
	}
}

// fileName 渲染时间戳文件名，毫秒段固定三位。
func fileName(now time.Time, label string) string {
	return fmt.Sprintf("%s-%03d_%s.md",
		now.Format("2006-01-02_15-04-05"),
		now.Nanosecond()/int(time.Millisecond),
		label,
	)
}

// sanitizeLabel 把标签收敛为安全的文件名片段。
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "code_documentation"
	}
	var builder strings.Builder
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}
	return builder.String()
}
