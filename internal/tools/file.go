package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"
)

// FileReader 读取仓库内的文件内容。所有路径都会被归一化到仓库根目录之下，
// 禁止越界访问；超过大小上限的文件会被拒绝读取。
type FileReader struct {
	basePath string
	maxSize  int64

	mu    sync.RWMutex
	cache map[string]string
}

// NewFileReader 创建文件读取工具。
func NewFileReader(basePath string, maxSize int64) (*FileReader, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, fmt.Errorf("基础路径不能为空")
	}
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("解析基础路径失败: %w", err)
	}
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	return &FileReader{
		basePath: abs,
		maxSize:  maxSize,
		cache:    make(map[string]string),
	}, nil
}

// normalize 将相对或绝对路径归一化到基础路径之下。
func (f *FileReader) normalize(path string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(f.basePath, path))
	if cleaned != f.basePath && !strings.HasPrefix(cleaned, f.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("拒绝访问: 路径 %q 超出了仓库根目录", path)
	}
	return cleaned, nil
}

// Read 返回指定文件的内容。重复读取同一文件会命中缓存。
func (f *FileReader) Read(path string) (string, error) {
	full, err := f.normalize(path)
	if err != nil {
		return "", err
	}

	f.mu.RLock()
	cached, ok := f.cache[full]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	info, err := os.Stat(full)
	if err != nil {
		return "", fmt.Errorf("读取文件失败: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%q 是目录，不是文件", path)
	}
	if info.Size() > f.maxSize {
		return "", fmt.Errorf("文件 %q 超过大小上限 %d 字节", path, f.maxSize)
	}

	raw, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("读取文件失败: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("文件 %q 不是有效的 UTF-8 文本", path)
	}
	content := string(raw)

	f.mu.Lock()
	f.cache[full] = content
	f.mu.Unlock()
	return content, nil
}
