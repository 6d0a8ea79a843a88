package tools

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// DirectoryReader 递归列举仓库目录下的文件，并跳过指定的子目录。
type DirectoryReader struct {
	root       string
	ignoreDirs map[string]struct{}
	maxFiles   int
}

// NewDirectoryReader 创建目录列举工具。
func NewDirectoryReader(root string, ignoreDirs []string, maxFiles int) (*DirectoryReader, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("仓库路径不能为空")
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("解析仓库路径失败: %w", err)
	}
	if maxFiles <= 0 {
		maxFiles = 2000
	}
	ignored := make(map[string]struct{}, len(ignoreDirs))
	for _, dir := range ignoreDirs {
		dir = strings.TrimSpace(dir)
		if dir == "" {
			continue
		}
		ignored[dir] = struct{}{}
	}
	return &DirectoryReader{root: absRoot, ignoreDirs: ignored, maxFiles: maxFiles}, nil
}

// Root 返回归一化后的仓库根路径。
func (d *DirectoryReader) Root() string {
	return d.root
}

// List 返回仓库内全部文件的相对路径，按字典序排列。
func (d *DirectoryReader) List() ([]string, error) {
	var files []string
	err := filepath.WalkDir(d.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if _, skip := d.ignoreDirs[entry.Name()]; skip && path != d.root {
				return filepath.SkipDir
			}
			return nil
		}
		rel, relErr := filepath.Rel(d.root, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, filepath.ToSlash(rel))
		if len(files) >= d.maxFiles {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("遍历仓库目录失败: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// Describe 以工具观察的形式渲染文件列表，供提示词注入。
func (d *DirectoryReader) Describe() (string, error) {
	files, err := d.List()
	if err != nil {
		return "", err
	}
	// 观察文本会注入英文提示词，这里保持英文。
	if len(files) == 0 {
		return "No files found in the repository.", nil
	}
	var builder strings.Builder
	builder.WriteString("File paths:\n")
	for _, file := range files {
		builder.WriteString("- ")
		builder.WriteString(file)
		builder.WriteString("\n")
	}
	return builder.String(), nil
}
