package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileProvider reads files for log-inspection queries. Reads are confined to
// the configured root directory.
type FileProvider struct {
	root string
}

// NewFileProvider builds a provider rooted at root.
func NewFileProvider(root string) *FileProvider {
	if root == "" {
		root = "."
	}
	return &FileProvider{root: root}
}

func (p *FileProvider) Kind() string { return "file_content" }

// Invoke expects args["file_path"].
func (p *FileProvider) Invoke(_ context.Context, args map[string]string) Result {
	path := args["file_path"]
	if path == "" {
		return Fail("file read requires a path")
	}

	resolved, err := p.resolve(path)
	if err != nil {
		return Fail(err.Error())
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return Fail("文件不存在，请检查文件路径是否正确")
		}
		return Fail(fmt.Sprintf("读取文件失败: %v", err))
	}

	return Ok(map[string]interface{}{
		"path":    path,
		"content": string(data),
		"size":    len(data),
	})
}

// resolve confines the requested path to the provider root.
func (p *FileProvider) resolve(path string) (string, error) {
	cleaned := filepath.Clean(path)
	if filepath.IsAbs(cleaned) {
		rootAbs, err := filepath.Abs(p.root)
		if err != nil {
			return "", fmt.Errorf("resolve root: %w", err)
		}
		if !strings.HasPrefix(cleaned, rootAbs+string(filepath.Separator)) && cleaned != rootAbs {
			return "", fmt.Errorf("路径不在允许的目录内: %s", path)
		}
		return cleaned, nil
	}
	if strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("路径不在允许的目录内: %s", path)
	}
	return filepath.Join(p.root, cleaned), nil
}
