package capture

import (
	"fmt"
	"os"
	"path/filepath"
)

// Sink persists one encoded frame and reports the written path.
type Sink interface {
	Save(dir, filename string, data []byte) (string, error)
}

// FileSink writes frames as files, creating the directory on demand.
type FileSink struct{}

// Save writes data to dir/filename.
func (FileSink) Save(dir, filename string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create captures dir: %w", err)
	}
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
