package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"opusdl/pkg/config"
)

// Manager resolves output paths from field templates and writes files
// atomically below a base directory
type Manager struct {
	baseDir     string
	dirPattern  string
	filePattern string
	overwrite   bool

	mu    sync.Mutex
	saved int
	bytes int64
}

// NewManager creates a new storage manager
func NewManager(cfg config.OutputConfig) (*Manager, error) {
	if cfg.BaseDirectory == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if cfg.FileNamePattern == "" {
		return nil, fmt.Errorf("file name pattern is required")
	}
	if err := os.MkdirAll(cfg.BaseDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &Manager{
		baseDir:     cfg.BaseDirectory,
		dirPattern:  cfg.DirectoryPattern,
		filePattern: cfg.FileNamePattern,
		overwrite:   cfg.OverwriteExisting,
	}, nil
}

// Directory returns the directory an article's files go to
func (m *Manager) Directory(fields map[string]interface{}) (string, error) {
	if m.dirPattern == "" {
		return m.baseDir, nil
	}
	segments := strings.Split(m.dirPattern, "/")
	parts := make([]string, 0, len(segments)+1)
	parts = append(parts, m.baseDir)
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		s, err := Format(seg, fields)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return filepath.Join(parts...), nil
}

// Path returns the full path of a single file
func (m *Manager) Path(fields map[string]interface{}) (string, error) {
	dir, err := m.Directory(fields)
	if err != nil {
		return "", err
	}
	name, err := Format(m.filePattern, fields)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// Exists reports whether path is already on disk and should not be
// written again
func (m *Manager) Exists(path string) bool {
	if m.overwrite {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Save writes r to path through a temporary file and a rename, creating
// parent directories as needed
func (m *Manager) Save(r io.Reader, path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := path + ".part"
	out, err := os.Create(tempFile)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to write file data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return 0, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.saved++
	m.bytes += n
	m.mu.Unlock()

	return n, nil
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.baseDir
}

// GetSavedCount returns the number of files written by this manager
func (m *Manager) GetSavedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved
}

// GetSavedBytes returns the number of bytes written by this manager
func (m *Manager) GetSavedBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bytes
}
