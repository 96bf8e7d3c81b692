package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// ordinalWidth is the zero padding of saved file names (000001.jpg)
const ordinalWidth = 6

// Manager owns one subject folder and hands out sequential file names.
// The counter only moves forward, so a number freed by a removed duplicate
// is never given out again.
type Manager struct {
	outputDir string
	next      int
	mu        sync.Mutex
}

// NewManager creates the folder if needed and resumes numbering after the
// highest ordinal already present.
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	m := &Manager{outputDir: outputDir, next: 1}
	if err := m.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}
	return m, nil
}

// scanExistingFiles positions the counter past every numeric file stem
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		n, err := strconv.Atoi(stem)
		if err != nil || n < 0 {
			continue
		}
		if n >= m.next {
			m.next = n + 1
		}
	}
	return nil
}

// Allocate reserves the next ordinal
func (m *Manager) Allocate() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.next
	m.next++
	return n
}

// FileName renders an ordinal and extension as a folder entry name
func FileName(ordinal int, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%0*d.%s", ordinalWidth, ordinal, ext)
}

// Save writes data under the next free ordinal and returns the final path.
// The bytes go to a temporary file first; the final name is claimed with a
// hard link so an existing file is never overwritten.
func (m *Manager) Save(data []byte, ext string) (string, error) {
	tmp, err := os.CreateTemp(m.outputDir, ".incoming-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	_, err = tmp.Write(data)
	closeErr := tmp.Close()
	if err != nil {
		return "", fmt.Errorf("failed to write image data: %w", err)
	}
	if closeErr != nil {
		return "", fmt.Errorf("failed to close file: %w", closeErr)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return "", fmt.Errorf("failed to set file mode: %w", err)
	}

	// a name can be taken by another process writing into the same folder
	for attempt := 0; attempt < 100; attempt++ {
		path := filepath.Join(m.outputDir, FileName(m.Allocate(), ext))
		err := os.Link(tmpName, path)
		if err == nil {
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("failed to move image into place: %w", err)
		}
	}
	return "", fmt.Errorf("failed to find a free file name in %s", m.outputDir)
}

// Remove deletes a file written by Save. A file that is already gone is not an error.
func (m *Manager) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// Dir returns the subject folder
func (m *Manager) Dir() string {
	return m.outputDir
}

// Next returns the ordinal the next save will try first
func (m *Manager) Next() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next
}

// Count returns the number of saved images in the folder
func (m *Manager) Count() (int, error) {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read directory: %w", err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			n++
		}
	}
	return n, nil
}
