package response

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	appLog "syllasync/internal/log"
)

// FileSaver writes calendar files into a directory.
//
// The blob is first staged in a temporary file next to the destination and
// then renamed into place. The staging file is always removed before Save
// returns, so nothing outlives the call except the final file.
type FileSaver struct {
	Dir string
}

// NewFileSaver creates a FileSaver rooted at dir ("" means the working
// directory).
func NewFileSaver(dir string) *FileSaver {
	if dir == "" {
		dir = "."
	}
	return &FileSaver{Dir: dir}
}

// Save implements Saver.
func (s *FileSaver) Save(name string, blob []byte) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	staged, err := os.CreateTemp(s.Dir, ".syllasync-download-*.tmp")
	if err != nil {
		return "", fmt.Errorf("stage download: %w", err)
	}
	stagedName := staged.Name()
	defer os.Remove(stagedName)

	if _, err := staged.Write(blob); err != nil {
		staged.Close()
		return "", fmt.Errorf("write download: %w", err)
	}
	if err := staged.Close(); err != nil {
		return "", fmt.Errorf("close download: %w", err)
	}
	if err := os.Chmod(stagedName, 0o644); err != nil {
		return "", err
	}

	target := filepath.Join(s.Dir, name)
	if err := os.Rename(stagedName, target); err != nil {
		return "", fmt.Errorf("save %s: %w", name, err)
	}

	appLog.Info("calendar file saved", "path", target, "bytes", len(blob))
	return target, nil
}

// MemorySaver keeps saved blobs in memory. The local web front uses it to
// serve the last calendar file back to the browser.
type MemorySaver struct {
	mu   sync.RWMutex
	name string
	blob []byte
}

// Save implements Saver.
func (m *MemorySaver) Save(name string, blob []byte) (string, error) {
	if name == "" {
		return "", errors.New("empty file name")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.name = name
	m.blob = append([]byte(nil), blob...)
	return name, nil
}

// Last returns the most recently saved file, if any.
func (m *MemorySaver) Last() (string, []byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.blob == nil {
		return "", nil, false
	}
	return m.name, m.blob, true
}
