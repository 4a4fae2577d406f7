package uploader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"syllasync/internal/model"
)

// SetFiles replaces the selection. It is rejected while a submission is in
// flight.
func (c *Controller) SetFiles(files []model.FileHandle) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == model.SubmissionInFlight {
		return ErrSubmissionInFlight
	}
	c.files = append([]model.FileHandle(nil), files...)
	return nil
}

// SetDeliveryMode switches the delivery mode. The selected files are kept.
func (c *Controller) SetDeliveryMode(mode model.DeliveryMode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown delivery mode %q", mode)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == model.SubmissionInFlight {
		return ErrSubmissionInFlight
	}
	c.mode = mode
	return nil
}

// Mode returns the selected delivery mode.
func (c *Controller) Mode() model.DeliveryMode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SelectFromPaths reads the given files, expanding directories one level
// deep, and keeps those whose extension is in accept (case-insensitive).
// An empty accept list keeps everything. Explicitly named files that do
// not match are skipped, like a file picker filtered by extension.
func SelectFromPaths(paths []string, accept []string) ([]model.FileHandle, error) {
	var out []model.FileHandle

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("select %s: %w", p, err)
		}

		candidates := []string{p}
		if info.IsDir() {
			entries, err := os.ReadDir(p)
			if err != nil {
				return nil, fmt.Errorf("read dir %s: %w", p, err)
			}
			candidates = candidates[:0]
			for _, e := range entries {
				if e.Type()&fs.ModeType != 0 {
					continue
				}
				candidates = append(candidates, filepath.Join(p, e.Name()))
			}
		}

		for _, path := range candidates {
			if !Accepted(path, accept) {
				continue
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read %s: %w", path, err)
			}
			out = append(out, model.FileHandle{Name: filepath.Base(path), Content: data})
		}
	}

	return out, nil
}

// Accepted reports whether name has one of the accepted extensions.
func Accepted(name string, accept []string) bool {
	if len(accept) == 0 {
		return true
	}
	return slices.Contains(accept, strings.ToLower(filepath.Ext(name)))
}
