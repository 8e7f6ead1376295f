package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultCheckpointPath is where a run records how many products it indexed.
var DefaultCheckpointPath = filepath.Join(os.TempDir(), "retail-assistant-vectorize.progress")

// Checkpoint persists the resume offset of a vectorization run.
type Checkpoint struct {
	path string
}

// NewCheckpoint creates a checkpoint at path. An empty path disables it.
func NewCheckpoint(path string) *Checkpoint {
	return &Checkpoint{path: path}
}

// Load returns the saved offset, or 0 when none is saved.
func (c *Checkpoint) Load() (int, error) {
	if c == nil || c.path == "" {
		return 0, nil
	}
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read checkpoint: %w", err)
	}

	offset, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || offset < 0 {
		return 0, nil
	}
	return offset, nil
}

// Save records offset.
func (c *Checkpoint) Save(offset int) error {
	if c == nil || c.path == "" {
		return nil
	}
	if err := os.WriteFile(c.path, []byte(strconv.Itoa(offset)), 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return nil
}

// Clear removes the checkpoint after a completed run.
func (c *Checkpoint) Clear() error {
	if c == nil || c.path == "" {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove checkpoint: %w", err)
	}
	return nil
}
