package bot

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// OffsetStore persists the dispatch watermark as a plain-text integer file.
// It is read once at startup and overwritten after each dispatched batch.
type OffsetStore struct {
	path string
}

// NewOffsetStore creates an OffsetStore backed by the given file path.
func NewOffsetStore(path string) (*OffsetStore, error) {
	if path == "" {
		return nil, fmt.Errorf("bot: state path is required")
	}
	return &OffsetStore{path: path}, nil
}

// Load reads the persisted watermark. A missing file means a fresh start
// and yields 0; unparsable content is an error.
func (s *OffsetStore) Load() (int64, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("bot: read state file %s: %w", s.path, err)
	}
	id, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bot: state file %s is corrupted: %w", s.path, err)
	}
	return id, nil
}

// Save overwrites the persisted watermark.
func (s *OffsetStore) Save(id int64) error {
	if err := os.WriteFile(s.path, []byte(strconv.FormatInt(id, 10)), 0o644); err != nil {
		return fmt.Errorf("bot: write state file %s: %w", s.path, err)
	}
	return nil
}
