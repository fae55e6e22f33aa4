package offset

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrEmpty reports that the offset file is absent or holds no value yet.
// Recovery decides whether that means a fresh log or an inconsistent one.
var ErrEmpty = fmt.Errorf("offset store is empty")

// Store persists the log tail as decimal ASCII in a single small file.
// The file is rewritten wholesale on every update and fsynced before the
// new tail is considered durable.
type Store struct {
	path string
	file *os.File
}

func Open(path string) (*Store, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open offset file %s: %w", path, err)
	}
	return &Store{path: path, file: f}, nil
}

// ReadTail parses the stored tail. Returns ErrEmpty when no value has been
// written yet.
func (s *Store) ReadTail() (int64, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("read offset file: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, ErrEmpty
	}
	tail, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse offset %q: %w", text, err)
	}
	if tail < 0 {
		return 0, fmt.Errorf("negative offset %d", tail)
	}
	return tail, nil
}

// WriteTail replaces the stored value with tail and syncs it to disk.
func (s *Store) WriteTail(tail int64) error {
	if err := s.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate offset file: %w", err)
	}
	if _, err := s.file.Seek(0, 0); err != nil {
		return fmt.Errorf("seek offset file: %w", err)
	}
	if _, err := s.file.WriteString(strconv.FormatInt(tail, 10)); err != nil {
		return fmt.Errorf("write offset file: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync offset file: %w", err)
	}
	return nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.file.Close()
}
