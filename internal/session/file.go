package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

// FileStore keeps client-side key/value pairs in a small JSON file, the
// terminal counterpart of browser local storage. Writes replace the file
// atomically.
type FileStore struct {
	path string
}

func NewFileStore(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("session: file path must not be empty")
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Load(_ context.Context) (string, error) {
	vals, err := s.read()
	if err != nil {
		return "", err
	}
	return vals[Key], nil
}

func (s *FileStore) Save(_ context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("session: Save: id must not be empty")
	}
	vals, err := s.read()
	if err != nil {
		return err
	}
	vals[Key] = id
	return s.write(vals)
}

func (s *FileStore) read() (map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", s.path, err)
	}
	vals := map[string]string{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return vals, nil
	}
	if err := json.Unmarshal(data, &vals); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", s.path, err)
	}
	return vals, nil
}

func (s *FileStore) write(vals map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("session: create dir: %w", err)
	}
	pending, err := renameio.NewPendingFile(s.path, renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("session: create pending file: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	enc := json.NewEncoder(pending)
	enc.SetIndent("", "  ")
	if err := enc.Encode(vals); err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("session: replace %s: %w", s.path, err)
	}
	return nil
}
