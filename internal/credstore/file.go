package credstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/ghodss/yaml"
)

const (
	fileDirPerms  = 0o700
	filePerms     = 0o600
	defaultSubdir = ".ledger"
	defaultFile   = "credentials"
)

type credentialsFile struct {
	Values map[string]string `json:"values"`
}

// FileStore keeps values in a YAML file. Every Get reads the file again, so
// changes made by another process are picked up on the next request.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The file is created on the
// first Set.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// DefaultPath returns ~/.ledger/credentials.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "~"
	}
	return filepath.Join(home, defaultSubdir, defaultFile)
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.read()
	if err != nil {
		return "", false, err
	}
	v, ok := c.Values[key]
	return v, ok, nil
}

func (s *FileStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.read()
	if err != nil {
		return err
	}
	c.Values[key] = value
	return s.write(c)
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := c.Values[key]; !ok {
		return nil
	}
	delete(c.Values, key)
	return s.write(c)
}

func (s *FileStore) read() (credentialsFile, error) {
	c := credentialsFile{Values: map[string]string{}}
	b, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, nil
	}
	if err != nil {
		return c, fmt.Errorf("read credentials %s: %w", s.path, err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, fmt.Errorf("unmarshal credentials %s: %w", s.path, err)
	}
	if c.Values == nil {
		c.Values = map[string]string{}
	}
	return c, nil
}

func (s *FileStore) write(c credentialsFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), fileDirPerms); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}

	// Write to a sibling and rename so readers never see a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(filePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}
