// Package files keeps transient blobs on local disk and tracks which of them
// are still owned by someone.
package files

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/BatmanBruc/any2any-bot/types"
)

type Store struct {
	dir  string
	mu   sync.Mutex
	live map[string]*types.StoredFile
}

// NewStore creates dir if needed.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		dir = filepath.Join(os.TempDir(), "any2any")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &Store{
		dir:  dir,
		live: make(map[string]*types.StoredFile),
	}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// Reserve allocates a path for name without creating the file. External tools
// write to Path; call Seal afterwards to record the size.
func (s *Store) Reserve(name string) *types.StoredFile {
	id := uuid.NewString()
	name = cleanName(name)
	path := filepath.Join(s.dir, id+strings.ToLower(filepath.Ext(name)))

	f := types.NewStoredFile(id, name, path, func() error {
		s.mu.Lock()
		delete(s.live, id)
		s.mu.Unlock()
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	})

	s.mu.Lock()
	s.live[id] = f
	s.mu.Unlock()
	return f
}

func (s *Store) Write(name string, r io.Reader) (*types.StoredFile, error) {
	f := s.Reserve(name)
	out, err := os.Create(f.Path)
	if err != nil {
		_ = f.Release()
		return nil, err
	}

	n, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = f.Release()
		return nil, err
	}
	f.Size = n
	return f, nil
}

func (s *Store) WriteBytes(name string, data []byte) (*types.StoredFile, error) {
	return s.Write(name, strings.NewReader(string(data)))
}

// Seal checks that a reserved file was produced and is not empty.
func (s *Store) Seal(f *types.StoredFile) error {
	info, err := os.Stat(f.Path)
	if err != nil {
		return fmt.Errorf("result file was not created: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("result file is empty: %s", f.Name)
	}
	f.Size = info.Size()
	return nil
}

func (s *Store) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

func (s *Store) LiveNames() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.live))
	for _, f := range s.live {
		names = append(names, f.Name)
	}
	s.mu.Unlock()
	sort.Strings(names)
	return names
}

// Close releases everything still live. Used on shutdown.
func (s *Store) Close() error {
	s.mu.Lock()
	pending := make([]*types.StoredFile, 0, len(s.live))
	for _, f := range s.live {
		pending = append(pending, f)
	}
	s.mu.Unlock()
	return types.ReleaseAll(pending)
}

func cleanName(name string) string {
	name = strings.TrimSpace(filepath.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "file"
	}
	return name
}
