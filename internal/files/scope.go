package files

import (
	"errors"
	"sync"

	"github.com/BatmanBruc/any2any-bot/types"
)

// Scope owns a set of files for the lifetime of one operation. Close releases
// whatever is still owned; Detach hands a file over to another owner.
type Scope struct {
	mu    sync.Mutex
	files []*types.StoredFile
}

func (s *Scope) Add(files ...*types.StoredFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range files {
		if f != nil {
			s.files = append(s.files, f)
		}
	}
}

func (s *Scope) Detach(f *types.StoredFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, owned := range s.files {
		if owned == f {
			s.files = append(s.files[:i], s.files[i+1:]...)
			return
		}
	}
}

func (s *Scope) Close() error {
	s.mu.Lock()
	owned := s.files
	s.files = nil
	s.mu.Unlock()

	var errs []error
	for _, f := range owned {
		if err := f.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
