package types

import (
	"os"
	"sync"
)

// StoredFile is a local blob with its user-facing name. The creator owns it
// until Release is called; Release runs its cleanup exactly once.
type StoredFile struct {
	ID       string
	Name     string
	Path     string
	MimeType string
	Size     int64

	once    sync.Once
	release func() error
	err     error
}

func NewStoredFile(id, name, path string, release func() error) *StoredFile {
	return &StoredFile{
		ID:      id,
		Name:    name,
		Path:    path,
		release: release,
	}
}

func (f *StoredFile) Open() (*os.File, error) {
	return os.Open(f.Path)
}

func (f *StoredFile) Release() error {
	if f == nil {
		return nil
	}
	f.once.Do(func() {
		if f.release != nil {
			f.err = f.release()
		}
	})
	return f.err
}

func ReleaseAll(files []*StoredFile) error {
	var first error
	for _, f := range files {
		if err := f.Release(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
