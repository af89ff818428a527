package files

import (
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndRelease(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	f, err := store.Write("report.PDF", strings.NewReader("%PDF-1.4"))
	require.NoError(t, err)
	assert.Equal(t, "report.PDF", f.Name)
	assert.Equal(t, int64(8), f.Size)
	assert.True(t, strings.HasSuffix(f.Path, ".pdf"))
	assert.Equal(t, 1, store.Live())

	require.NoError(t, f.Release())
	assert.Equal(t, 0, store.Live())
	_, err = os.Stat(f.Path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, f.Release(), "second release is a no-op")
}

func TestReleaseRunsOnceUnderContention(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	f, err := store.WriteBytes("a.txt", []byte("hello"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = f.Release()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, store.Live())
}

func TestSealRejectsMissingAndEmptyOutput(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	missing := store.Reserve("out.pdf")
	assert.Error(t, store.Seal(missing))

	empty := store.Reserve("empty.pdf")
	require.NoError(t, os.WriteFile(empty.Path, nil, 0o644))
	assert.Error(t, store.Seal(empty))

	good := store.Reserve("good.pdf")
	require.NoError(t, os.WriteFile(good.Path, []byte("data"), 0o644))
	require.NoError(t, store.Seal(good))
	assert.Equal(t, int64(4), good.Size)

	require.NoError(t, store.Close())
	assert.Equal(t, 0, store.Live())
}

func TestCleanName(t *testing.T) {
	assert.Equal(t, "file", cleanName(""))
	assert.Equal(t, "passwd", cleanName("../../etc/passwd"))
	assert.Equal(t, "doc.docx", cleanName(`C:\Users\me\doc.docx`))
}

func TestScopeReleasesOnlyOwnedFiles(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	a, err := store.WriteBytes("a.pdf", []byte("a"))
	require.NoError(t, err)
	b, err := store.WriteBytes("b.pdf", []byte("b"))
	require.NoError(t, err)

	scope := &Scope{}
	scope.Add(a, b, nil)
	scope.Detach(b)
	require.NoError(t, scope.Close())

	assert.Equal(t, []string{"b.pdf"}, store.LiveNames())
	require.NoError(t, scope.Close())
	require.NoError(t, b.Release())
	assert.Equal(t, 0, store.Live())
}
