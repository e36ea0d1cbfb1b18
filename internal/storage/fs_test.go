package storage

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// countingFs records reads of metadata documents and every mutation.
type countingFs struct {
	afero.Fs

	mu            sync.Mutex
	metadataReads int
	mutations     int
}

func newCountingFs() *countingFs {
	return &countingFs{Fs: afero.NewMemMapFs()}
}

func (c *countingFs) read(name string) {
	if filepath.Base(name) != metadataFileName {
		return
	}
	c.mu.Lock()
	c.metadataReads++
	c.mu.Unlock()
}

func (c *countingFs) mutate() {
	c.mu.Lock()
	c.mutations++
	c.mu.Unlock()
}

func (c *countingFs) reads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metadataReads
}

func (c *countingFs) mutationCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mutations
}

func (c *countingFs) Open(name string) (afero.File, error) {
	c.read(name)
	return c.Fs.Open(name)
}

func (c *countingFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		c.mutate()
	} else {
		c.read(name)
	}
	return c.Fs.OpenFile(name, flag, perm)
}

func (c *countingFs) Create(name string) (afero.File, error) {
	c.mutate()
	return c.Fs.Create(name)
}

func (c *countingFs) Mkdir(name string, perm os.FileMode) error {
	c.mutate()
	return c.Fs.Mkdir(name, perm)
}

func (c *countingFs) MkdirAll(path string, perm os.FileMode) error {
	c.mutate()
	return c.Fs.MkdirAll(path, perm)
}

func (c *countingFs) Remove(name string) error {
	c.mutate()
	return c.Fs.Remove(name)
}

func (c *countingFs) RemoveAll(path string) error {
	c.mutate()
	return c.Fs.RemoveAll(path)
}

func (c *countingFs) Rename(oldname, newname string) error {
	c.mutate()
	return c.Fs.Rename(oldname, newname)
}

func (c *countingFs) Chmod(name string, mode os.FileMode) error {
	c.mutate()
	return c.Fs.Chmod(name, mode)
}

func (c *countingFs) Chtimes(name string, atime, mtime time.Time) error {
	c.mutate()
	return c.Fs.Chtimes(name, atime, mtime)
}

const testRoot = "/store"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestHandler(t *testing.T, fs afero.Fs, opts ...Option) *FileHandler {
	t.Helper()
	require.NoError(t, fs.MkdirAll(testRoot, 0o755))
	h, err := NewFileHandler(fs, testRoot, testLogger(), opts...)
	require.NoError(t, err)
	return h
}
