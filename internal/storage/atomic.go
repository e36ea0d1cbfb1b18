package storage

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"
)

// temp files share the directory of their target, the storage root included
const tempFilePrefix = ".tmp-"

// writeFileAtomic streams r into a temp file next to path and renames it into
// place, so readers never observe a half-written file.
func writeFileAtomic(fs afero.Fs, path string, r io.Reader) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := afero.TempFile(fs, dir, tempFilePrefix+filepath.Base(path)+"-")
	if err != nil {
		return 0, fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()

	n, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return n, fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		fs.Remove(tmpName)
		return n, fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		fs.Remove(tmpName)
		return n, fmt.Errorf("close %s: %w", path, err)
	}

	if err := fs.Rename(tmpName, path); err != nil {
		fs.Remove(tmpName)
		return n, fmt.Errorf("rename %s to %s: %w", tmpName, path, err)
	}
	return n, nil
}
