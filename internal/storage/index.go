package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/altafino/attachment-store/internal/attachment"
)

const indexFileName = "toc.txt"

var (
	ErrCorruptIndex = errors.New("corrupt index file")
	ErrReservedID   = errors.New("attachment id is reserved by the storage layout")
)

// validID accepts ids that are valid attachment ids and do not collide with
// the files the handler keeps next to the attachment directories.
func validID(id string) error {
	if err := attachment.ValidateID(id); err != nil {
		return err
	}
	if id == indexFileName || strings.HasPrefix(id, tempFilePrefix) {
		return fmt.Errorf("%w: %q", ErrReservedID, id)
	}
	return nil
}

// index is the in-memory set of attachment ids mirrored in toc.txt.
type index map[string]struct{}

func (ix index) add(id string)    { ix[id] = struct{}{} }
func (ix index) remove(id string) { delete(ix, id) }

func (ix index) contains(id string) bool {
	_, ok := ix[id]
	return ok
}

// sorted returns the ids in ascending order.
func (ix index) sorted() []string {
	ids := make([]string, 0, len(ix))
	for id := range ix {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// decodeIndex parses one id per line. Blank lines are skipped and duplicates
// collapse. Ids are taken verbatim, so a padded line is corrupt.
func decodeIndex(r io.Reader) (index, error) {
	ix := make(index)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		id := scanner.Text()
		if strings.TrimSpace(id) == "" {
			continue
		}
		if err := validID(id); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrCorruptIndex, line, err)
		}
		ix.add(id)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptIndex, err)
	}
	return ix, nil
}

func (ix index) encode() string {
	var sb strings.Builder
	for _, id := range ix.sorted() {
		sb.WriteString(id)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// readIndex loads the index at path. A missing file is an empty index.
func readIndex(fs afero.Fs, path string) (index, error) {
	f, err := fs.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(index), nil
		}
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	defer f.Close()
	return decodeIndex(f)
}

func writeIndex(fs afero.Fs, path string, ix index) error {
	if _, err := writeFileAtomic(fs, path, strings.NewReader(ix.encode())); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}
