package storage

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

// AuditReport lists disagreements between the index and the storage tree.
type AuditReport struct {
	// Missing ids are indexed but lack content or metadata on disk
	Missing []string `json:"missing"`
	// Orphaned directories hold content and metadata but are not indexed
	Orphaned []string `json:"orphaned"`
	// Incomplete directories are not indexed and lack one of the two files
	Incomplete []string `json:"incomplete"`
}

// Clean reports whether the index and the tree agree.
func (r AuditReport) Clean() bool {
	return len(r.Missing) == 0 && len(r.Orphaned) == 0 && len(r.Incomplete) == 0
}

// Audit compares the index with the directories below the root. It only
// reports, it never repairs.
func (h *FileHandler) Audit() (AuditReport, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	entries, err := afero.ReadDir(h.fs, h.root)
	if err != nil {
		return AuditReport{}, fmt.Errorf("read storage root: %w", err)
	}

	report := AuditReport{Missing: []string{}, Orphaned: []string{}, Incomplete: []string{}}
	onDisk := make(map[string]bool)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		complete, err := h.complete(id)
		if err != nil {
			return AuditReport{}, err
		}
		onDisk[id] = complete

		if h.index.contains(id) {
			continue
		}
		if complete {
			report.Orphaned = append(report.Orphaned, id)
		} else {
			report.Incomplete = append(report.Incomplete, id)
		}
	}

	for id := range h.index {
		if !onDisk[id] {
			report.Missing = append(report.Missing, id)
		}
	}

	sort.Strings(report.Missing)
	sort.Strings(report.Orphaned)
	sort.Strings(report.Incomplete)

	if !report.Clean() {
		h.logger.Warn("storage audit found discrepancies",
			"missing", len(report.Missing),
			"orphaned", len(report.Orphaned),
			"incomplete", len(report.Incomplete))
	}
	return report, nil
}

// complete reports whether the directory of id holds both files.
func (h *FileHandler) complete(id string) (bool, error) {
	for _, name := range []string{contentFileName, metadataFileName} {
		ok, err := afero.Exists(h.fs, filepath.Join(h.root, id, name))
		if err != nil {
			return false, fmt.Errorf("stat %s of %s: %w", name, id, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
