// Package pipeline orchestrates an ingest run: fetch every enabled source
// concurrently, normalize the results, dedup across sources, and persist.
package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"time"
)

// SnapshotManager archives fetched article pages on disk, laid out as
// {root}/{source_id}/{YYYY-MM-DD}/{sha256(url)[:12]}.html so a day's pages
// for one source share a directory.
type SnapshotManager struct {
	root string
}

func NewSnapshotManager(root string) *SnapshotManager {
	return &SnapshotManager{root: root}
}

// Save writes one page snapshot and returns its path. The path is
// deterministic for a given (source, url, day), so refetching the same
// page on the same day overwrites rather than accumulating copies.
func (m *SnapshotManager) Save(sourceID, url string, html []byte, when time.Time) (string, error) {
	sum := sha256.Sum256([]byte(url))
	dir := filepath.Join(m.root, sourceID, when.UTC().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, hex.EncodeToString(sum[:])[:12]+".html")
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
