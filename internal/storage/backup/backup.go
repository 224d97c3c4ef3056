// Package backup writes per-article JSON snapshots to a local directory for
// downstream consumption. The backup directory is a convenience export, not a
// source of truth; writes here are independent of the article store.
package backup

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/riverdogs/newscrawler/internal/scraper"
)

// Store writes article snapshots to a base directory.
type Store struct {
	baseDir string
}

// New creates the backup directory if needed and verifies it is writable.
func New(baseDir string) (*Store, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("backup directory is required")
	}

	info, err := os.Stat(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(baseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("create backup directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat backup directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("backup path is not a directory")
	}

	testFile := filepath.Join(baseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("backup directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("clean up test file: %w", err)
	}

	return &Store{baseDir: baseDir}, nil
}

// Write serializes the article as a pretty-printed JSON document and writes
// it under a deterministic name derived from the article URL. Non-Latin
// characters are written as-is. The written path is returned.
func (s *Store) Write(_ context.Context, article scraper.Article) (string, error) {
	data, err := Marshal(article)
	if err != nil {
		return "", fmt.Errorf("encode article: %w", err)
	}
	path := filepath.Join(s.baseDir, FileName(article, time.Now()))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write backup file: %w", err)
	}
	return path, nil
}

// Count returns the number of JSON backup files currently on disk.
func (s *Store) Count() (int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0, fmt.Errorf("read backup directory: %w", err)
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			count++
		}
	}
	return count, nil
}

// Dir returns the backup directory path.
func (s *Store) Dir() string {
	return s.baseDir
}

// FileName derives the backup file name from the article identity: a stable
// digest of the URL when present, a timestamp otherwise. Stable names mean
// re-ingesting a URL overwrites its snapshot instead of accumulating copies.
func FileName(article scraper.Article, now time.Time) string {
	if article.URL != "" {
		sum := sha1.Sum([]byte(article.URL))
		return fmt.Sprintf("article_%s.json", hex.EncodeToString(sum[:])[:12])
	}
	return fmt.Sprintf("article_%s.json", now.Format("20060102_150405"))
}

// Marshal renders the article as an indented JSON document without HTML
// escaping, so non-ASCII text survives round trips through external tools.
func Marshal(article scraper.Article) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(article); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
