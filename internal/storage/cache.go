package storage

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/docfold/blockparse-worker/internal/docai"
	"github.com/docfold/blockparse-worker/internal/logging"
)

// ResponseCache archives backend analyze results on disk so reruns of a
// batch do not pay for the same document twice. Entries are keyed by the
// blake3 hash of the source bytes: same bytes, same analysis.
type ResponseCache struct {
	dir    string
	logger *logging.Logger
}

// NewResponseCache creates a cache rooted at dir
func NewResponseCache(dir string) (*ResponseCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &ResponseCache{
		dir:    dir,
		logger: logging.NewLogger("ResponseCache"),
	}, nil
}

// HashBytes returns the blake3 hex digest used as a cache key
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached result for a document's bytes, if any
func (c *ResponseCache) Get(documentID string, data []byte) (*docai.AnalyzeResult, bool) {
	path := c.entryPath(documentID, data)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var result docai.AnalyzeResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// a corrupt entry is treated as a miss and overwritten later
		c.logger.Warn("Discarding corrupt cache entry", "path", path, "error", err)
		return nil, false
	}

	c.logger.Info("Cache hit", "document", documentID)
	return &result, true
}

// Put archives an analyze result for a document's bytes
func (c *ResponseCache) Put(documentID string, data []byte, result *docai.AnalyzeResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal analyze result: %w", err)
	}

	path := c.entryPath(documentID, data)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache entry dir: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}

	return nil
}

func (c *ResponseCache) entryPath(documentID string, data []byte) string {
	return filepath.Join(c.dir, documentID, HashBytes(data)+".json")
}
