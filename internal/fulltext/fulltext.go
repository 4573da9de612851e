// Package fulltext indexes the text of docset pages with bleve so they can
// be searched by content, not only by name.
package fulltext

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blevesearch/bleve/v2"
	"github.com/jaytaylor/html2text"
	"go.uber.org/zap"

	"github.com/jonathan/posh-docset/internal/logging"
	"github.com/jonathan/posh-docset/internal/searchindex"
	"github.com/jonathan/posh-docset/internal/types"
)

// DirName is the index directory created in the build folder.
const DirName = "fulltext.bleve"

const batchSize = 100

// Document is one indexed page.
type Document struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// Build creates a fresh index at indexDir with one document per row, read
// from documentsDir. It returns the number of indexed documents. Rows whose
// page is missing are skipped.
func Build(ctx context.Context, indexDir, documentsDir string, rows []searchindex.Row, logger *zap.Logger) (int, error) {
	logger = logging.OrNop(logger)

	if err := os.RemoveAll(indexDir); err != nil {
		return 0, fmt.Errorf("failed to remove old index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(indexDir), 0755); err != nil {
		return 0, fmt.Errorf("failed to create index directory: %w", err)
	}

	index, err := bleve.New(indexDir, bleve.NewIndexMapping())
	if err != nil {
		return 0, fmt.Errorf("failed to create index: %w", err)
	}

	count, err := indexRows(ctx, index, documentsDir, rows, logger)
	if cerr := index.Close(); err == nil && cerr != nil {
		return 0, fmt.Errorf("failed to close index: %w", cerr)
	}
	return count, err
}

func indexRows(ctx context.Context, index bleve.Index, documentsDir string, rows []searchindex.Row, logger *zap.Logger) (int, error) {
	batch := index.NewBatch()
	count := 0

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		doc, err := load(documentsDir, row)
		if os.IsNotExist(err) {
			logger.Debug("full-text source missing", zap.String("path", row.Path))
			continue
		}
		if err != nil {
			return count, err
		}

		if err := batch.Index(row.Path, doc); err != nil {
			return count, fmt.Errorf("failed to add %s to batch: %w", row.Path, err)
		}
		count++

		if batch.Size() >= batchSize {
			if err := index.Batch(batch); err != nil {
				return count, fmt.Errorf("failed to index batch: %w", err)
			}
			batch = index.NewBatch()
			logger.Debug("full-text batch indexed", zap.Int("documents", count))
		}
	}

	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			return count, fmt.Errorf("failed to index final batch: %w", err)
		}
	}
	return count, nil
}

func load(documentsDir string, row searchindex.Row) (Document, error) {
	data, err := os.ReadFile(filepath.Join(documentsDir, filepath.FromSlash(row.Path)))
	if err != nil {
		return Document{}, err
	}

	text, err := html2text.FromString(string(data), html2text.Options{TextOnly: true})
	if err != nil {
		return Document{}, fmt.Errorf("failed to extract text from %s: %w", row.Path, err)
	}

	return Document{
		Name:    row.Name,
		Type:    string(row.Type),
		Path:    row.Path,
		Content: text,
	}, nil
}

// Search runs a match query against the index at indexDir.
func Search(indexDir, query string, limit int) ([]types.SearchHit, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	index, err := bleve.Open(indexDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", indexDir, err)
	}
	defer func() { _ = index.Close() }()

	req := bleve.NewSearchRequest(bleve.NewMatchQuery(query))
	req.Size = limit
	req.Fields = []string{"name", "type", "path"}

	result, err := index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := make([]types.SearchHit, 0, len(result.Hits))
	for _, h := range result.Hits {
		hit := types.SearchHit{Path: h.ID, Score: h.Score}
		if name, ok := h.Fields["name"].(string); ok {
			hit.Name = name
		}
		if kind, ok := h.Fields["type"].(string); ok {
			hit.Type = kind
		}
		if p, ok := h.Fields["path"].(string); ok {
			hit.Path = p
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
