package searchindex

import (
	"context"

	"go.uber.org/zap"

	"github.com/jonathan/posh-docset/internal/logging"
	"github.com/jonathan/posh-docset/internal/types"
)

// Candidates lists the rows a manifest proposes, in traversal order.
// Modules without an index page propose no module row, and commands named
// like their module are skipped.
func Candidates(manifest *types.Manifest) []Row {
	if manifest == nil {
		return nil
	}

	var rows []Row
	for _, mod := range manifest.Modules {
		if mod.Index != "" {
			rows = append(rows, Row{Name: mod.Name, Type: types.KindModule, Path: mod.Index})
		}
		for _, cmd := range mod.Commands {
			if cmd.Name == mod.Name {
				continue
			}
			rows = append(rows, Row{Name: cmd.Name, Type: types.KindCommand, Path: cmd.Path})
		}
	}
	return rows
}

// Build inserts the manifest's candidates into store and returns the rows
// that were kept.
func Build(ctx context.Context, store *Store, manifest *types.Manifest, logger *zap.Logger) ([]Row, error) {
	logger = logging.OrNop(logger)

	var kept []Row
	for _, row := range Candidates(manifest) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		inserted, err := store.Insert(ctx, row)
		if err != nil {
			return nil, err
		}
		if !inserted {
			logger.Debug("duplicate index entry skipped",
				zap.String("name", row.Name),
				zap.String("type", string(row.Type)),
				zap.String("path", row.Path))
			continue
		}

		logger.Debug("index entry",
			zap.String("name", row.Name),
			zap.String("type", string(row.Type)),
			zap.String("path", row.Path))
		kept = append(kept, row)
	}
	return kept, nil
}

// Write rebuilds the index database at path from manifest.
func Write(ctx context.Context, path string, manifest *types.Manifest, logger *zap.Logger) ([]Row, error) {
	store, err := Create(ctx, path)
	if err != nil {
		return nil, err
	}

	rows, err := Build(ctx, store, manifest, logger)
	if cerr := store.Close(); err == nil && cerr != nil {
		return nil, cerr
	}
	return rows, err
}
