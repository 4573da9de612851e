// Package resources downloads the shared assets rewritten pages depend on,
// plus the documentation start page and its module icon.
package resources

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/posh-docset/internal/logging"
	"github.com/jonathan/posh-docset/internal/rewriting"
	"github.com/jonathan/posh-docset/internal/types"
)

// Downloader is the subset of fetch.Client the localizer needs.
type Downloader interface {
	Rendered(ctx context.Context, url string) (string, error)
	DownloadText(ctx context.Context, url, outputPath string) error
	DownloadBinary(ctx context.Context, url, outputPath string) error
}

// PageRewriter rewrites one page; *rewriting.Rewriter implements it.
type PageRewriter interface {
	RewritePage(htmlText, pagePath, contentRoot string, kind rewriting.PageKind) (string, types.ResourceSet, error)
}

// StartPage locates the documentation start page and its module icon.
// Paths are relative to the content root with forward slashes.
type StartPage struct {
	URL      string
	Path     string
	IconURL  string
	IconPath string
}

// Stats counts what a localization run fetched.
type Stats struct {
	Resources int
	StartPage bool
	Icon      bool
}

// Localizer fetches each distinct stored path at most once per instance.
type Localizer struct {
	downloader Downloader
	rewriter   PageRewriter
	logger     *zap.Logger
	fetched    map[string]bool
}

// New creates a Localizer.
func New(downloader Downloader, rewriter PageRewriter, logger *zap.Logger) *Localizer {
	return &Localizer{
		downloader: downloader,
		rewriter:   rewriter,
		logger:     logging.OrNop(logger),
		fetched:    map[string]bool{},
	}
}

// Localize saves every resource of set under contentRoot. Records sharing a
// stored path are fetched once; the first in sorted order wins.
func (l *Localizer) Localize(ctx context.Context, set types.ResourceSet, contentRoot string) (int, error) {
	count := 0
	for _, record := range set.Sorted() {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		if l.fetched[record.StoredPath] {
			l.logger.Debug("resource already localized", zap.String("path", record.StoredPath))
			continue
		}

		target, err := storedTarget(contentRoot, record.StoredPath)
		if err != nil {
			return count, err
		}
		l.logger.Debug("download resource", zap.String("url", record.SourceURL), zap.String("path", record.StoredPath))
		if err := l.downloader.DownloadText(ctx, record.SourceURL, target); err != nil {
			return count, fmt.Errorf("failed to localize %s: %w", record.SourceURL, err)
		}
		l.fetched[record.StoredPath] = true
		count++
	}
	return count, nil
}

// LocalizeStartPage renders the start page, rewrites it with the index
// rules, saves it and localizes any stylesheet it adds. The module icon
// is then downloaded as binary.
func (l *Localizer) LocalizeStartPage(ctx context.Context, page StartPage, contentRoot string) (Stats, error) {
	var stats Stats

	if page.URL != "" {
		l.logger.Info("download start page", zap.String("url", page.URL))

		raw, err := l.downloader.Rendered(ctx, page.URL)
		if err != nil {
			return stats, fmt.Errorf("failed to download start page: %w", err)
		}

		pagePath, err := storedTarget(contentRoot, page.Path)
		if err != nil {
			return stats, err
		}
		out, found, err := l.rewriter.RewritePage(raw, pagePath, contentRoot, rewriting.PageIndex)
		if err != nil {
			return stats, err
		}
		if err := os.MkdirAll(filepath.Dir(pagePath), 0755); err != nil {
			return stats, fmt.Errorf("failed to create directory for %s: %w", pagePath, err)
		}
		if err := os.WriteFile(pagePath, []byte(out), 0644); err != nil {
			return stats, fmt.Errorf("failed to write %s: %w", pagePath, err)
		}
		stats.StartPage = true

		n, err := l.Localize(ctx, found, contentRoot)
		stats.Resources += n
		if err != nil {
			return stats, err
		}
	}

	if page.IconURL != "" {
		l.logger.Debug("download module icon", zap.String("url", page.IconURL))
		target, err := storedTarget(contentRoot, page.IconPath)
		if err != nil {
			return stats, err
		}
		if err := l.downloader.DownloadBinary(ctx, page.IconURL, target); err != nil {
			return stats, fmt.Errorf("failed to download module icon: %w", err)
		}
		stats.Icon = true
	}

	return stats, nil
}

// storedTarget resolves a stored path under contentRoot, rejecting paths
// that are absolute or climb out of it.
func storedTarget(contentRoot, storedPath string) (string, error) {
	clean := path.Clean(storedPath)
	if storedPath == "" || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("stored path %q escapes %s", storedPath, contentRoot)
	}
	return filepath.Join(contentRoot, filepath.FromSlash(clean)), nil
}
