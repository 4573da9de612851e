package crawling

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/posh-docset/internal/logging"
	"github.com/jonathan/posh-docset/internal/toc"
	"github.com/jonathan/posh-docset/internal/types"
)

// PageFetcher retrieves a page as text.
type PageFetcher interface {
	Text(ctx context.Context, url string) (string, error)
}

// Options configures a Crawler.
type Options struct {
	// ModulePath is the directory, relative to the output root, that holds
	// one sub-directory per module (e.g. "docs.microsoft.com/en-us/powershell/module").
	ModulePath string
	// Modules is the lower-cased module allow-list; empty keeps all modules.
	Modules []string
}

// Crawler downloads one page per TOC entry, sequentially.
type Crawler struct {
	fetcher PageFetcher
	opts    Options
	logger  *zap.Logger
}

// New creates a Crawler.
func New(fetcher PageFetcher, opts Options, logger *zap.Logger) *Crawler {
	return &Crawler{
		fetcher: fetcher,
		opts:    opts,
		logger:  logging.OrNop(logger),
	}
}

// Crawl downloads the TOC at tocURL and every module and command page it
// lists into outputDir. Page URLs resolve against tocURL and carry
// versionParam. Any fetch or write failure aborts the crawl.
func (c *Crawler) Crawl(ctx context.Context, tocURL, outputDir, versionParam string) (*types.Manifest, error) {
	c.logger.Debug("downloading toc", zap.String("url", tocURL))

	raw, err := c.fetcher.Text(ctx, tocURL)
	if err != nil {
		return nil, &CrawlError{Message: "failed to download TOC", Cause: err}
	}

	modules, err := toc.Parse([]byte(raw))
	if err != nil {
		return nil, &CrawlError{Message: "failed to parse TOC " + tocURL, Cause: err}
	}
	c.logger.Debug("raw modules", zap.Strings("modules", toc.Titles(modules)))

	if len(c.opts.Modules) > 0 {
		modules = toc.FilterModules(modules, c.opts.Modules)
		c.logger.Debug("filtered modules", zap.Strings("modules", toc.Titles(modules)))
	}

	manifest := &types.Manifest{}
	for _, module := range modules {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(module.Title) == "" {
			c.logger.Warn("skipping module without title", zap.String("href", module.Href))
			continue
		}

		c.logger.Info("download module", zap.String("module", module.Title))
		mod, err := c.crawlModule(ctx, module, tocURL, outputDir, versionParam)
		if err != nil {
			return nil, err
		}
		manifest.Add(mod)
	}

	return manifest, nil
}

func (c *Crawler) crawlModule(ctx context.Context, module toc.Entry, tocURL, outputDir, versionParam string) (types.ModuleManifest, error) {
	moduleDir := filepath.Join(outputDir, filepath.FromSlash(c.opts.ModulePath), fileName(module.Title))
	mod := types.ModuleManifest{Name: module.Title, Commands: []types.CommandEntry{}}

	if module.HasHref() {
		indexPath := filepath.Join(moduleDir, fileName(module.Title)+".html")
		saved, err := c.savePage(ctx, module.Href, tocURL, versionParam, indexPath)
		if err != nil {
			return mod, err
		}
		if saved {
			rel, err := relSlash(outputDir, indexPath)
			if err != nil {
				return mod, err
			}
			mod.Index = rel
		}
	} else {
		c.logger.Debug("module has no index page", zap.String("module", module.Title))
	}

	for _, cmd := range toc.Commands(module) {
		if !cmd.HasHref() {
			c.logger.Debug("skipping command without href", zap.String("module", module.Title), zap.String("command", cmd.Title))
			continue
		}

		cmdPath := filepath.Join(moduleDir, fileName(cmd.Title)+".html")
		c.logger.Debug("download command", zap.String("command", cmd.Title), zap.String("path", cmdPath))

		saved, err := c.savePage(ctx, cmd.Href, tocURL, versionParam, cmdPath)
		if err != nil {
			return mod, err
		}
		if !saved {
			continue
		}

		rel, err := relSlash(outputDir, cmdPath)
		if err != nil {
			return mod, err
		}
		mod.Commands = append(mod.Commands, types.CommandEntry{Name: cmd.Title, Path: rel})
	}

	return mod, nil
}

// savePage fetches href and writes it to path. It returns false without an
// error when href cannot be resolved.
func (c *Crawler) savePage(ctx context.Context, href, tocURL, versionParam, path string) (bool, error) {
	pageURL, err := ResolvePageURL(tocURL, href, versionParam)
	if err != nil {
		c.logger.Debug("unresolvable href", zap.String("href", href), zap.Error(err))
		return false, nil
	}

	html, err := c.fetcher.Text(ctx, pageURL)
	if err != nil {
		return false, &CrawlError{Message: "failed to download " + pageURL, Cause: err}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(html), 0644); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

// ResolvePageURL resolves href against the document it was found in and
// sets the version query parameter, replacing any value already present.
func ResolvePageURL(baseURL, href, versionParam string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("invalid href %q: %w", href, err)
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme in %q", resolved.String())
	}

	if versionParam != "" {
		version, err := url.ParseQuery(versionParam)
		if err != nil {
			return "", fmt.Errorf("invalid version parameter %q: %w", versionParam, err)
		}
		query := resolved.Query()
		for key, values := range version {
			query[key] = values
		}
		resolved.RawQuery = query.Encode()
	}
	return resolved.String(), nil
}

func relSlash(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", fmt.Errorf("failed to relativize %s: %w", path, err)
	}
	return filepath.ToSlash(rel), nil
}

// fileName keeps a TOC title usable as a single path element.
func fileName(title string) string {
	name := strings.NewReplacer("/", "_", "\\", "_").Replace(title)
	if name == "." || name == ".." {
		return "_"
	}
	return name
}
