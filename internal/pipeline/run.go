// Package pipeline provides the high-level orchestration of a docset build.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/posh-docset/internal/config"
	"github.com/jonathan/posh-docset/internal/crawling"
	"github.com/jonathan/posh-docset/internal/fetch"
	"github.com/jonathan/posh-docset/internal/fulltext"
	"github.com/jonathan/posh-docset/internal/logging"
	"github.com/jonathan/posh-docset/internal/packaging"
	"github.com/jonathan/posh-docset/internal/pipeline/steps"
	"github.com/jonathan/posh-docset/internal/rendering"
	"github.com/jonathan/posh-docset/internal/resources"
	"github.com/jonathan/posh-docset/internal/rewriting"
	"github.com/jonathan/posh-docset/internal/searchindex"
	"github.com/jonathan/posh-docset/internal/types"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step     string `json:"step"`
	Category string `json:"category"`
	Message  string `json:"message"`
	RunID    string `json:"run_id,omitempty"`
	Content  any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// RunOptions holds configuration for running the pipeline
type RunOptions struct {
	Config config.Config
	Site   config.Site
	// FetchOptions overrides the HTTP client settings; UserAgent from Config wins.
	FetchOptions  *fetch.Options
	PlistTemplate string
	Logger        *zap.Logger
	OnProgress    ProgressCallback
}

// runner carries the state of one build.
type runner struct {
	opts    RunOptions
	cfg     config.Config
	site    config.Site
	layout  packaging.Layout
	vp      string
	runID   string
	logger  *zap.Logger
	tracker *steps.Tracker
	client  *fetch.Client
	summary *types.BuildSummary
}

// emitProgress calls the progress callback if configured
func (r *runner) emitProgress(step, message string, content any) {
	if r.opts.OnProgress == nil {
		return
	}
	r.opts.OnProgress(ProgressEvent{
		Step:     step,
		Category: steps.StepRegistry[step].Category,
		Message:  message,
		RunID:    r.runID,
		Content:  content,
	})
}

// stage runs fn once its dependencies are complete and records it.
func (r *runner) stage(step, message string, fn func() error) error {
	if err := r.tracker.ValidateDependencies(step); err != nil {
		r.logger.Error("stage out of order",
			zap.String("stage", step),
			zap.Strings("available", r.tracker.GetAvailableSteps()))
		return err
	}

	r.logger.Info(message, zap.String("stage", step))
	r.emitProgress(step, message, nil)
	started := time.Now()

	if err := fn(); err != nil {
		return fmt.Errorf("%s failed: %w", step, err)
	}

	r.tracker.Complete(step)
	r.logger.Debug("stage complete", zap.String("stage", step), zap.Duration("elapsed", time.Since(started)))
	return nil
}

// RunPipeline builds the docset archive described by opts.Config.
func RunPipeline(ctx context.Context, opts RunOptions) (*types.BuildSummary, error) {
	started := time.Now()

	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	site := opts.Site
	if site.Domain == "" {
		site = config.DefaultSite()
	}

	runID := uuid.New().String()
	logger := logging.OrNop(opts.Logger).With(zap.String("run_id", runID))

	buildDir, cleanup, err := prepareBuildDir(&cfg)
	if err != nil {
		return nil, err
	}
	defer cleanup()
	if cfg.SecondaryDir == "" {
		cfg.SecondaryDir = filepath.Join(buildDir, "_win10_downloaded_contents")
	}

	r := &runner{
		opts:    opts,
		cfg:     cfg,
		site:    site,
		layout:  packaging.Layout{BuildDir: buildDir, DocsetName: site.DocsetName},
		vp:      cfg.VersionParam(),
		runID:   runID,
		logger:  logger,
		tracker: steps.NewTracker(),
		summary: &types.BuildSummary{
			RunID:   runID,
			Version: cfg.Version,
			Local:   cfg.Local,
			Archive: cfg.Output,
		},
	}
	logger.Info("building docset",
		zap.String("version", cfg.Version),
		zap.String("build_dir", buildDir),
		zap.Strings("modules", cfg.ModuleFilter()),
		zap.Bool("local", cfg.Local))

	if !cfg.Local {
		closeClient, err := r.openClient(ctx)
		if err != nil {
			return nil, err
		}
		defer closeClient()
	}

	manifest, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	r.summary.Modules = manifest.Len()
	r.summary.Pages = manifest.PageCount()
	r.emitProgress(steps.Download, "manifest ready", manifest)

	rw := rewriting.New(rewriting.Options{
		Scheme:         site.Scheme,
		Domain:         site.Domain,
		ThemeURI:       site.ThemeURI,
		ModulePath:     site.ModulePath,
		ModuleLinkPath: site.LinkPath,
		VersionParams:  []string{r.vp, config.SecondaryVersionParam},
		IconPath:       site.IconPath(),
	}, logger)

	var found types.ResourceSet
	err = r.stage(steps.Rewrite, "rewriting html pages", func() error {
		if err := packaging.CopyTree(r.layout.DownloadDir(), r.layout.RewriteDir()); err != nil {
			return err
		}
		stale := filepath.Join(r.layout.RewriteDir(), packaging.ManifestFileName)
		if err := os.Remove(stale); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		var err error
		found, err = rw.RewriteTree(r.layout.RewriteDir())
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(steps.Localize, "downloading additional resources", func() error {
		return r.localize(ctx, rw, found)
	})
	if err != nil {
		return nil, err
	}

	var rows []searchindex.Row
	err = r.stage(steps.Index, "creating docset", func() error {
		var err error
		rows, err = r.index(ctx, manifest)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.summary.IndexRows = len(rows)

	if cfg.FullText {
		err = r.stage(steps.FullText, "indexing page contents", func() error {
			n, err := r.fullText(ctx)
			r.summary.FullTextDocs = n
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	err = r.stage(steps.Package, "packaging docset", func() error {
		return packaging.Archive(r.layout.DocsetDir(), cfg.Output)
	})
	if err != nil {
		return nil, err
	}

	r.summary.Stages = r.tracker.Completed()
	r.summary.Duration = time.Since(started)
	r.emitProgress(steps.Package, "docset built", r.summary)
	logger.Info("docset written", zap.String("archive", cfg.Output))
	return r.summary, nil
}

// prepareBuildDir resolves the build folder. A temporary folder is removed
// by the returned cleanup.
func prepareBuildDir(cfg *config.Config) (string, func(), error) {
	if cfg.Temporary {
		dir, err := os.MkdirTemp("", "posh-docset-")
		if err != nil {
			return "", nil, fmt.Errorf("failed to create temporary build folder: %w", err)
		}
		return dir, func() { _ = os.RemoveAll(dir) }, nil
	}

	dir, err := cfg.ResolvedBuildDir()
	if err != nil {
		return "", nil, err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create build folder: %w", err)
	}
	return dir, func() {}, nil
}

// openClient creates the HTTP client and, when enabled, the render session
// used for the start page. A browser that cannot start falls back to plain HTTP.
func (r *runner) openClient(ctx context.Context) (func(), error) {
	fetchOpts := fetch.DefaultOptions()
	if r.opts.FetchOptions != nil {
		copied := *r.opts.FetchOptions
		fetchOpts = &copied
	}
	if r.cfg.UserAgent != "" {
		fetchOpts.UserAgent = r.cfg.UserAgent
	}
	r.client = fetch.NewClient(fetchOpts, r.logger)

	if !r.cfg.UseBrowser {
		return func() {}, nil
	}

	session, err := fetch.NewRenderSession(ctx, fetch.RenderOptions{
		Timeout:  r.cfg.RenderTimeout,
		ExecPath: r.cfg.BrowserPath,
	}, r.logger)
	if err != nil {
		r.logger.Warn("headless browser unavailable, start page fetched without rendering", zap.Error(err))
		return func() {}, nil
	}
	r.client.WithSession(session)
	return session.Close, nil
}

// acquire downloads the documentation tree, or loads the previous download
// in local mode.
func (r *runner) acquire(ctx context.Context) (*types.Manifest, error) {
	if r.cfg.Local {
		var manifest *types.Manifest
		err := r.stage(steps.LoadManifest, "reusing downloaded contents", func() error {
			var err error
			manifest, err = loadManifest(r.layout.ManifestPath())
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("no previous download in %s: %w", r.layout.DownloadDir(), err)
			}
			return err
		})
		return manifest, err
	}

	var manifest *types.Manifest
	err := r.stage(steps.Download, "downloading powershell documentation", func() error {
		if err := os.RemoveAll(r.layout.DownloadDir()); err != nil {
			return fmt.Errorf("failed to clear %s: %w", r.layout.DownloadDir(), err)
		}
		var err error
		manifest, err = r.crawler().Crawl(ctx, r.site.TocURL(r.vp), r.layout.DownloadDir(), r.vp)
		return err
	})
	if err != nil {
		return nil, err
	}

	if !r.cfg.NoSecondary {
		err = r.stage(steps.MergeSecondary, "merging windows server modules", func() error {
			secondary, err := r.secondaryManifest(ctx)
			if err != nil {
				return err
			}
			if err := packaging.MergeTree(r.cfg.SecondaryDir, r.layout.DownloadDir()); err != nil {
				return err
			}
			manifest.Merge(secondary)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	if err := saveManifest(r.layout.ManifestPath(), manifest); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (r *runner) crawler() *crawling.Crawler {
	return crawling.New(r.client, crawling.Options{
		ModulePath: r.site.BaseURL(),
		Modules:    r.cfg.ModuleFilter(),
	}, r.logger)
}

// secondaryManifest returns the cached Windows Server manifest, crawling
// it into the secondary folder on first use.
func (r *runner) secondaryManifest(ctx context.Context) (*types.Manifest, error) {
	cache := filepath.Join(r.cfg.SecondaryDir, packaging.ManifestFileName)

	manifest, err := loadManifest(cache)
	if err == nil {
		r.logger.Info("reusing windows server download", zap.String("dir", r.cfg.SecondaryDir))
		return manifest, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	manifest, err = r.crawler().Crawl(ctx, r.site.SecondaryTocURL(), r.cfg.SecondaryDir, config.SecondaryVersionParam)
	if err != nil {
		return nil, err
	}
	if err := saveManifest(cache, manifest); err != nil {
		return nil, err
	}
	return manifest, nil
}

func (r *runner) localize(ctx context.Context, rw *rewriting.Rewriter, found types.ResourceSet) error {
	if r.cfg.Local {
		// Assets fetched by an earlier online build are kept.
		return packaging.MergeTree(r.layout.RewriteDir(), r.layout.ResourcesDir())
	}

	if err := packaging.CopyTree(r.layout.RewriteDir(), r.layout.ResourcesDir()); err != nil {
		return err
	}

	localizer := resources.New(r.client, rw, r.logger)
	n, err := localizer.Localize(ctx, found, r.layout.ResourcesDir())
	r.summary.Resources += n
	if err != nil {
		return err
	}

	stats, err := localizer.LocalizeStartPage(ctx, resources.StartPage{
		URL:      r.site.IndexURL(r.vp),
		Path:     r.site.StartPagePath(),
		IconURL:  r.site.IconURL(),
		IconPath: r.site.IconPath(),
	}, r.layout.ResourcesDir())
	r.summary.Resources += stats.Resources
	return err
}

func (r *runner) index(ctx context.Context, manifest *types.Manifest) ([]searchindex.Row, error) {
	if err := packaging.CopyTree(r.layout.ResourcesDir(), r.layout.DocumentsDir()); err != nil {
		return nil, err
	}

	err := rendering.WriteInfoPlist(r.layout.ContentsDir(), rendering.PlistData{
		BundleID:       "powershell",
		Name:           r.site.DocsetName,
		PlatformFamily: "powershell",
		IndexFilePath:  r.site.StartPagePath(),
		FallbackURL:    r.site.IndexURL(r.vp),
	}, r.opts.PlistTemplate)
	if err != nil {
		return nil, err
	}

	return searchindex.Write(ctx, filepath.Join(r.layout.IndexDir(), searchindex.FileName), manifest, r.logger)
}

// fullText indexes the documents listed in the written lookup table.
func (r *runner) fullText(ctx context.Context) (int, error) {
	store, err := searchindex.Open(ctx, filepath.Join(r.layout.IndexDir(), searchindex.FileName))
	if err != nil {
		return 0, err
	}
	rows, err := store.Rows(ctx)
	_ = store.Close()
	if err != nil {
		return 0, err
	}
	return fulltext.Build(ctx, r.fullTextDir(), r.layout.DocumentsDir(), rows, r.logger)
}

// fullTextDir keeps the full-text index outside a temporary build folder.
func (r *runner) fullTextDir() string {
	if r.cfg.Temporary {
		return filepath.Join(filepath.Dir(r.cfg.Output), fulltext.DirName)
	}
	return filepath.Join(r.layout.BuildDir, fulltext.DirName)
}
