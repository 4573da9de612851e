// Package rewriting turns downloaded documentation pages into offline pages:
// it rewrites navigation links to local files, strips site chrome and
// scripts, and reports the theme stylesheets that must be localized.
package rewriting

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/jonathan/posh-docset/internal/logging"
	"github.com/jonathan/posh-docset/internal/types"
)

// PageKind selects the rewrite rules applied to a page.
type PageKind int

const (
	PageIndex PageKind = iota
	PageModule
	PageCommand
)

func (k PageKind) String() string {
	switch k {
	case PageIndex:
		return "index"
	case PageModule:
		return "module"
	case PageCommand:
		return "command"
	}
	return fmt.Sprintf("PageKind(%d)", int(k))
}

// Options describes the site whose pages are rewritten.
type Options struct {
	Scheme string
	Domain string
	// ThemeURI is the path prefix of shared theme assets, without leading slash.
	ThemeURI string
	// ModulePath locates module directories under Domain on disk.
	ModulePath string
	// ModuleLinkPath is how module links appear in start page hrefs.
	ModuleLinkPath string
	// VersionParams are the accepted "view=..." values of parent links.
	VersionParams []string
	// IconPath is the module icon, relative to the content root.
	IconPath string
}

// profile holds the rules of one page kind.
type profile struct {
	linkSelector     string
	rewriteLink      func(r *Rewriter, link linkContext) (string, bool)
	unlinkAbsolute   bool
	chrome           []chromeMatcher
	stripBodyScripts bool
	fixModuleIcons   bool
}

type linkContext struct {
	href        string
	text        string
	pagePath    string
	contentRoot string
}

var contentProfile = profile{
	linkSelector:   `a[data-linktype="relative-path"]`,
	rewriteLink:    (*Rewriter).rewriteContentLink,
	unlinkAbsolute: true,
	chrome:         contentChrome,
}

var profiles = map[PageKind]profile{
	PageModule:  contentProfile,
	PageCommand: contentProfile,
	PageIndex: {
		linkSelector:     `table[class~="api-search-results"] a`,
		rewriteLink:      (*Rewriter).rewriteIndexLink,
		chrome:           indexChrome,
		stripBodyScripts: true,
		fixModuleIcons:   true,
	},
}

// Rewriter rewrites pages of one site.
type Rewriter struct {
	opts          Options
	modulePattern *regexp.Regexp
	logger        *zap.Logger
}

// New creates a Rewriter.
func New(opts Options, logger *zap.Logger) *Rewriter {
	if opts.Scheme == "" {
		opts.Scheme = "https"
	}
	return &Rewriter{
		opts:          opts,
		modulePattern: ModuleIndexPattern(opts.ModuleLinkPath),
		logger:        logging.OrNop(logger),
	}
}

// RewritePage rewrites one page saved at pagePath inside contentRoot and
// returns the new document with the theme resources it references.
func (r *Rewriter) RewritePage(htmlText, pagePath, contentRoot string, kind PageKind) (string, types.ResourceSet, error) {
	prof, ok := profiles[kind]
	if !ok {
		return "", nil, fmt.Errorf("unknown page kind %v", kind)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse HTML %s: %w", pagePath, err)
	}

	r.rewriteLinks(doc, prof, pagePath, contentRoot)

	if prof.unlinkAbsolute {
		doc.Find(`a[data-linktype="absolute-path"]`).Each(func(_ int, s *goquery.Selection) {
			s.ReplaceWithNodes(&html.Node{Type: html.TextNode, Data: s.Text()})
		})
	}

	if prof.fixModuleIcons {
		r.fixModuleIcons(doc, pagePath, contentRoot)
	}

	for _, m := range prof.chrome {
		doc.Find(m.selector()).Remove()
	}

	doc.Find("head script").Remove()
	if prof.stripBodyScripts {
		doc.Find("body script[async][defer]").Remove()
	}

	resources, err := r.localizeStylesheets(doc, pagePath, contentRoot)
	if err != nil {
		return "", nil, err
	}

	out, err := doc.Html()
	if err != nil {
		return "", nil, fmt.Errorf("failed to render HTML %s: %w", pagePath, err)
	}
	return out, resources, nil
}

func (r *Rewriter) rewriteLinks(doc *goquery.Document, prof profile, pagePath, contentRoot string) {
	doc.Find(prof.linkSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok {
			return
		}

		fixed, ok := prof.rewriteLink(r, linkContext{
			href:        href,
			text:        s.Text(),
			pagePath:    pagePath,
			contentRoot: contentRoot,
		})
		if !ok {
			r.logger.Debug("unrecognized link left untouched", zap.String("page", pagePath), zap.String("href", href))
			return
		}
		if fixed != href {
			r.logger.Debug("link rewrite", zap.String("from", href), zap.String("to", fixed))
			s.SetAttr("href", fixed)
		}
	})
}

func (r *Rewriter) rewriteContentLink(link linkContext) (string, bool) {
	if target, ok := ParentLinkTarget(link.href, link.text, r.opts.VersionParams); ok {
		return target, true
	}
	return CommandLinkTarget(link.href)
}

func (r *Rewriter) rewriteIndexLink(link linkContext) (string, bool) {
	name, ok := ModuleIndexLinkName(r.modulePattern, link.href)
	if !ok {
		return "", false
	}
	target := filepath.Join(link.contentRoot, r.opts.Domain, filepath.FromSlash(r.opts.ModulePath), name, name+".html")
	rel, err := relativeTo(link.pagePath, target)
	if err != nil {
		return "", false
	}
	return rel, true
}

func (r *Rewriter) fixModuleIcons(doc *goquery.Document, pagePath, contentRoot string) {
	if r.opts.IconPath == "" {
		return
	}
	icon := filepath.Join(contentRoot, filepath.FromSlash(r.opts.IconPath))
	rel, err := relativeTo(pagePath, icon)
	if err != nil {
		r.logger.Debug("cannot relativize module icon", zap.Error(err))
		return
	}
	doc.Find(`table[class~="api-search-results"] img[alt="Module"]`).SetAttr("src", rel)
}

// localizeStylesheets points theme stylesheets at their local copy and
// records where each must be fetched from. Other stylesheets stay external,
// as do theme hrefs whose cleaned path leaves the theme tree.
func (r *Rewriter) localizeStylesheets(doc *goquery.Document, pagePath, contentRoot string) (types.ResourceSet, error) {
	resources := types.ResourceSet{}
	var firstErr error

	doc.Find(`head link[rel~="stylesheet"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		uriPath := strings.TrimLeft(strings.TrimSpace(href), "/")
		if r.opts.ThemeURI == "" || !strings.HasPrefix(uriPath, r.opts.ThemeURI) {
			return
		}

		ref, err := url.Parse(uriPath)
		if err != nil {
			r.logger.Debug("malformed stylesheet href", zap.String("href", href), zap.Error(err))
			return
		}

		storedPath := path.Clean(path.Join(r.opts.Domain, ref.Path))
		if !strings.HasPrefix(storedPath, path.Join(r.opts.Domain, r.opts.ThemeURI)+"/") {
			r.logger.Debug("stylesheet outside theme tree", zap.String("href", href), zap.String("stored", storedPath))
			return
		}

		rel, err := relativeTo(pagePath, filepath.Join(contentRoot, filepath.FromSlash(storedPath)))
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}

		s.SetAttr("href", rel)
		resources.Add(types.ResourceRecord{
			SourceURL:  fmt.Sprintf("%s://%s/%s", r.opts.Scheme, r.opts.Domain, uriPath),
			StoredPath: storedPath,
		})
	})

	if firstErr != nil {
		return nil, firstErr
	}
	return resources, nil
}

// relativeTo returns target relative to the directory of pagePath, with forward slashes.
func relativeTo(pagePath, target string) (string, error) {
	rel, err := filepath.Rel(filepath.Dir(pagePath), target)
	if err != nil {
		return "", fmt.Errorf("failed to relativize %s from %s: %w", target, pagePath, err)
	}
	return filepath.ToSlash(rel), nil
}
