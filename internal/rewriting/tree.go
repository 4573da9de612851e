package rewriting

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/jonathan/posh-docset/internal/types"
)

// KindOf classifies a downloaded page: a module index is saved as
// <module>/<module>.html, anything else is a command page.
func KindOf(pagePath string) PageKind {
	base := strings.TrimSuffix(filepath.Base(pagePath), filepath.Ext(pagePath))
	if base == filepath.Base(filepath.Dir(pagePath)) {
		return PageModule
	}
	return PageCommand
}

// RewriteTree rewrites every .html file under root in place and returns
// the union of the theme resources they reference.
func (r *Rewriter) RewriteTree(root string) (types.ResourceSet, error) {
	resources := types.ResourceSet{}

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".html") {
			return nil
		}

		r.logger.Debug("rewrite html file", zap.String("path", p))

		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}

		out, pageResources, err := r.RewritePage(string(data), p, root, KindOf(p))
		if err != nil {
			return err
		}
		resources.Union(pageResources)

		if err := os.WriteFile(p, []byte(out), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", p, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resources, nil
}
