// Package packaging lays out the staged build folders, assembles the
// .docset bundle, and archives it for distribution.
package packaging

import "path/filepath"

// Stage folder names inside the build directory.
const (
	DownloadStage  = "_1_downloaded_contents"
	RewriteStage   = "_2_html_rewrite"
	ResourcesStage = "_3_additional_resources"
	PackageStage   = "_4_ready_to_be_packaged"
)

// ManifestFileName is the serialized manifest saved beside downloaded pages.
const ManifestFileName = "toc.json"

// Layout resolves every path of a build rooted at BuildDir.
type Layout struct {
	BuildDir   string
	DocsetName string
}

// DownloadDir holds pages exactly as downloaded.
func (l Layout) DownloadDir() string { return filepath.Join(l.BuildDir, DownloadStage) }

// RewriteDir holds rewritten pages.
func (l Layout) RewriteDir() string { return filepath.Join(l.BuildDir, RewriteStage) }

// ResourcesDir holds rewritten pages plus localized assets.
func (l Layout) ResourcesDir() string { return filepath.Join(l.BuildDir, ResourcesStage) }

// PackageDir holds the assembled bundle.
func (l Layout) PackageDir() string { return filepath.Join(l.BuildDir, PackageStage) }

// DocsetDir is the <Name>.docset bundle.
func (l Layout) DocsetDir() string { return filepath.Join(l.PackageDir(), l.DocsetName+".docset") }

// ContentsDir holds Info.plist.
func (l Layout) ContentsDir() string { return filepath.Join(l.DocsetDir(), "Contents") }

// IndexDir holds the lookup table database.
func (l Layout) IndexDir() string { return filepath.Join(l.ContentsDir(), "Resources") }

// DocumentsDir is the bundle's content root.
func (l Layout) DocumentsDir() string { return filepath.Join(l.IndexDir(), "Documents") }

// ManifestPath is the manifest of the download stage.
func (l Layout) ManifestPath() string { return filepath.Join(l.DownloadDir(), ManifestFileName) }
