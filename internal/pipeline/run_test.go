package pipeline

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/jonathan/posh-docset/internal/config"
	"github.com/jonathan/posh-docset/internal/fetch"
	"github.com/jonathan/posh-docset/internal/fulltext"
	"github.com/jonathan/posh-docset/internal/packaging"
	"github.com/jonathan/posh-docset/internal/pipeline/steps"
	"github.com/jonathan/posh-docset/internal/schemas"
	"github.com/jonathan/posh-docset/internal/types"
)

const (
	modulePrefix = "/en-us/powershell/module"
	themeCSS     = "/_themes/docs.theme/master/en-us/_themes/styles/site.css"
)

const primaryTOC = `{"items":[{"children":[
	{"toc_title":"Az.Accounts","href":"../Az.Accounts/","children":[
		{"toc_title":"Get-Foo","href":"../Az.Accounts/Get-Foo"},
		{"toc_title":"About","href":"../Az.Accounts/About"}
	]}
]}]}`

const secondaryTOC = `{"items":[{"children":[
	{"toc_title":"Appx","href":"../Appx/","children":[
		{"toc_title":"Get-AppxPackage","href":"../Appx/Get-AppxPackage"}
	]}
]}]}`

func contentPage(body string) string {
	return `<html><head>
<link rel="stylesheet" href="` + themeCSS + `?v=3">
<script src="/analytics.js"></script>
</head><body>
<nav class="doc-outline" role="navigation">outline</nav>
<main>` + body + `</main>
</body></html>`
}

var pages = map[string]string{
	modulePrefix + "/psdocs/toc.json":               primaryTOC,
	modulePrefix + "/windowsserver2019-ps/toc.json": secondaryTOC,
	modulePrefix + "/Az.Accounts/": contentPage(
		`<a data-linktype="relative-path" href="Get-Foo?view=powershell-7.1">Get-Foo</a> manages accounts`),
	modulePrefix + "/Az.Accounts/Get-Foo": contentPage(
		`<a data-linktype="relative-path" href="./?view=powershell-7.1">Az.Accounts</a> Get-Foo reads the foo settings`),
	modulePrefix + "/Appx/": contentPage(
		`<a data-linktype="relative-path" href="Get-AppxPackage?view=windowsserver2019-ps">Get-AppxPackage</a>`),
	modulePrefix + "/Appx/Get-AppxPackage": contentPage(
		`<a data-linktype="relative-path" href="./?view=windowsserver2019-ps">Appx</a> lists installed app packages`),
	modulePrefix + "/": `<html><head><link rel="stylesheet" href="` + themeCSS + `"></head><body>
<table class="api-search-results"><tr>
<td><img alt="Module" src="/en-us/media/toolbars/module.svg"></td>
<td><a href="/en-us/powershell/module/Az.Accounts/?view=powershell-7.1">Az.Accounts</a></td>
</tr></table></body></html>`,
	themeCSS:                           "body {}",
	"/en-us/media/toolbars/module.svg": "<svg/>",
}

type origin struct {
	*httptest.Server
	mu   sync.Mutex
	hits map[string]int
}

func newOrigin(t *testing.T) *origin {
	t.Helper()
	o := &origin{hits: map[string]int{}}
	o.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		o.hits[r.URL.Path]++
		o.mu.Unlock()

		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(o.Close)
	return o
}

func (o *origin) count(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

func (o *origin) site(t *testing.T) config.Site {
	t.Helper()
	u, err := url.Parse(o.URL)
	require.NoError(t, err)

	site := config.DefaultSite()
	site.Scheme = "http"
	site.Domain = u.Host
	return site
}

func testOptions(t *testing.T, o *origin, work string) RunOptions {
	t.Helper()
	return RunOptions{
		Config: config.Config{
			Version:      "7.1",
			Output:       filepath.Join(work, "out", "Powershell.tgz"),
			BuildDir:     filepath.Join(work, "build"),
			SecondaryDir: filepath.Join(work, "secondary"),
		},
		Site:         o.site(t),
		FetchOptions: &fetch.Options{Backoff: time.Millisecond, ResetDelay: time.Millisecond},
	}
}

func queryRows(t *testing.T, dbPath string) map[string]string {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	rows, err := db.Query(`SELECT name, type FROM searchIndex`)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	out := map[string]string{}
	for rows.Next() {
		var name, kind string
		require.NoError(t, rows.Scan(&name, &kind))
		out[name] = kind
	}
	require.NoError(t, rows.Err())
	return out
}

func TestRunPipeline_EndToEnd(t *testing.T) {
	o := newOrigin(t)
	work := t.TempDir()
	opts := testOptions(t, o, work)
	opts.Config.FullText = true

	var events []ProgressEvent
	opts.OnProgress = func(e ProgressEvent) { events = append(events, e) }

	summary, err := RunPipeline(context.Background(), opts)
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 2, summary.Modules)
	assert.Equal(t, 4, summary.Pages)
	assert.Equal(t, 4, summary.IndexRows)
	assert.Equal(t, 4, summary.FullTextDocs)
	assert.Equal(t, 1, summary.Resources)
	assert.Equal(t, opts.Config.Output, summary.Archive)
	assert.Equal(t, []string{"download", "fulltext", "index", "localize", "merge_secondary", "package", "rewrite"}, summary.Stages)
	assert.FileExists(t, opts.Config.Output)

	assert.Equal(t, 0, o.count(modulePrefix+"/Az.Accounts/About"))
	assert.Equal(t, 1, o.count(themeCSS))

	out := t.TempDir()
	require.NoError(t, packaging.Extract(opts.Config.Output, out))
	docset := filepath.Join(out, "Powershell.docset")
	host := opts.Site.Domain
	documents := filepath.Join(docset, "Contents", "Resources", "Documents")
	moduleDir := filepath.Join(documents, host, "en-us", "powershell", "module")

	assert.FileExists(t, filepath.Join(docset, "Contents", "Info.plist"))
	assert.FileExists(t, filepath.Join(documents, host, "en-us", "index.html"))
	assert.FileExists(t, filepath.Join(documents, host, "en-us", "media", "toolbars", "module.svg"))
	assert.FileExists(t, filepath.Join(documents, host, filepath.FromSlash(themeCSS)))
	assert.NoFileExists(t, filepath.Join(documents, packaging.ManifestFileName))
	assert.NoFileExists(t, filepath.Join(moduleDir, "Az.Accounts", "About.html"))

	getFoo, err := os.ReadFile(filepath.Join(moduleDir, "Az.Accounts", "Get-Foo.html"))
	require.NoError(t, err)
	assert.Contains(t, string(getFoo), `href="./Az.Accounts.html"`)
	assert.Contains(t, string(getFoo), `href="../../../../_themes/docs.theme/master/en-us/_themes/styles/site.css"`)
	assert.NotContains(t, string(getFoo), "analytics.js")
	assert.NotContains(t, string(getFoo), "doc-outline")

	appx, err := os.ReadFile(filepath.Join(moduleDir, "Appx", "Get-AppxPackage.html"))
	require.NoError(t, err)
	assert.Contains(t, string(appx), `href="./Appx.html"`)

	assert.Equal(t, map[string]string{
		"Az.Accounts":     "Module",
		"Get-Foo":         "Command",
		"Appx":            "Module",
		"Get-AppxPackage": "Command",
	}, queryRows(t, filepath.Join(docset, "Contents", "Resources", "docSet.dsidx")))

	hits, err := fulltext.Search(filepath.Join(opts.Config.BuildDir, fulltext.DirName), "settings", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Get-Foo", hits[0].Name)

	var stagesSeen []string
	for _, e := range events {
		if e.Message != "" && e.Content == nil {
			stagesSeen = append(stagesSeen, e.Step)
		}
		assert.Equal(t, summary.RunID, e.RunID)
	}
	assert.Equal(t, []string{
		steps.Download, steps.MergeSecondary, steps.Rewrite,
		steps.Localize, steps.Index, steps.FullText, steps.Package,
	}, stagesSeen)
}

func TestRunPipeline_ReusesSecondaryDownload(t *testing.T) {
	o := newOrigin(t)
	work := t.TempDir()
	opts := testOptions(t, o, work)

	_, err := RunPipeline(context.Background(), opts)
	require.NoError(t, err)
	_, err = RunPipeline(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 1, o.count(modulePrefix+"/windowsserver2019-ps/toc.json"))
	assert.Equal(t, 2, o.count(modulePrefix+"/psdocs/toc.json"))
}

func TestRunPipeline_NoSecondary(t *testing.T) {
	o := newOrigin(t)
	opts := testOptions(t, o, t.TempDir())
	opts.Config.NoSecondary = true

	summary, err := RunPipeline(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Modules)
	assert.Equal(t, 2, summary.IndexRows)
	assert.Equal(t, 0, o.count(modulePrefix+"/windowsserver2019-ps/toc.json"))
}

func TestRunPipeline_ModuleFilter(t *testing.T) {
	o := newOrigin(t)
	opts := testOptions(t, o, t.TempDir())
	opts.Config.Modules = []string{"appx"}

	summary, err := RunPipeline(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Modules)
	assert.Equal(t, 0, o.count(modulePrefix+"/Az.Accounts/"))
}

func TestRunPipeline_LocalReusesDownload(t *testing.T) {
	o := newOrigin(t)
	work := t.TempDir()
	opts := testOptions(t, o, work)

	_, err := RunPipeline(context.Background(), opts)
	require.NoError(t, err)
	o.Close()

	opts.Config.Local = true
	require.NoError(t, os.Remove(opts.Config.Output))

	summary, err := RunPipeline(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, summary.Local)
	assert.Equal(t, 4, summary.IndexRows)
	assert.Equal(t, 0, summary.Resources)
	assert.FileExists(t, opts.Config.Output)

	// Assets localized by the online build survive the local rebuild.
	layout := packaging.Layout{BuildDir: opts.Config.BuildDir, DocsetName: "Powershell"}
	assert.FileExists(t, filepath.Join(layout.DocumentsDir(), opts.Site.Domain, filepath.FromSlash(themeCSS)))
}

func TestRunPipeline_LocalWithoutDownload(t *testing.T) {
	o := newOrigin(t)
	opts := testOptions(t, o, t.TempDir())
	opts.Config.Local = true

	_, err := RunPipeline(context.Background(), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunPipeline_FetchFailureAborts(t *testing.T) {
	o := newOrigin(t)
	opts := testOptions(t, o, t.TempDir())
	opts.Site.ModulePath = "en-us/missing"

	_, err := RunPipeline(context.Background(), opts)
	require.Error(t, err)

	var fetchErr *fetch.Error
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.NoFileExists(t, opts.Config.Output)
}

func TestRunPipeline_InvalidConfig(t *testing.T) {
	_, err := RunPipeline(context.Background(), RunOptions{Config: config.Config{Version: "6.0", Output: "x.tgz"}})
	assert.Error(t, err)
}

func TestRunPipeline_Temporary(t *testing.T) {
	o := newOrigin(t)
	work := t.TempDir()
	opts := testOptions(t, o, work)
	opts.Config.BuildDir = ""
	opts.Config.Temporary = true

	summary, err := RunPipeline(context.Background(), opts)
	require.NoError(t, err)
	assert.FileExists(t, summary.Archive)
	assert.NoDirExists(t, filepath.Join(work, "build"))
}

func TestManifestRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", packaging.ManifestFileName)
	manifest := &types.Manifest{}
	manifest.Add(types.ModuleManifest{
		Name:     "Az.Accounts",
		Index:    "m/Az.Accounts/Az.Accounts.html",
		Commands: []types.CommandEntry{{Name: "Get-Foo", Path: "m/Az.Accounts/Get-Foo.html"}},
	})
	manifest.Add(types.ModuleManifest{Name: "Container", Commands: []types.CommandEntry{}})

	require.NoError(t, saveManifest(path, manifest))
	loaded, err := loadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, manifest, loaded)

	_, err = loadManifest(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadManifest_RejectsMalformedCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), packaging.ManifestFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{"Az.Accounts": {"cmdlets": [{"name": "Get-Foo"}]}}`), 0644))

	_, err := loadManifest(path)
	require.Error(t, err)

	var validationErr *schemas.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "manifest", validationErr.Schema)
}
