package rewriting

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/posh-docset/internal/types"
)

const themeURI = "_themes/docs.theme/master/en-us/_themes"

func testOptions() Options {
	return Options{
		Scheme:         "https",
		Domain:         "docs.microsoft.com",
		ThemeURI:       themeURI,
		ModulePath:     "en-us/powershell/module",
		ModuleLinkPath: "powershell/module",
		VersionParams:  versionParams,
		IconPath:       "docs.microsoft.com/en-us/media/toolbars/module.svg",
	}
}

const commandPage = `<!DOCTYPE html>
<html>
<head>
	<title>Get-Foo</title>
	<link rel="stylesheet" href="/_themes/docs.theme/master/en-us/_themes/styles/site.css?v=1">
	<link rel="stylesheet" href="https://cdn.example.com/external.css">
	<script src="/_themes/docs.theme/master/en-us/_themes/global/deprecation.js"></script>
	<script>window.tracking = true;</script>
</head>
<body>
	<ul class="breadcrumbs" role="navigation"><li>Docs</li></ul>
	<nav class="doc-outline" role="navigation">outline</nav>
	<div class="dropdown dropdown-full mobilenavi">mobile</div>
	<div class="dropdown dropdown-full">kept dropdown</div>
	<main>
		<a data-linktype="relative-path" href="./?view=powershell-7.1">Az.Accounts</a>
		<a data-linktype="relative-path" href="Get-Bar?view=powershell-7.1">Get-Bar</a>
		<a data-linktype="relative-path" href="weird link">Weird</a>
		<a data-linktype="absolute-path" href="/en-us/dotnet/api/system.string">System.String</a>
		<a href="https://example.com/plain">plain</a>
		<p>Content stays</p>
		<script>inline body script stays</script>
	</main>
	<div data-bi-name="rating">rate</div>
	<section class="feedback-section" data-bi-name="feedback-section">feedback</section>
	<footer data-bi-name="footer" id="footer">footer</footer>
</body>
</html>`

func parse(t *testing.T, s string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	require.NoError(t, err)
	return doc
}

func hrefOf(doc *goquery.Document, text string) string {
	var href string
	doc.Find("a").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Text() == text {
			href, _ = s.Attr("href")
			return false
		}
		return true
	})
	return href
}

func TestRewritePage_CommandPage(t *testing.T) {
	root := t.TempDir()
	pagePath := filepath.Join(root, "docs.microsoft.com", "en-us", "powershell", "module", "Az.Accounts", "Get-Foo.html")

	out, resources, err := New(testOptions(), nil).RewritePage(commandPage, pagePath, root, PageCommand)
	require.NoError(t, err)
	doc := parse(t, out)

	t.Run("navigation links", func(t *testing.T) {
		assert.Equal(t, "./Az.Accounts.html", hrefOf(doc, "Az.Accounts"))
		assert.Equal(t, "Get-Bar.html", hrefOf(doc, "Get-Bar"))
		assert.Equal(t, "weird link", hrefOf(doc, "Weird"))
		assert.Equal(t, "https://example.com/plain", hrefOf(doc, "plain"))
	})

	t.Run("absolute links become text", func(t *testing.T) {
		assert.Equal(t, 0, doc.Find(`a[data-linktype="absolute-path"]`).Length())
		assert.Contains(t, doc.Find("main").Text(), "System.String")
	})

	t.Run("chrome removed", func(t *testing.T) {
		assert.Equal(t, 0, doc.Find("ul.breadcrumbs, nav.doc-outline, footer, section.feedback-section").Length())
		assert.Equal(t, 0, doc.Find(`div[data-bi-name="rating"]`).Length())
		assert.Equal(t, 0, doc.Find(`div[class="dropdown dropdown-full mobilenavi"]`).Length())
		assert.Equal(t, 1, doc.Find(`div[class="dropdown dropdown-full"]`).Length())
		assert.Contains(t, doc.Find("main").Text(), "Content stays")
	})

	t.Run("head scripts removed", func(t *testing.T) {
		assert.Equal(t, 0, doc.Find("head script").Length())
		assert.Equal(t, 1, doc.Find("body script").Length())
	})

	t.Run("theme stylesheet localized", func(t *testing.T) {
		links := doc.Find(`link[rel="stylesheet"]`)
		require.Equal(t, 2, links.Length())

		local, _ := links.Eq(0).Attr("href")
		assert.Equal(t, "../../../../_themes/docs.theme/master/en-us/_themes/styles/site.css", local)
		external, _ := links.Eq(1).Attr("href")
		assert.Equal(t, "https://cdn.example.com/external.css", external)

		assert.Equal(t, types.NewResourceSet(types.ResourceRecord{
			SourceURL:  "https://docs.microsoft.com/_themes/docs.theme/master/en-us/_themes/styles/site.css?v=1",
			StoredPath: "docs.microsoft.com/_themes/docs.theme/master/en-us/_themes/styles/site.css",
		}), resources)
	})
}

func TestRewritePage_ResourceDedupAcrossPages(t *testing.T) {
	root := t.TempDir()
	rw := New(testOptions(), nil)

	all := types.ResourceSet{}
	for _, page := range []string{"A/A.html", "A/Get-A.html", "B/Get-B.html"} {
		p := filepath.Join(root, "docs.microsoft.com", "en-us", "powershell", "module", filepath.FromSlash(page))
		_, resources, err := rw.RewritePage(commandPage, p, root, KindOf(p))
		require.NoError(t, err)
		all.Union(resources)
	}

	assert.Len(t, all, 1)
}

func TestRewritePage_StylesheetRelativeToPageDepth(t *testing.T) {
	root := t.TempDir()
	page := `<html><head><link rel="stylesheet" href="_themes/docs.theme/master/en-us/_themes/a.css"></head><body></body></html>`

	out, _, err := New(testOptions(), nil).RewritePage(page, filepath.Join(root, "docs.microsoft.com", "en-us", "index.html"), root, PageIndex)
	require.NoError(t, err)

	href, _ := parse(t, out).Find("link").Attr("href")
	assert.Equal(t, "../_themes/docs.theme/master/en-us/_themes/a.css", href)
}

func TestRewritePage_StylesheetEscapingThemeTreeIgnored(t *testing.T) {
	root := t.TempDir()
	pagePath := filepath.Join(root, "docs.microsoft.com", "en-us", "powershell", "module", "Az.Accounts", "Get-Foo.html")

	hrefs := []string{
		"/_themes/docs.theme/master/en-us/_themes/../../../../../../../../etc/evil.css",
		"/_themes/docs.theme/master/en-us/_themes/../../other.css",
		"/_themes/docs.theme/master/en-us/_themesX/styles/site.css",
	}
	for _, href := range hrefs {
		t.Run(href, func(t *testing.T) {
			page := `<html><head><link rel="stylesheet" href="` + href + `"></head><body></body></html>`

			out, resources, err := New(testOptions(), nil).RewritePage(page, pagePath, root, PageCommand)
			require.NoError(t, err)
			assert.Empty(t, resources)

			got, _ := parse(t, out).Find("link").Attr("href")
			assert.Equal(t, href, got)
		})
	}
}

func TestRewritePage_StylesheetDotSegmentsInsideThemeTree(t *testing.T) {
	root := t.TempDir()
	pagePath := filepath.Join(root, "docs.microsoft.com", "en-us", "index.html")
	page := `<html><head><link rel="stylesheet" href="/_themes/docs.theme/master/en-us/_themes/global/../styles/site.css"></head><body></body></html>`

	_, resources, err := New(testOptions(), nil).RewritePage(page, pagePath, root, PageIndex)
	require.NoError(t, err)

	records := resources.Sorted()
	require.Len(t, records, 1)
	assert.Equal(t, "docs.microsoft.com/_themes/docs.theme/master/en-us/_themes/styles/site.css", records[0].StoredPath)
}

const indexPage = `<html>
<head>
	<link rel="stylesheet" href="/_themes/docs.theme/master/en-us/_themes/styles/site.css">
	<script src="head.js"></script>
</head>
<body>
	<div class="header-holder">header</div>
	<div id="action-panel">actions</div>
	<table class="api-search-results standalone">
		<tr>
			<td><img alt="Module" src="/en-us/media/toolbars/module.svg"></td>
			<td><a href="/en-us/powershell/module/Microsoft.PowerShell.Core/?view=powershell-7.1">Microsoft.PowerShell.Core</a></td>
			<td><a href="/en-us/powershell/scripting/overview">Overview</a></td>
		</tr>
	</table>
	<a data-linktype="absolute-path" href="/elsewhere">Elsewhere</a>
	<script async defer src="analytics.js"></script>
	<script src="kept.js"></script>
</body>
</html>`

func TestRewritePage_IndexPage(t *testing.T) {
	root := t.TempDir()
	pagePath := filepath.Join(root, "docs.microsoft.com", "en-us", "index.html")

	out, resources, err := New(testOptions(), nil).RewritePage(indexPage, pagePath, root, PageIndex)
	require.NoError(t, err)
	doc := parse(t, out)

	assert.Equal(t, "powershell/module/Microsoft.PowerShell.Core/Microsoft.PowerShell.Core.html", hrefOf(doc, "Microsoft.PowerShell.Core"))
	assert.Equal(t, "/en-us/powershell/scripting/overview", hrefOf(doc, "Overview"))
	// The start page keeps absolute links.
	assert.Equal(t, "/elsewhere", hrefOf(doc, "Elsewhere"))

	src, _ := doc.Find(`img[alt="Module"]`).Attr("src")
	assert.Equal(t, "media/toolbars/module.svg", src)

	assert.Equal(t, 0, doc.Find("div.header-holder, #action-panel").Length())
	assert.Equal(t, 0, doc.Find("head script").Length())
	assert.Equal(t, 0, doc.Find(`script[src="analytics.js"]`).Length())
	assert.Equal(t, 1, doc.Find(`script[src="kept.js"]`).Length())

	assert.Len(t, resources, 1)
}

func TestRewritePage_UnknownKind(t *testing.T) {
	_, _, err := New(testOptions(), nil).RewritePage("<html></html>", "x.html", ".", PageKind(42))
	assert.Error(t, err)
	assert.Equal(t, "PageKind(42)", PageKind(42).String())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, PageModule, KindOf(filepath.Join("root", "Appx", "Appx.html")))
	assert.Equal(t, PageCommand, KindOf(filepath.Join("root", "Appx", "Get-AppxPackage.html")))
	assert.Equal(t, "module", PageModule.String())
	assert.Equal(t, "command", PageCommand.String())
	assert.Equal(t, "index", PageIndex.String())
}

func TestRewriteTree(t *testing.T) {
	root := t.TempDir()
	moduleDir := filepath.Join(root, "docs.microsoft.com", "en-us", "powershell", "module", "Az.Accounts")
	require.NoError(t, os.MkdirAll(moduleDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(moduleDir, "Az.Accounts.html"), []byte(commandPage), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(moduleDir, "Get-Foo.html"), []byte(commandPage), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(moduleDir, "notes.txt"), []byte("untouched"), 0644))

	resources, err := New(testOptions(), nil).RewriteTree(root)
	require.NoError(t, err)
	assert.Len(t, resources, 1)

	data, err := os.ReadFile(filepath.Join(moduleDir, "Get-Foo.html"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `href="Get-Bar.html"`)
	assert.NotContains(t, string(data), "doc-outline")

	notes, err := os.ReadFile(filepath.Join(moduleDir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "untouched", string(notes))
}
