package rewriting

import (
	"regexp"
	"strings"
)

// Each link shape is recognized by its own function so the grammars can be
// tested and replaced independently of the document traversal.

// commandLinkPattern: PATH "?view=" VERSION
// where PATH is one or more of [A-Za-z0-9_./-] and VERSION of [A-Za-z0-9_.-].
// The first match anywhere in the href is used.
var commandLinkPattern = regexp.MustCompile(`([\w./-]+)\?view=[\w.-]+`)

// ParentLinkTarget recognizes the "back to module" link, whose href is
// exactly "./?" followed by one of the accepted version parameters, and
// returns "./<text>.html".
func ParentLinkTarget(href, text string, versionParams []string) (string, bool) {
	for _, vp := range versionParams {
		if href == "./?"+vp {
			return "./" + strings.TrimSpace(text) + ".html", true
		}
	}
	return "", false
}

// CommandLinkTarget extracts the page identifier of a versioned relative
// link and returns "<identifier>.html".
func CommandLinkTarget(href string) (string, bool) {
	m := commandLinkPattern.FindStringSubmatch(href)
	if m == nil {
		return "", false
	}
	return m[1] + ".html", true
}

// ModuleIndexPattern matches start page links to a module index:
// "/" LINKPATH "/" NAME ["/"] "?view=powershell-"
// where NAME is one or more of [A-Za-z0-9_.-].
func ModuleIndexPattern(linkPath string) *regexp.Regexp {
	return regexp.MustCompile(`/` + regexp.QuoteMeta(strings.Trim(linkPath, "/")) + `/([\w.-]+)/?\?view=powershell-`)
}

// ModuleIndexLinkName returns the module named by a start page link.
func ModuleIndexLinkName(pattern *regexp.Regexp, href string) (string, bool) {
	m := pattern.FindStringSubmatch(href)
	if m == nil {
		return "", false
	}
	return strings.Trim(m[1], "/"), true
}
