// Package toc parses the documentation site's hierarchical table of contents
// into the module and command entries the crawler downloads.
package toc

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Entry is one node of the table of contents.
type Entry struct {
	Title    string  `json:"toc_title"`
	Href     string  `json:"href,omitempty"`
	Children []Entry `json:"children,omitempty"`
}

// HasHref reports whether the node links to a page.
func (e Entry) HasHref() bool {
	return strings.TrimSpace(e.Href) != ""
}

// excludedChildren are pseudo-pages of a module that are never downloaded.
var excludedChildren = map[string]struct{}{
	"about":     {},
	"functions": {},
	"providers": {},
	"provider":  {},
}

// IsExcluded reports whether a module child with this title is skipped.
func IsExcluded(title string) bool {
	_, ok := excludedChildren[strings.ToLower(title)]
	return ok
}

// ParseError represents a TOC document that cannot be used.
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("toc parse error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("toc parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

type document struct {
	Items []Entry `json:"items"`
}

// Parse validates a TOC document and returns the module nodes, which are
// the children of the first top-level item. The rest of the document is ignored.
func Parse(data []byte) ([]Entry, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{Message: "invalid JSON", Cause: err}
	}
	return doc.Items[0].Children, nil
}

// FilterModules keeps the modules whose lower-cased title is in allowlist.
// An empty allowlist keeps every module. Order is preserved.
func FilterModules(modules []Entry, allowlist []string) []Entry {
	if len(allowlist) == 0 {
		return modules
	}

	allowed := make(map[string]struct{}, len(allowlist))
	for _, name := range allowlist {
		allowed[strings.ToLower(name)] = struct{}{}
	}

	filtered := make([]Entry, 0, len(modules))
	for _, m := range modules {
		if _, ok := allowed[strings.ToLower(m.Title)]; ok {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// Commands returns a module's children without the excluded pseudo-pages.
func Commands(module Entry) []Entry {
	commands := make([]Entry, 0, len(module.Children))
	for _, child := range module.Children {
		if IsExcluded(child.Title) {
			continue
		}
		commands = append(commands, child)
	}
	return commands
}

// Titles lists entry titles, for logging.
func Titles(entries []Entry) []string {
	titles := make([]string, len(entries))
	for i, e := range entries {
		titles[i] = e.Title
	}
	return titles
}
