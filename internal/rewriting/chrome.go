package rewriting

import (
	"fmt"
	"strings"
)

type attrMatch struct {
	Name  string
	Value string
}

// chromeMatcher identifies a navigation element by tag and attributes.
// A single-word class matches as one of the element's classes; any other
// attribute, including a multi-word class, must match exactly.
type chromeMatcher struct {
	Tag   string
	Attrs []attrMatch
}

func chrome(tag string, attrs ...string) chromeMatcher {
	m := chromeMatcher{Tag: tag}
	for i := 0; i+1 < len(attrs); i += 2 {
		m.Attrs = append(m.Attrs, attrMatch{Name: attrs[i], Value: attrs[i+1]})
	}
	return m
}

func (m chromeMatcher) selector() string {
	var sb strings.Builder
	sb.WriteString(m.Tag)
	for _, a := range m.Attrs {
		if a.Name == "class" && !strings.Contains(a.Value, " ") {
			fmt.Fprintf(&sb, `[class~=%q]`, a.Value)
			continue
		}
		fmt.Fprintf(&sb, `[%s=%q]`, a.Name, a.Value)
	}
	return sb.String()
}

// contentChrome is removed from module and command pages.
var contentChrome = []chromeMatcher{
	chrome("nav", "class", "doc-outline", "role", "navigation"),
	chrome("ul", "class", "breadcrumbs", "role", "navigation"),
	chrome("div", "class", "sidebar", "role", "navigation"),
	chrome("div", "class", "dropdown dropdown-full mobilenavi"),
	chrome("p", "class", "api-browser-description"),
	chrome("div", "class", "api-browser-search-field-container"),
	chrome("div", "class", "pageActions"),
	chrome("div", "class", "container footerContainer"),
	chrome("div", "class", "dropdown-container"),
	chrome("div", "class", "page-action-holder"),
	chrome("div", "aria-label", "Breadcrumb", "role", "navigation"),
	chrome("div", "data-bi-name", "rating"),
	chrome("div", "data-bi-name", "feedback-section"),
	chrome("section", "class", "feedback-section", "data-bi-name", "feedback-section"),
	chrome("footer", "data-bi-name", "footer", "id", "footer"),
}

// indexChrome is removed from the documentation start page.
var indexChrome = []chromeMatcher{
	chrome("nav", "class", "doc-outline", "role", "navigation"),
	chrome("ul", "class", "breadcrumbs", "role", "navigation"),
	chrome("div", "class", "sidebar", "role", "navigation"),
	chrome("div", "class", "dropdown dropdown-full mobilenavi"),
	chrome("p", "class", "api-browser-description"),
	chrome("div", "class", "api-browser-search-field-container"),
	chrome("div", "class", "pageActions"),
	chrome("div", "class", "dropdown-container"),
	chrome("div", "class", "container footerContainer"),
	chrome("div", "data-bi-name", "header", "id", "headerAreaHolder"),
	chrome("div", "class", "header-holder"),
	chrome("div", "id", "action-panel"),
	chrome("div", "id", "api-browser-search-field-container"),
}
