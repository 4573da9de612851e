package config

import "fmt"

// SecondaryVersionParam versions pages of the Windows Server module tree.
const SecondaryVersionParam = "view=windowsserver2019-ps"

// Site describes the documentation origin being mirrored.
type Site struct {
	Scheme     string // "https"
	Domain     string // "docs.microsoft.com"
	ModulePath string // path under Domain holding the module tree
	LinkPath   string // module tree as it appears in start page links
	ThemeURI   string // theme asset prefix, without leading slash
	DocsetName string
}

// DefaultSite returns the PowerShell documentation site.
func DefaultSite() Site {
	return Site{
		Scheme:     "https",
		Domain:     "docs.microsoft.com",
		ModulePath: "en-us/powershell/module",
		LinkPath:   "powershell/module",
		ThemeURI:   "_themes/docs.theme/master/en-us/_themes",
		DocsetName: "Powershell",
	}
}

// Origin returns scheme://domain.
func (s Site) Origin() string {
	return fmt.Sprintf("%s://%s", s.Scheme, s.Domain)
}

// BaseURL is the module tree location without scheme, also used as the
// on-disk directory of downloaded module pages.
func (s Site) BaseURL() string {
	return s.Domain + "/" + s.ModulePath
}

// IndexURL is the documentation start page for a version param.
func (s Site) IndexURL(versionParam string) string {
	return fmt.Sprintf("%s://%s/?%s", s.Scheme, s.BaseURL(), versionParam)
}

// TocURL is the primary table of contents for a version param.
func (s Site) TocURL(versionParam string) string {
	return fmt.Sprintf("%s://%s/psdocs/toc.json?%s", s.Scheme, s.BaseURL(), versionParam)
}

// SecondaryTocURL is the Windows Server module table of contents.
func (s Site) SecondaryTocURL() string {
	return fmt.Sprintf("%s://%s/windowsserver2019-ps/toc.json?%s", s.Scheme, s.BaseURL(), SecondaryVersionParam)
}

// IconPath is the start page module icon relative to the documents root.
func (s Site) IconPath() string {
	return s.Domain + "/en-us/media/toolbars/module.svg"
}

// IconURL is where the module icon is downloaded from.
func (s Site) IconURL() string {
	return s.Origin() + "/en-us/media/toolbars/module.svg"
}

// StartPagePath is the start page relative to the documents root.
func (s Site) StartPagePath() string {
	return s.Domain + "/en-us/index.html"
}
