// Package rendering renders the docset property list from a template.
package rendering

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

// InfoPlistName is the property list file inside Contents/.
const InfoPlistName = "Info.plist"

// defaultInfoPlist is used when no template file is configured.
const defaultInfoPlist = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>CFBundleIdentifier</key>
	<string>{{escape .BundleID}}</string>
	<key>CFBundleName</key>
	<string>{{escape .Name}}</string>
	<key>DocSetPlatformFamily</key>
	<string>{{escape .PlatformFamily}}</string>
	<key>isDashDocset</key>
	<true/>
	<key>isJavaScriptEnabled</key>
	<{{if .JavaScriptEnabled}}true{{else}}false{{end}}/>
	<key>dashIndexFilePath</key>
	<string>{{escape .IndexFilePath}}</string>
{{- if .FallbackURL}}
	<key>DashDocSetFallbackURL</key>
	<string>{{escape .FallbackURL}}</string>
{{- end}}
</dict>
</plist>
`

// TemplateError reports a plist template that cannot be read, parsed or
// executed. TemplatePath is empty for the built-in template.
type TemplateError struct {
	TemplatePath string
	Message      string
	Cause        error
}

func (e *TemplateError) Error() string {
	name := e.TemplatePath
	if name == "" {
		name = "built-in"
	}
	if e.Cause != nil {
		return fmt.Sprintf("plist template %s: %s: %v", name, e.Message, e.Cause)
	}
	return fmt.Sprintf("plist template %s: %s", name, e.Message)
}

func (e *TemplateError) Unwrap() error {
	return e.Cause
}

// PlistError reports Info.plist data that cannot be rendered or a file
// that cannot be written. Path is the target file when known.
type PlistError struct {
	Path    string
	Message string
	Cause   error
}

func (e *PlistError) Error() string {
	msg := "info.plist: " + e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *PlistError) Unwrap() error {
	return e.Cause
}

// PlistData holds the docset properties.
type PlistData struct {
	BundleID          string
	Name              string
	PlatformFamily    string
	IndexFilePath     string // start page, relative to Documents
	FallbackURL       string
	JavaScriptEnabled bool
}

// RenderInfoPlist renders the property list. An empty templatePath uses
// the built-in template.
func RenderInfoPlist(data PlistData, templatePath string) (string, error) {
	if data.BundleID == "" || data.Name == "" {
		return "", &PlistError{Message: "bundle id and name are required"}
	}

	tmpl, err := parseTemplate(templatePath)
	if err != nil {
		return "", err
	}

	var result strings.Builder
	if err := tmpl.Execute(&result, data); err != nil {
		return "", &TemplateError{
			TemplatePath: templatePath,
			Message:      "failed to execute template",
			Cause:        err,
		}
	}

	return result.String(), nil
}

// WriteInfoPlist renders the property list into contentsDir.
func WriteInfoPlist(contentsDir string, data PlistData, templatePath string) error {
	out, err := RenderInfoPlist(data, templatePath)
	if err != nil {
		return err
	}
	path := filepath.Join(contentsDir, InfoPlistName)
	if err := os.MkdirAll(contentsDir, 0755); err != nil {
		return &PlistError{Path: path, Message: "failed to create contents directory", Cause: err}
	}
	if err := os.WriteFile(path, []byte(out), 0644); err != nil {
		return &PlistError{Path: path, Message: "failed to write", Cause: err}
	}
	return nil
}

// parseTemplate reads and parses a plist template file, or the built-in one
func parseTemplate(templatePath string) (*template.Template, error) {
	content := defaultInfoPlist
	if templatePath != "" {
		raw, err := os.ReadFile(templatePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, &TemplateError{
					TemplatePath: templatePath,
					Message:      "template file not found",
					Cause:        err,
				}
			}
			return nil, &TemplateError{
				TemplatePath: templatePath,
				Message:      "failed to read template file",
				Cause:        err,
			}
		}
		content = string(raw)
	}

	tmpl, err := template.New("plist").Funcs(template.FuncMap{
		"escape": EscapeXML,
	}).Parse(content)
	if err != nil {
		return nil, &TemplateError{
			TemplatePath: templatePath,
			Message:      "failed to parse template",
			Cause:        err,
		}
	}

	return tmpl, nil
}
