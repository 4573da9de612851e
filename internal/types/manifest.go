// Package types provides the value records passed between docset build stages.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Kind classifies a downloaded page.
type Kind string

const (
	KindModule  Kind = "Module"
	KindCommand Kind = "Command"
)

// ManifestEntry is one downloaded page. RelativePath is relative to the
// download root and always uses forward slashes.
type ManifestEntry struct {
	Name         string
	Kind         Kind
	RelativePath string
}

// CommandEntry is a command page belonging to a module.
type CommandEntry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// ModuleManifest groups a module index page with its command pages.
// Index is empty when the TOC node had no href and no index page was saved.
type ModuleManifest struct {
	Name     string         `json:"name"`
	Index    string         `json:"index"`
	Commands []CommandEntry `json:"cmdlets"`
}

// Manifest lists every downloaded module in TOC traversal order.
//
// It serializes as a JSON object keyed by module name, preserving order.
type Manifest struct {
	Modules []ModuleManifest
}

// Len returns the number of modules.
func (m *Manifest) Len() int {
	return len(m.Modules)
}

// Module returns the module with the given name.
func (m *Manifest) Module(name string) (ModuleManifest, bool) {
	for _, mod := range m.Modules {
		if mod.Name == name {
			return mod, true
		}
	}
	return ModuleManifest{}, false
}

// Add appends a module, or replaces a same-named module in place.
func (m *Manifest) Add(mod ModuleManifest) {
	for i := range m.Modules {
		if m.Modules[i].Name == mod.Name {
			m.Modules[i] = mod
			return
		}
	}
	m.Modules = append(m.Modules, mod)
}

// Merge adds every module of other, in order.
func (m *Manifest) Merge(other *Manifest) {
	if other == nil {
		return
	}
	for _, mod := range other.Modules {
		m.Add(mod)
	}
}

// Entries flattens the manifest into one entry per saved page.
func (m *Manifest) Entries() []ManifestEntry {
	var entries []ManifestEntry
	for _, mod := range m.Modules {
		if mod.Index != "" {
			entries = append(entries, ManifestEntry{Name: mod.Name, Kind: KindModule, RelativePath: mod.Index})
		}
		for _, cmd := range mod.Commands {
			entries = append(entries, ManifestEntry{Name: cmd.Name, Kind: KindCommand, RelativePath: cmd.Path})
		}
	}
	return entries
}

// PageCount returns the number of saved pages.
func (m *Manifest) PageCount() int {
	return len(m.Entries())
}

// MarshalJSON implements json.Marshaler.
func (m Manifest) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, mod := range m.Modules {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(mod.Name)
		if err != nil {
			return nil, err
		}
		if mod.Commands == nil {
			mod.Commands = []CommandEntry{}
		}
		value, err := json.Marshal(mod)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler, keeping document order.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("manifest: expected object, got %v", tok)
	}

	m.Modules = nil
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("manifest: expected string key, got %v", keyTok)
		}
		var mod ModuleManifest
		if err := dec.Decode(&mod); err != nil {
			return fmt.Errorf("manifest: module %q: %w", key, err)
		}
		if mod.Name == "" {
			mod.Name = key
		}
		m.Add(mod)
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
