// Package config provides configuration loading and validation for the docset builder.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// SupportedVersions lists the documentation versions that can be built.
var SupportedVersions = []string{"5.1", "7.0", "7.1"}

// DefaultVersion is the documentation version built when none is selected.
const DefaultVersion = "7.1"

// DefaultRenderTimeout bounds a single headless-browser page render.
const DefaultRenderTimeout = 60 * time.Second

// Config represents the build configuration that can be loaded from a JSON file.
// All fields are optional in the file; missing values come from env defaults or CLI flags.
type Config struct {
	Version      string   `json:"version,omitempty" validate:"required,oneof=5.1 7.0 7.1"`
	Output       string   `json:"output,omitempty" validate:"required"`
	Modules      []string `json:"modules,omitempty"`
	BuildDir     string   `json:"build_dir,omitempty"`
	SecondaryDir string   `json:"secondary_dir,omitempty"`
	UserAgent    string   `json:"user_agent,omitempty"`
	BrowserPath  string   `json:"browser_path,omitempty"` // Chrome binary for rendered pages

	// Behavior
	Verbose       bool          `json:"verbose,omitempty"`
	Local         bool          `json:"local,omitempty"`     // Reuse downloaded contents, no network
	Temporary     bool          `json:"temporary,omitempty"` // Build inside a scratch directory
	NoSecondary   bool          `json:"no_secondary,omitempty"`
	UseBrowser    bool          `json:"use_browser,omitempty"`
	FullText      bool          `json:"fulltext,omitempty"`
	RenderTimeout time.Duration `json:"-"`
}

var validate = validator.New()

// Default returns a Config populated with the builder defaults for the working directory.
func Default() Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return Config{
		Version:       DefaultVersion,
		Output:        filepath.Join(cwd, "Powershell.tgz"),
		SecondaryDir:  filepath.Join(cwd, "_win10_downloaded_contents"),
		UseBrowser:    true,
		RenderTimeout: DefaultRenderTimeout,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	if c.Local && c.Temporary {
		return fmt.Errorf("config error: 'local' and 'temporary' are mutually exclusive")
	}

	if c.RenderTimeout < 0 {
		return fmt.Errorf("config error: render timeout must be non-negative")
	}

	return nil
}

// MergeWithDefaults returns a new Config with empty fields filled from defaults.
// Bool fields cannot distinguish unset from false, so they are left to the CLI.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.Version == "" {
		result.Version = defaults.Version
	}
	if result.Output == "" {
		result.Output = defaults.Output
	}
	if len(result.Modules) == 0 {
		result.Modules = defaults.Modules
	}
	if result.BuildDir == "" {
		result.BuildDir = defaults.BuildDir
	}
	if result.SecondaryDir == "" {
		result.SecondaryDir = defaults.SecondaryDir
	}
	if result.UserAgent == "" {
		result.UserAgent = defaults.UserAgent
	}
	if result.BrowserPath == "" {
		result.BrowserPath = defaults.BrowserPath
	}
	if result.RenderTimeout == 0 {
		result.RenderTimeout = defaults.RenderTimeout
	}

	return result
}

// ModuleFilter returns the lower-cased module allow-list.
func (c *Config) ModuleFilter() []string {
	filter := make([]string, 0, len(c.Modules))
	for _, m := range c.Modules {
		if m = strings.TrimSpace(m); m != "" {
			filter = append(filter, strings.ToLower(m))
		}
	}
	return filter
}

// VersionParam is the query parameter selecting the documentation version.
func (c *Config) VersionParam() string {
	return "view=powershell-" + c.Version
}

// ResolvedBuildDir returns the build folder, defaulting to ./_build_<version>.
func (c *Config) ResolvedBuildDir() (string, error) {
	if c.BuildDir != "" {
		return filepath.Abs(c.BuildDir)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return filepath.Join(cwd, "_build_"+c.Version), nil
}
