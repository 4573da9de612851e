package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables consulted by FromEnv.
const (
	EnvBuildDir      = "POSH_DOCSET_BUILD_DIR"
	EnvSecondaryDir  = "POSH_DOCSET_SECONDARY_DIR"
	EnvUserAgent     = "POSH_DOCSET_USER_AGENT"
	EnvBrowserPath   = "POSH_DOCSET_BROWSER_PATH"
	EnvModules       = "POSH_DOCSET_MODULES" // comma separated
	EnvRenderTimeout = "POSH_DOCSET_RENDER_TIMEOUT_SECONDS"
)

// FromEnv returns a Config holding only the values set in the environment.
// The CLI loads a .env file before calling it.
func FromEnv() (Config, error) {
	var cfg Config

	cfg.BuildDir = os.Getenv(EnvBuildDir)
	cfg.SecondaryDir = os.Getenv(EnvSecondaryDir)
	cfg.UserAgent = os.Getenv(EnvUserAgent)
	cfg.BrowserPath = os.Getenv(EnvBrowserPath)

	if modules := os.Getenv(EnvModules); modules != "" {
		for _, m := range strings.Split(modules, ",") {
			if m = strings.TrimSpace(m); m != "" {
				cfg.Modules = append(cfg.Modules, m)
			}
		}
	}

	if timeoutStr := os.Getenv(EnvRenderTimeout); timeoutStr != "" {
		seconds, err := strconv.Atoi(timeoutStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %v", EnvRenderTimeout, err)
		}
		if seconds < 1 {
			return Config{}, fmt.Errorf("%s must be at least 1 second, got: %d", EnvRenderTimeout, seconds)
		}
		cfg.RenderTimeout = time.Duration(seconds) * time.Second
	}

	return cfg, nil
}
