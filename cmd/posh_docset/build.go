package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/posh-docset/internal/config"
	"github.com/jonathan/posh-docset/internal/logging"
	"github.com/jonathan/posh-docset/internal/observability"
	"github.com/jonathan/posh-docset/internal/pipeline"
	"github.com/jonathan/posh-docset/internal/types"
)

var buildCommand = &cobra.Command{
	Use:   "build",
	Short: "Download, rewrite, index and package the PowerShell documentation",
	Long: `Runs the whole docset build: download -> secondary merge -> rewrite -> localize resources -> index -> package.

Configuration can be loaded from a JSON file using --config. Environment variables (POSH_DOCSET_*) fill
unset values, and command-line flags override both.`,
	RunE: runBuildCmd,
}

var (
	buildConfigPath    string
	buildVersion       string
	buildOutput        string
	buildModules       []string
	buildDir           string
	buildSecondaryDir  string
	buildBrowserPath   string
	buildPlistTemplate string
	buildVerbose       bool
	buildTemporary     bool
	buildLocal         bool
	buildNoSecondary   bool
	buildNoBrowser     bool
	buildFullText      bool
)

func init() {
	// Config file flag (processed first)
	buildCommand.Flags().StringVar(&buildConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")

	buildCommand.Flags().StringVarP(&buildVersion, "version", "v", config.DefaultVersion, "PowerShell version to build (5.1, 7.0 or 7.1)")
	buildCommand.Flags().StringVarP(&buildOutput, "output", "o", "", "Archive path (default ./Powershell.tgz)")
	buildCommand.Flags().StringSliceVarP(&buildModules, "modules", "m", nil, "Only build these modules (repeatable or comma separated)")
	buildCommand.Flags().StringVar(&buildDir, "build-dir", "", "Build folder (default ./_build_<version>)")
	buildCommand.Flags().StringVar(&buildSecondaryDir, "secondary-dir", "", "Folder caching the Windows Server module download")
	buildCommand.Flags().StringVarP(&buildBrowserPath, "browser-path", "p", "", "Chrome binary used to render the start page")
	buildCommand.Flags().StringVar(&buildPlistTemplate, "plist-template", "", "Custom Info.plist template")
	buildCommand.Flags().BoolVar(&buildVerbose, "verbose", false, "Print debug information")
	buildCommand.Flags().BoolVarP(&buildTemporary, "temporary", "t", false, "Build in a temporary folder")
	buildCommand.Flags().BoolVarP(&buildLocal, "local", "l", false, "Reuse downloaded contents without network access")
	buildCommand.Flags().BoolVar(&buildNoSecondary, "no-secondary", false, "Skip the Windows Server module download")
	buildCommand.Flags().BoolVar(&buildNoBrowser, "no-browser", false, "Fetch the start page without a headless browser")
	buildCommand.Flags().BoolVar(&buildFullText, "fulltext", false, "Also build a full-text index of page contents")

	rootCmd.AddCommand(buildCommand)
}

// resolveBuildConfig layers the config file, environment and flags, then
// fills defaults.
func resolveBuildConfig(cmd *cobra.Command) (config.Config, error) {
	// Step 1: Load config file if provided
	var cfg config.Config
	if buildConfigPath != "" {
		loadedCfg, err := config.LoadConfig(buildConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loadedCfg
	}

	// Step 2: Environment fills what the file left unset
	envCfg, err := config.FromEnv()
	if err != nil {
		return cfg, err
	}
	cfg = cfg.MergeWithDefaults(envCfg)

	// Step 3: Apply CLI overrides, only for flags explicitly set
	flags := cmd.Flags()
	if flags.Changed("version") || cfg.Version == "" {
		cfg.Version = buildVersion
	}
	if flags.Changed("output") {
		cfg.Output = buildOutput
	}
	if flags.Changed("modules") {
		cfg.Modules = buildModules
	}
	if flags.Changed("build-dir") {
		cfg.BuildDir = buildDir
	}
	if flags.Changed("secondary-dir") {
		cfg.SecondaryDir = buildSecondaryDir
	}
	if flags.Changed("browser-path") {
		cfg.BrowserPath = buildBrowserPath
	}
	if flags.Changed("verbose") {
		cfg.Verbose = buildVerbose
	}
	if flags.Changed("temporary") {
		cfg.Temporary = buildTemporary
	}
	if flags.Changed("local") {
		cfg.Local = buildLocal
	}
	if flags.Changed("no-secondary") {
		cfg.NoSecondary = buildNoSecondary
	}
	if flags.Changed("fulltext") {
		cfg.FullText = buildFullText
	}

	// Step 4: Apply defaults for unset values
	defaults := config.Default()
	cfg = cfg.MergeWithDefaults(defaults)
	if buildConfigPath == "" {
		cfg.UseBrowser = defaults.UseBrowser
	}
	if buildNoBrowser {
		cfg.UseBrowser = false
	}

	// Step 5: Validate
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runBuildCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveBuildConfig(cmd)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := observability.NewPrinter(cmd.OutOrStdout())
	summary, err := pipeline.RunPipeline(ctx, pipeline.RunOptions{
		Config:        cfg,
		Site:          config.DefaultSite(),
		PlistTemplate: buildPlistTemplate,
		Logger:        logger,
		OnProgress: func(event pipeline.ProgressEvent) {
			logger.Debug("progress",
				zap.String("step", event.Step),
				zap.String("category", event.Category),
				zap.String("message", event.Message))
			if manifest, ok := event.Content.(*types.Manifest); ok {
				printer.PrintManifest(manifest)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	printer.PrintBuildSummary(summary)
	return nil
}
