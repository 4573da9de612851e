package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonathan/posh-docset/internal/config"
	"github.com/jonathan/posh-docset/internal/packaging"
)

var feedCommand = &cobra.Command{
	Use:   "feed",
	Short: "Write the docset.json feed descriptor",
	RunE:  runFeedCmd,
}

var (
	feedVersion string
	feedOut     string
)

func init() {
	feedCommand.Flags().StringVarP(&feedVersion, "version", "v", config.DefaultVersion, "Docset version of the published archive (a leading v is dropped)")
	feedCommand.Flags().StringVarP(&feedOut, "out", "o", ".", "Directory to write "+packaging.FeedFileName+" into")

	rootCmd.AddCommand(feedCommand)
}

func runFeedCmd(cmd *cobra.Command, _ []string) error {
	version := strings.TrimPrefix(strings.TrimSpace(feedVersion), "v")
	if version == "" {
		return fmt.Errorf("feed version is required")
	}

	path, err := packaging.WriteFeed(feedOut, packaging.NewFeed(config.DefaultSite().DocsetName, version, time.Now()))
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Feed written to %s\n", path)
	return nil
}
