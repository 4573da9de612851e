package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/posh-docset/internal/fulltext"
	"github.com/jonathan/posh-docset/internal/observability"
)

var searchCommand = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the full-text index of a build",
	Long:  "Runs a match query against the index created by 'build --fulltext' and prints the best hits.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearchCmd,
}

var (
	searchIndexDir string
	searchLimit    int
)

func init() {
	searchCommand.Flags().StringVarP(&searchIndexDir, "index", "i", "", "Build folder or "+fulltext.DirName+" directory")
	searchCommand.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum number of hits")

	_ = searchCommand.MarkFlagRequired("index")

	rootCmd.AddCommand(searchCommand)
}

func runSearchCmd(cmd *cobra.Command, args []string) error {
	dir := searchIndexDir
	if filepath.Base(dir) != fulltext.DirName {
		dir = filepath.Join(dir, fulltext.DirName)
	}

	query := strings.Join(args, " ")
	hits, err := fulltext.Search(dir, query, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintSearchHits(query, hits)
	return nil
}
