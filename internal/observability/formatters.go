// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jonathan/posh-docset/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
)

// Printer handles formatted output
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = "..." + line[len(line)-(boxWidth-7):]
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintBuildSummary outputs the counts and archive of a finished build.
func (p *Printer) PrintBuildSummary(summary *types.BuildSummary) {
	if summary == nil {
		return
	}

	var sb strings.Builder

	mode := "online"
	if summary.Local {
		mode = "local"
	}
	sb.WriteString(fmt.Sprintf("Version:    %s (%s)\n", summary.Version, mode))
	sb.WriteString(fmt.Sprintf("Modules:    %d\n", summary.Modules))
	sb.WriteString(fmt.Sprintf("Pages:      %d\n", summary.Pages))
	sb.WriteString(fmt.Sprintf("Resources:  %d\n", summary.Resources))
	sb.WriteString(fmt.Sprintf("Index rows: %d\n", summary.IndexRows))
	if summary.FullTextDocs > 0 {
		sb.WriteString(fmt.Sprintf("Full text:  %d documents\n", summary.FullTextDocs))
	}
	if len(summary.Stages) > 0 {
		sb.WriteString(fmt.Sprintf("Stages:     %s\n", strings.Join(summary.Stages, ", ")))
	}
	sb.WriteString(fmt.Sprintf("Duration:   %s\n", summary.Duration.Round(time.Millisecond)))
	sb.WriteString("\n")
	sb.WriteString("Archive:\n")
	sb.WriteString(summary.Archive)

	p.printBox("DOCSET BUILT", sb.String())
}

// PrintManifest outputs the first modules of a manifest with their command counts.
func (p *Printer) PrintManifest(manifest *types.Manifest) {
	if manifest == nil || manifest.Len() == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Modules: %d, pages: %d\n\n", manifest.Len(), manifest.PageCount()))

	count := min(manifest.Len(), maxItemsToShow)
	for i := 0; i < count; i++ {
		mod := manifest.Modules[i]
		sb.WriteString(fmt.Sprintf("• %s (%d commands)", mod.Name, len(mod.Commands)))
		if mod.Index == "" {
			sb.WriteString(" [no index]")
		}
		sb.WriteString("\n")
	}
	if manifest.Len() > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", manifest.Len()-maxItemsToShow))
	}

	p.printBox("DOWNLOADED MODULES", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintSearchHits outputs full-text search results.
func (p *Printer) PrintSearchHits(query string, hits []types.SearchHit) {
	var sb strings.Builder
	if len(hits) == 0 {
		sb.WriteString(fmt.Sprintf("No results for %q", query))
		p.printBox("SEARCH RESULTS", sb.String())
		return
	}

	for i, hit := range hits {
		sb.WriteString(fmt.Sprintf("#%d  %s (%s)\n", i+1, hit.Name, hit.Type))
		sb.WriteString(fmt.Sprintf("    Score: %.2f\n", hit.Score))
		sb.WriteString(fmt.Sprintf("    %s", hit.Path))
		if i < len(hits)-1 {
			sb.WriteString("\n\n")
		}
	}

	p.printBox("SEARCH RESULTS", sb.String())
}
