package types

import "time"

// BuildSummary describes a finished docset build.
type BuildSummary struct {
	RunID        string
	Version      string
	Local        bool
	Modules      int
	Pages        int
	Resources    int
	IndexRows    int
	FullTextDocs int
	Archive      string
	Stages       []string
	Duration     time.Duration
}

// SearchHit is one full-text search result.
type SearchHit struct {
	Name  string
	Type  string
	Path  string
	Score float64
}
