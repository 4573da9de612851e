package packaging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FeedFileName is the docset feed descriptor.
const FeedFileName = "docset.json"

// FeedAuthor credits the docset maintainer.
type FeedAuthor struct {
	Name string `json:"name"`
	Link string `json:"link"`
}

// FeedVersion is an archived docset for one documentation version.
type FeedVersion struct {
	Version string `json:"version"`
	Archive string `json:"archive"`
}

// Feed is the docset.json descriptor consumed by docset repositories.
type Feed struct {
	Name             string        `json:"name"`
	Version          string        `json:"version"`
	Archive          string        `json:"archive"`
	Author           FeedAuthor    `json:"author"`
	Aliases          []string      `json:"aliases"`
	SpecificVersions []FeedVersion `json:"specific_versions"`
}

// feedVersions lists the archived documentation versions, newest first.
var feedVersions = []string{"6", "5.1", "5.0", "4.0", "3.0"}

// NewFeed describes the docset built for version on date.
func NewFeed(name, version string, date time.Time) Feed {
	archive := name + ".tgz"

	specific := make([]FeedVersion, 0, len(feedVersions))
	for _, v := range feedVersions {
		specific = append(specific, FeedVersion{
			Version: v,
			Archive: fmt.Sprintf("versions/%s/%s", v, archive),
		})
	}

	return Feed{
		Name:    name,
		Version: fmt.Sprintf("%s/%s", version, date.Format("06-01-02")),
		Archive: archive,
		Author: FeedAuthor{
			Name: "lucasg",
			Link: "https://github.com/lucasg",
		},
		Aliases:          []string{"Windows shell", "posh", "Cmdlets", "Windows automation"},
		SpecificVersions: specific,
	}
}

// WriteFeed writes feed as indented JSON into dir.
func WriteFeed(dir string, feed Feed) (string, error) {
	data, err := json.MarshalIndent(feed, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal feed: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}
	path := filepath.Join(dir, FeedFileName)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
