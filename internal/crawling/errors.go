// Package crawling downloads the pages named by a table of contents into a
// mirrored directory tree and records what was saved.
package crawling

import "fmt"

// CrawlError represents a failure that aborts a crawl.
type CrawlError struct {
	Message string
	Cause   error
}

func (e *CrawlError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("crawl error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("crawl error: %s", e.Message)
}

func (e *CrawlError) Unwrap() error {
	return e.Cause
}
