package types

import "sort"

// ResourceRecord is a shared theme asset discovered in a page.
// StoredPath is relative to the documents root with forward slashes.
type ResourceRecord struct {
	SourceURL  string
	StoredPath string
}

// ResourceSet is a set of resource records deduplicated by value.
type ResourceSet map[ResourceRecord]struct{}

// NewResourceSet builds a set from records.
func NewResourceSet(records ...ResourceRecord) ResourceSet {
	set := make(ResourceSet, len(records))
	for _, r := range records {
		set.Add(r)
	}
	return set
}

// Add inserts a record.
func (s ResourceSet) Add(r ResourceRecord) {
	s[r] = struct{}{}
}

// Union adds all records of other into s.
func (s ResourceSet) Union(other ResourceSet) {
	for r := range other {
		s.Add(r)
	}
}

// Contains reports whether r is in the set.
func (s ResourceSet) Contains(r ResourceRecord) bool {
	_, ok := s[r]
	return ok
}

// Sorted returns the records ordered by stored path, then source URL.
func (s ResourceSet) Sorted() []ResourceRecord {
	records := make([]ResourceRecord, 0, len(s))
	for r := range s {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].StoredPath != records[j].StoredPath {
			return records[i].StoredPath < records[j].StoredPath
		}
		return records[i].SourceURL < records[j].SourceURL
	})
	return records
}
