package datasets

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortOrder is how the manage screen orders its list.
type SortOrder string

const (
	SortNewest SortOrder = "newest"
	SortOldest SortOrder = "oldest"
	SortName   SortOrder = "name"
)

// ParseSortOrder defaults to newest first.
func ParseSortOrder(s string) SortOrder {
	switch SortOrder(strings.ToLower(strings.TrimSpace(s))) {
	case SortOldest:
		return SortOldest
	case SortName:
		return SortName
	default:
		return SortNewest
	}
}

// StatusAll disables status filtering.
const StatusAll = "all"

// Query filters and orders a dataset list.
type Query struct {
	Search string
	Status string // StatusAll, empty, or a Status value
	Sort   SortOrder
}

func (q Query) matches(r Record) bool {
	if q.Status != "" && q.Status != StatusAll && r.Status != ParseStatus(q.Status) {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(q.Search))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.TableName), term) ||
		strings.Contains(strings.ToLower(r.DataDescription), term)
}

// Apply returns the matching records in the requested order. The input is
// not modified.
func (q Query) Apply(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if q.matches(r) {
			out = append(out, r)
		}
	}

	switch q.Sort {
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	case SortName:
		c := collate.New(language.English, collate.IgnoreCase)
		sort.SliceStable(out, func(i, j int) bool { return c.CompareString(out[i].TableName, out[j].TableName) < 0 })
	default:
		sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	return out
}

// Counts tallies records per status for the manage screen summary.
type Counts struct {
	Total    int
	Pending  int
	Approved int
	Rejected int
}

func CountByStatus(records []Record) Counts {
	c := Counts{Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case StatusApproved:
			c.Approved++
		case StatusRejected:
			c.Rejected++
		default:
			c.Pending++
		}
	}
	return c
}
