package history

import (
	"fmt"
	"strconv"
	"strings"
)

// Resolver resolves user-friendly references to record indexes
type Resolver struct {
	history *History
}

// NewResolver creates a new reference resolver
func NewResolver(h *History) *Resolver {
	return &Resolver{history: h}
}

// Resolve converts a reference to a 0-based record index
//
// Supported references:
//   - "@last" - most recently updated record
//   - "@first" - oldest record
//   - "1", "2", "3" - by position (1-based, newest first)
//   - a record ID
//   - "substring" - match on title (error if multiple matches)
func (r *Resolver) Resolve(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return -1, fmt.Errorf("empty reference")
	}

	records := r.history.Records()
	if len(records) == 0 {
		return -1, fmt.Errorf("no conversations found")
	}

	switch strings.ToLower(ref) {
	case "@last":
		best := 0
		for i, rec := range records {
			if rec.UpdatedAt.After(records[best].UpdatedAt) {
				best = i
			}
		}
		return best, nil
	case "@first":
		best := 0
		for i, rec := range records {
			if rec.CreatedAt.Before(records[best].CreatedAt) {
				best = i
			}
		}
		return best, nil
	}

	if index, err := strconv.Atoi(ref); err == nil {
		if index < 1 || index > len(records) {
			return -1, fmt.Errorf("index %d out of range (1-%d)", index, len(records))
		}
		return index - 1, nil
	}

	for i, rec := range records {
		if rec.ID == ref {
			return i, nil
		}
	}

	refLower := strings.ToLower(ref)
	var matches []int
	for i, rec := range records {
		if strings.Contains(strings.ToLower(rec.Title), refLower) {
			matches = append(matches, i)
		}
	}

	switch len(matches) {
	case 0:
		return -1, fmt.Errorf("no conversation matching '%s'", ref)
	case 1:
		return matches[0], nil
	default:
		titles := make([]string, 0, len(matches))
		for _, i := range matches {
			titles = append(titles, fmt.Sprintf("'%s'", records[i].Title))
		}
		return -1, fmt.Errorf("multiple conversations match '%s': %s. Use the index or ID",
			ref, strings.Join(titles, ", "))
	}
}

// ListAliases returns information about supported references
func ListAliases() string {
	return `Supported references:
  @last          Most recently updated conversation
  @first         Oldest conversation
  1, 2, 3        By position (1-based, newest first)
  "text"         Search by title substring
  <id>           Direct record ID`
}
