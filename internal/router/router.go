// Package router picks which team members should handle a piece of
// user input, by scoring keyword relevance. Routing is a pure function
// over its inputs: no state, no I/O.
package router

import (
	"sort"
	"strings"
)

// Table maps a member name to the keywords that signal the member's
// expertise is relevant.
type Table map[string][]string

// Route scores input against each member's keyword list and returns the
// names of all members tied for the highest score, sorted. Matching is
// case-insensitive substring containment; each keyword counts at most
// once per member. When no keyword matches at all, the fallback member
// is returned alone (or nothing, when fallback is empty).
func Route(input string, table Table, fallback string) []string {
	lowered := strings.ToLower(input)

	scores := make(map[string]int, len(table))
	best := 0
	for name, keywords := range table {
		score := 0
		for _, kw := range keywords {
			if strings.Contains(lowered, strings.ToLower(kw)) {
				score++
			}
		}
		scores[name] = score
		if score > best {
			best = score
		}
	}

	if best == 0 {
		if fallback == "" {
			return nil
		}
		return []string{fallback}
	}

	var selected []string
	for name, score := range scores {
		if score == best {
			selected = append(selected, name)
		}
	}
	sort.Strings(selected)
	return selected
}
