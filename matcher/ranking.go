package matcher

import "sort"

// PriorityItem is a content item with the match that qualified it for the
// priority listing.
type PriorityItem struct {
	ContentId string      `json:"content_id"`
	Match     MatchResult `json:"match"`
}

// SortByPriority orders items by max priority desc, then match ratio desc.
// Items equal on both keep their input order.
func SortByPriority(items []PriorityItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Match, items[j].Match
		if a.MaxPriority != b.MaxPriority {
			return a.MaxPriority > b.MaxPriority
		}
		return a.MatchRatio > b.MatchRatio
	})
}
