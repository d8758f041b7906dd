package pool

import (
	"slices"
	"strings"
)

// Usage and capacity of a group of tokens sharing the same values
// for a set of attribute keys.
type TokenGroupCapacity struct {
	// Attribute values shared by the group.
	// A key missing from a token's attributes groups under "".
	Key map[string]string `json:"key"`

	// Number of leased tokens in the group.
	Usage int `json:"usage"`

	// Total number of tokens in the group.
	Capacity int `json:"capacity"`
}

// Capacity reports usage and capacity of the pool's tokens grouped by
// the values of the groupBy attribute keys. Without keys, all tokens
// form a single group.
//
// The report is computed from a snapshot. Counts may be slightly stale
// but are always consistent with one another.
func (p *Pool) Capacity(groupBy ...string) []TokenGroupCapacity {
	return GroupCapacity(p.GetTokens(), groupBy...)
}

// GroupCapacity groups a token snapshot, see Pool.Capacity.
// Groups are sorted by their attribute values.
func GroupCapacity(tokens []TokenInfo, groupBy ...string) []TokenGroupCapacity {
	groups := map[string]*TokenGroupCapacity{}
	order := []string{}

	for _, token := range tokens {
		values := make([]string, len(groupBy))
		for i, key := range groupBy {
			values[i] = token.Attributes[key]
		}
		groupKey := strings.Join(values, "\x00")

		group, ok := groups[groupKey]
		if !ok {
			group = &TokenGroupCapacity{Key: map[string]string{}}
			for i, key := range groupBy {
				group.Key[key] = values[i]
			}
			groups[groupKey] = group
			order = append(order, groupKey)
		}

		group.Capacity++
		if token.State.isLeased() {
			group.Usage++
		}
	}

	slices.Sort(order)

	result := make([]TokenGroupCapacity, 0, len(order))
	for _, groupKey := range order {
		result = append(result, *groups[groupKey])
	}
	return result
}
